package main

import (
	"fmt"
	"strconv"
	"strings"

	"pixie/internal/illust"
	"pixie/internal/query"
)

// parseClauses turns --filter/--exclude arguments of the form
// "lookup=value" (for example "total_bookmarks__gte=500") into predicates.
func parseClauses(clauses []string) ([]query.Predicate[illust.Illust], error) {
	predicates := make([]query.Predicate[illust.Illust], 0, len(clauses))
	for _, clause := range clauses {
		expr, raw, ok := strings.Cut(clause, "=")
		if !ok || strings.TrimSpace(expr) == "" {
			return nil, fmt.Errorf("malformed clause %q: want lookup=value", clause)
		}
		predicate, err := query.Where[illust.Illust](strings.TrimSpace(expr), coerceValue(raw))
		if err != nil {
			return nil, fmt.Errorf("clause %q: %w", clause, err)
		}
		predicates = append(predicates, predicate)
	}
	return predicates, nil
}

// coerceValue guesses the natural Go type of a flag value. Comma-separated
// values become a slice, which range and in expect.
func coerceValue(raw string) any {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		values := make([]any, 0, len(parts))
		for _, part := range parts {
			values = append(values, coerceValue(part))
		}
		return values
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

// validateOrderBy rejects empty sort fields early so a typo like a bare "-"
// fails at flag parsing rather than mid-run.
func validateOrderBy(fields []string) error {
	for _, field := range fields {
		trimmed := strings.TrimPrefix(strings.TrimSpace(field), "-")
		if trimmed == "" {
			return fmt.Errorf("empty order-by field %q", field)
		}
	}
	return nil
}
