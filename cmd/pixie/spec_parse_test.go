package main

import (
	"testing"
	"time"

	"pixie/internal/illust"
)

func sampleRecord(bookmarks int) illust.Illust {
	return illust.Illust{
		ID:             7,
		Title:          "sunset",
		Type:           illust.TypeIllust,
		User:           illust.User{ID: 3, Name: "artist"},
		PageURLs:       []string{"https://img.example/7_p0.png"},
		Width:          100,
		Height:         100,
		TotalBookmarks: bookmarks,
		CreateDate:     time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestParseClausesComparator(t *testing.T) {
	predicates, err := parseClauses([]string{"total_bookmarks__gte=500"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(predicates) != 1 {
		t.Fatalf("expected one predicate, got %d", len(predicates))
	}
	if !predicates[0].Match(sampleRecord(600)) {
		t.Fatal("600 bookmarks should pass gte=500")
	}
	if predicates[0].Match(sampleRecord(100)) {
		t.Fatal("100 bookmarks should fail gte=500")
	}
}

func TestParseClausesDefaultEq(t *testing.T) {
	predicates, err := parseClauses([]string{"title=sunset"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !predicates[0].Match(sampleRecord(0)) {
		t.Fatal("exact title should match")
	}
}

func TestParseClausesRejectsMalformed(t *testing.T) {
	for _, clause := range []string{"no-equals", "=5", "  =x"} {
		if _, err := parseClauses([]string{clause}); err == nil {
			t.Fatalf("clause %q should be rejected", clause)
		}
	}
}

func TestParseClausesRejectsUnknownComparatorArg(t *testing.T) {
	if _, err := parseClauses([]string{"total_bookmarks__range=5"}); err == nil {
		t.Fatal("range with a scalar bound should fail at parse time")
	}
}

func TestCoerceValue(t *testing.T) {
	cases := []struct {
		raw  string
		want any
	}{
		{"42", int64(42)},
		{"2.5", 2.5},
		{"true", true},
		{"sunset", "sunset"},
	}
	for _, tc := range cases {
		if got := coerceValue(tc.raw); got != tc.want {
			t.Fatalf("coerce %q: got %#v, want %#v", tc.raw, got, tc.want)
		}
	}

	list, ok := coerceValue("10,200").([]any)
	if !ok || len(list) != 2 || list[0] != int64(10) || list[1] != int64(200) {
		t.Fatalf("coerce list: got %#v", list)
	}
}

func TestValidateOrderBy(t *testing.T) {
	if err := validateOrderBy([]string{"-total_bookmarks", "id"}); err != nil {
		t.Fatalf("valid fields rejected: %v", err)
	}
	if err := validateOrderBy([]string{"-"}); err == nil {
		t.Fatal("bare dash should be rejected")
	}
}
