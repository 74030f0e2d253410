package query

import (
	"fmt"
	"strings"

	"pixie/internal/errkind"
)

// Predicate is a pure boolean test over records of type T. The zero value is
// invalid; build predicates with Func, Where, or WhereOp and compose them
// with the combinators. Combinators never mutate an operand.
type Predicate[T any] struct {
	test func(T) bool
}

// Func wraps a plain function as a predicate.
func Func[T any](fn func(T) bool) Predicate[T] {
	return Predicate[T]{test: fn}
}

// Where builds a predicate from a lookup expression such as
// "user__id" or "total_bookmarks__gte". The final segment selects a
// registered comparator; when it names none, the whole expression is a
// field path and eq is assumed. Construction validates the comparator
// argument, so malformed patterns and bounds fail here, not at match time.
func Where[T any](expr string, value any) (Predicate[T], error) {
	segments := strings.Split(expr, Separator)
	if len(segments) == 0 || expr == "" {
		return Predicate[T]{}, errkind.Wrap(errkind.ErrConfiguration, "query", "where", "empty lookup expression", nil)
	}

	name := DefaultComparator
	if last := segments[len(segments)-1]; IsComparator(last) && len(segments) > 1 {
		name = last
		segments = segments[:len(segments)-1]
	}
	return whereResolved[T](expr, segments, name, value)
}

// WhereOp is Where with an explicit comparator name. Unlike Where, an
// unknown name is rejected instead of being folded into the field path.
func WhereOp[T any](expr, op string, value any) (Predicate[T], error) {
	if _, err := lookupComparator(op); err != nil {
		return Predicate[T]{}, err
	}
	var segments []string
	if expr != "" {
		segments = strings.Split(expr, Separator)
	}
	return whereResolved[T](expr, segments, op, value)
}

// MustWhere is Where for statically known expressions; it panics on
// configuration errors.
func MustWhere[T any](expr string, value any) Predicate[T] {
	p, err := Where[T](expr, value)
	if err != nil {
		panic(err)
	}
	return p
}

func whereResolved[T any](expr string, segments []string, op string, value any) (Predicate[T], error) {
	cmp, err := lookupComparator(op)
	if err != nil {
		return Predicate[T]{}, err
	}
	rhs := value
	if cmp.prepare != nil {
		prepared, err := cmp.prepare(value)
		if err != nil {
			return Predicate[T]{}, errkind.Wrap(errkind.ErrConfiguration, "query", "where", expr, err)
		}
		rhs = prepared
	}
	return Predicate[T]{test: func(record T) bool {
		lhs := resolvePath(record, expr, segments)
		ok, err := cmp.match(lhs, rhs)
		if err != nil {
			panic(fmt.Errorf("query: evaluate %q: %w", expr, err))
		}
		return ok
	}}, nil
}

// Match evaluates the predicate. It panics with *LookupError when a lookup
// path does not resolve; that is a programmer error, not a data error.
func (p Predicate[T]) Match(record T) bool {
	if p.test == nil {
		panic(fmt.Errorf("query: Match on zero predicate"))
	}
	return p.test(record)
}

// Valid reports whether the predicate was constructed rather than being the
// zero value.
func (p Predicate[T]) Valid() bool {
	return p.test != nil
}

// And returns a new predicate matching when both operands match.
func (p Predicate[T]) And(q Predicate[T]) Predicate[T] {
	return Predicate[T]{test: func(record T) bool {
		return p.Match(record) && q.Match(record)
	}}
}

// Or returns a new predicate matching when either operand matches.
func (p Predicate[T]) Or(q Predicate[T]) Predicate[T] {
	return Predicate[T]{test: func(record T) bool {
		return p.Match(record) || q.Match(record)
	}}
}

// Not returns the negation of the predicate.
func (p Predicate[T]) Not() Predicate[T] {
	return Predicate[T]{test: func(record T) bool {
		return !p.Match(record)
	}}
}

// Xor returns a new predicate matching when exactly one operand matches.
func (p Predicate[T]) Xor(q Predicate[T]) Predicate[T] {
	return Predicate[T]{test: func(record T) bool {
		return p.Match(record) != q.Match(record)
	}}
}

// All combines any number of predicates conjunctively. With no arguments it
// matches everything.
func All[T any](preds ...Predicate[T]) Predicate[T] {
	return Predicate[T]{test: func(record T) bool {
		for _, p := range preds {
			if !p.Match(record) {
				return false
			}
		}
		return true
	}}
}

// Any combines any number of predicates disjunctively. With no arguments it
// matches nothing.
func Any[T any](preds ...Predicate[T]) Predicate[T] {
	return Predicate[T]{test: func(record T) bool {
		for _, p := range preds {
			if p.Match(record) {
				return true
			}
		}
		return false
	}}
}
