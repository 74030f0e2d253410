package query

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"pixie/internal/errkind"
)

// DefaultComparator is assumed when a lookup expression's final segment is
// not a registered comparator name.
const DefaultComparator = "eq"

// comparator pairs an evaluation function with an optional construction-time
// check of the comparison value. prepare runs once when the predicate is
// built so malformed arguments (bad regex, short range) surface immediately
// as configuration errors rather than lazily during evaluation.
type comparator struct {
	prepare func(rhs any) (any, error)
	match   func(lhs, rhs any) (bool, error)
}

// comparators is the process-wide registry. It is populated below and never
// mutated afterwards.
var comparators = map[string]comparator{
	"eq": {match: matchEq},
	"ne": {match: func(lhs, rhs any) (bool, error) {
		ok, err := matchEq(lhs, rhs)
		return !ok, err
	}},
	"lt":  {match: orderedMatch(func(c int) bool { return c < 0 })},
	"lte": {match: orderedMatch(func(c int) bool { return c <= 0 })},
	"gt":  {match: orderedMatch(func(c int) bool { return c > 0 })},
	"gte": {match: orderedMatch(func(c int) bool { return c >= 0 })},
	"contains": {match: matchContains},
	"in":       {match: matchIn},
	"startswith": {match: func(lhs, rhs any) (bool, error) {
		return strings.HasPrefix(stringify(lhs), stringify(rhs)), nil
	}},
	"endswith": {match: func(lhs, rhs any) (bool, error) {
		return strings.HasSuffix(stringify(lhs), stringify(rhs)), nil
	}},
	"range":  {prepare: prepareRange, match: matchRange},
	"isnull": {prepare: prepareBool, match: matchIsNull},
	"regex":  {prepare: prepareRegex(""), match: matchRegex},
	"iregex": {prepare: prepareRegex("(?i)"), match: matchRegex},
	"divisible_by": {prepare: prepareDivisor, match: func(lhs, rhs any) (bool, error) {
		dividend, ok := toInt64(lhs)
		if !ok {
			return false, fmt.Errorf("divisible_by: %T is not an integer", lhs)
		}
		return dividend%rhs.(int64) == 0, nil
	}},
	"isinstance":  {prepare: prepareType, match: matchIsInstance},
	"issubclass":  {prepare: prepareType, match: matchIsSubclass},
}

// IsComparator reports whether name is a registered comparator.
func IsComparator(name string) bool {
	_, ok := comparators[name]
	return ok
}

func lookupComparator(name string) (comparator, error) {
	cmp, ok := comparators[name]
	if !ok {
		return comparator{}, errkind.Wrap(errkind.ErrConfiguration, "query", "comparator", fmt.Sprintf("unknown comparator %q", name), nil)
	}
	return cmp, nil
}

func matchEq(lhs, rhs any) (bool, error) {
	if c, err := compareValues(lhs, rhs); err == nil {
		return c == 0, nil
	}
	return reflect.DeepEqual(lhs, rhs), nil
}

func orderedMatch(accept func(int) bool) func(lhs, rhs any) (bool, error) {
	return func(lhs, rhs any) (bool, error) {
		c, err := compareValues(lhs, rhs)
		if err != nil {
			return false, err
		}
		return accept(c), nil
	}
}

// matchContains tests substring containment for strings, element
// containment for slices and arrays, and key containment for maps.
func matchContains(lhs, rhs any) (bool, error) {
	value := indirect(reflect.ValueOf(lhs))
	if !value.IsValid() {
		return false, nil
	}
	switch value.Kind() {
	case reflect.String:
		return strings.Contains(value.String(), stringify(rhs)), nil
	case reflect.Slice, reflect.Array:
		for i := 0; i < value.Len(); i++ {
			ok, err := matchEq(value.Index(i).Interface(), rhs)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case reflect.Map:
		for _, key := range value.MapKeys() {
			ok, err := matchEq(key.Interface(), rhs)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("contains: unsupported container %T", lhs)
	}
}

// matchIn inverts contains: the looked-up value must be a member of the
// comparison value.
func matchIn(lhs, rhs any) (bool, error) {
	return matchContains(rhs, lhs)
}

func prepareRange(rhs any) (any, error) {
	value := reflect.ValueOf(rhs)
	if !value.IsValid() || (value.Kind() != reflect.Slice && value.Kind() != reflect.Array) || value.Len() != 2 {
		return nil, fmt.Errorf("range requires a two-element bounds value, got %T", rhs)
	}
	return rhs, nil
}

// matchRange is inclusive on both bounds.
func matchRange(lhs, rhs any) (bool, error) {
	bounds := reflect.ValueOf(rhs)
	low, err := compareValues(lhs, bounds.Index(0).Interface())
	if err != nil {
		return false, err
	}
	high, err := compareValues(lhs, bounds.Index(1).Interface())
	if err != nil {
		return false, err
	}
	return low >= 0 && high <= 0, nil
}

func prepareBool(rhs any) (any, error) {
	b, ok := rhs.(bool)
	if !ok {
		return nil, fmt.Errorf("isnull takes a bool, got %T", rhs)
	}
	return b, nil
}

func matchIsNull(lhs, rhs any) (bool, error) {
	isNull := lhs == nil
	if !isNull {
		value := reflect.ValueOf(lhs)
		switch value.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
			isNull = value.IsNil()
		}
	}
	return isNull == rhs.(bool), nil
}

// prepareRegex compiles the pattern anchored at both ends so matches are
// full matches, with an optional flag prefix for case-insensitivity.
func prepareRegex(flags string) func(rhs any) (any, error) {
	return func(rhs any) (any, error) {
		pattern, ok := rhs.(string)
		if !ok {
			return nil, fmt.Errorf("regex takes a string pattern, got %T", rhs)
		}
		re, err := regexp.Compile(flags + `\A(?:` + pattern + `)\z`)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
		}
		return re, nil
	}
}

func matchRegex(lhs, rhs any) (bool, error) {
	return rhs.(*regexp.Regexp).MatchString(stringify(lhs)), nil
}

func prepareDivisor(rhs any) (any, error) {
	divisor, ok := toInt64(rhs)
	if !ok || divisor == 0 {
		return nil, fmt.Errorf("divisible_by requires a non-zero integer, got %v", rhs)
	}
	return divisor, nil
}

// prepareType accepts a reflect.Type directly or derives one from a sample
// value. Interface types are conveniently expressed as (*Iface)(nil).
func prepareType(rhs any) (any, error) {
	if t, ok := rhs.(reflect.Type); ok {
		return normalizeType(t), nil
	}
	if rhs == nil {
		return nil, fmt.Errorf("type comparator requires a type or sample value")
	}
	return normalizeType(reflect.TypeOf(rhs)), nil
}

func normalizeType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Interface {
		return t.Elem()
	}
	return t
}

func matchIsInstance(lhs, rhs any) (bool, error) {
	want := rhs.(reflect.Type)
	if lhs == nil {
		return false, nil
	}
	have := reflect.TypeOf(lhs)
	if have == want {
		return true, nil
	}
	if want.Kind() == reflect.Interface {
		return have.Implements(want), nil
	}
	return have.AssignableTo(want), nil
}

// matchIsSubclass expects the looked-up value itself to be a reflect.Type
// and tests whether it satisfies the comparison type.
func matchIsSubclass(lhs, rhs any) (bool, error) {
	have, ok := lhs.(reflect.Type)
	if !ok {
		return false, fmt.Errorf("issubclass: looked-up value %T is not a reflect.Type", lhs)
	}
	want := rhs.(reflect.Type)
	if have == want {
		return true, nil
	}
	if want.Kind() == reflect.Interface {
		return have.Implements(want), nil
	}
	return have.AssignableTo(want), nil
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	value := indirect(reflect.ValueOf(v))
	if value.IsValid() && value.Kind() == reflect.String {
		return value.String()
	}
	return fmt.Sprint(v)
}

// compareValues orders two values when a total order exists between them:
// numerics (mixed kinds allowed), strings, booleans, and time.Time.
func compareValues(lhs, rhs any) (int, error) {
	if lt, ok := lhs.(time.Time); ok {
		rt, ok := rhs.(time.Time)
		if !ok {
			return 0, fmt.Errorf("cannot compare time.Time with %T", rhs)
		}
		return lt.Compare(rt), nil
	}

	lv := indirect(reflect.ValueOf(lhs))
	rv := indirect(reflect.ValueOf(rhs))
	if !lv.IsValid() || !rv.IsValid() {
		return 0, fmt.Errorf("cannot compare %T with %T", lhs, rhs)
	}

	if lf, ok := toFloat(lv); ok {
		rf, okr := toFloat(rv)
		if !okr {
			return 0, fmt.Errorf("cannot compare %T with %T", lhs, rhs)
		}
		switch {
		case lf < rf:
			return -1, nil
		case lf > rf:
			return 1, nil
		default:
			return 0, nil
		}
	}

	if lv.Kind() == reflect.String && rv.Kind() == reflect.String {
		return strings.Compare(lv.String(), rv.String()), nil
	}

	if lv.Kind() == reflect.Bool && rv.Kind() == reflect.Bool {
		switch {
		case lv.Bool() == rv.Bool():
			return 0, nil
		case rv.Bool():
			return -1, nil
		default:
			return 1, nil
		}
	}

	return 0, fmt.Errorf("no ordering between %T and %T", lhs, rhs)
}

func toFloat(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	default:
		return 0, false
	}
}

func toInt64(v any) (int64, bool) {
	value := indirect(reflect.ValueOf(v))
	if !value.IsValid() {
		return 0, false
	}
	switch value.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return value.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(value.Uint()), true
	default:
		return 0, false
	}
}
