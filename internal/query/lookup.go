package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Separator splits lookup expressions into path segments and the trailing
// comparator name.
const Separator = "__"

// LookupError reports a field path that could not be resolved against a
// record. Resolving a lookup against a missing field is a programmer error;
// Match panics with this type rather than returning it.
type LookupError struct {
	Path    string
	Segment string
	Type    reflect.Type
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("query: cannot resolve %q: segment %q not found on %s", e.Path, e.Segment, e.Type)
}

// resolvePath walks a record left-to-right through the path segments. Each
// segment is tried, in order, as a zero-argument method, a named field, and
// a keyed or indexed access. The closed strategy order is deliberate; there
// is no runtime extension point.
func resolvePath(record any, path string, segments []string) any {
	value := reflect.ValueOf(record)
	for _, segment := range segments {
		next, ok := resolveSegment(value, segment)
		if !ok {
			panic(&LookupError{Path: path, Segment: segment, Type: value.Type()})
		}
		value = next
	}
	if !value.IsValid() {
		return nil
	}
	return value.Interface()
}

func resolveSegment(value reflect.Value, segment string) (reflect.Value, bool) {
	value = indirect(value)
	if !value.IsValid() {
		return reflect.Value{}, false
	}

	if method, ok := zeroArgMethod(value, segment); ok {
		return method, true
	}
	if field, ok := namedField(value, segment); ok {
		return field, true
	}
	return keyedAccess(value, segment)
}

func indirect(value reflect.Value) reflect.Value {
	for value.IsValid() && (value.Kind() == reflect.Pointer || value.Kind() == reflect.Interface) {
		if value.IsNil() {
			return reflect.Value{}
		}
		value = value.Elem()
	}
	return value
}

// zeroArgMethod matches exported niladic methods with at most one result,
// trying both the exact segment and its exported CamelCase form. The
// pointer method set is consulted when the value is addressable.
func zeroArgMethod(value reflect.Value, segment string) (reflect.Value, bool) {
	candidates := []string{exportedName(segment), segment}
	receivers := []reflect.Value{value}
	if value.CanAddr() {
		receivers = append(receivers, value.Addr())
	}
	for _, recv := range receivers {
		for _, name := range candidates {
			method := recv.MethodByName(name)
			if !method.IsValid() {
				continue
			}
			mt := method.Type()
			if mt.NumIn() != 0 || mt.NumOut() != 1 {
				continue
			}
			return method.Call(nil)[0], true
		}
	}
	return reflect.Value{}, false
}

func namedField(value reflect.Value, segment string) (reflect.Value, bool) {
	if value.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	if field := value.FieldByName(exportedName(segment)); field.IsValid() {
		return field, true
	}
	if field := value.FieldByName(segment); field.IsValid() {
		return field, true
	}
	// Fall back to a case-insensitive scan so "pageurls" still finds
	// PageURLs even though segment casing cannot reconstruct initialisms.
	target := strings.ReplaceAll(strings.ToLower(segment), "_", "")
	t := value.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		if strings.ToLower(sf.Name) == target {
			return value.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func keyedAccess(value reflect.Value, segment string) (reflect.Value, bool) {
	switch value.Kind() {
	case reflect.Map:
		if value.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, false
		}
		key := reflect.ValueOf(segment).Convert(value.Type().Key())
		entry := value.MapIndex(key)
		if !entry.IsValid() {
			return reflect.Value{}, false
		}
		return entry, true
	case reflect.Slice, reflect.Array, reflect.String:
		index, err := strconv.Atoi(segment)
		if err != nil || index < 0 || index >= value.Len() {
			return reflect.Value{}, false
		}
		return value.Index(index), true
	default:
		return reflect.Value{}, false
	}
}

// exportedName converts a snake_case segment into the exported Go
// identifier it most likely names: "aspect_ratio" becomes "AspectRatio",
// "id" becomes "ID".
func exportedName(segment string) string {
	parts := strings.Split(segment, "_")
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		if initialism, ok := commonInitialisms[strings.ToLower(part)]; ok {
			b.WriteString(initialism)
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

var commonInitialisms = map[string]string{
	"id":   "ID",
	"url":  "URL",
	"urls": "URLs",
	"api":  "API",
}
