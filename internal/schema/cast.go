package schema

import (
	"fmt"
	"math"
	"strconv"
)

// Cast converts v to the Go type of kind: int64 for Int, string for Text.
// The driver may hand back text stored under integer affinity and vice versa,
// and callers may set plain ints; all of them end up in one representation.
// nil becomes the zero value.
func Cast(kind Kind, v any) (any, error) {
	switch kind {
	case Int:
		return ToInt(v)
	case Text:
		return ToText(v)
	}
	return nil, fmt.Errorf("unknown column kind %d", kind)
}

// ToInt converts a scalar to int64.
func ToInt(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", x)
		}
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("value %v is not integral", x)
		}
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		if x == "" {
			return 0, nil
		}
		return strconv.ParseInt(x, 10, 64)
	case []byte:
		if len(x) == 0 {
			return 0, nil
		}
		return strconv.ParseInt(string(x), 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to integer", v)
}

// ToText converts a scalar to string.
func ToText(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case int:
		return strconv.Itoa(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("cannot convert %T to text", v)
}
