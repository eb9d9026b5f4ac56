package calc

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/roach88/cubist/internal/olap"
)

// Null sentinels for unboxed numeric results.
const (
	DoubleNull  = 0.000000012345
	IntegerNull = math.MinInt64
)

// IsNull reports whether a boxed value is empty.
func IsNull(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case float64:
		return v == DoubleNull
	case int64:
		return v == IntegerNull
	case olap.Member:
		return olap.IsNullMember(v)
	case olap.Tuple:
		return v.IsNull()
	}
	return false
}

// ToDouble unboxes a scalar as a number.
func ToDouble(v any) (float64, error) {
	switch v := v.(type) {
	case nil:
		return DoubleNull, nil
	case float64:
		return v, nil
	case int64:
		if v == IntegerNull {
			return DoubleNull, nil
		}
		return float64(v), nil
	case int:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		if v == "" {
			return DoubleNull, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to a number", v)
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot convert %T to a number", v)
}

// ToInteger unboxes a scalar as an integer, truncating fractions.
func ToInteger(v any) (int64, error) {
	switch v := v.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	}
	f, err := ToDouble(v)
	if err != nil {
		return 0, err
	}
	if f == DoubleNull {
		return IntegerNull, nil
	}
	return int64(f), nil
}

// ToString unboxes a scalar as a string. Members render as their unique
// name.
func ToString(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case float64:
		if v == DoubleNull {
			return "", nil
		}
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case int64:
		if v == IntegerNull {
			return "", nil
		}
		return strconv.FormatInt(v, 10), nil
	case int:
		return strconv.Itoa(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		if v.IsZero() {
			return "", nil
		}
		return v.Format(time.RFC3339), nil
	case olap.Member:
		if olap.IsNullMember(v) {
			return "", nil
		}
		return v.UniqueName(), nil
	}
	return "", fmt.Errorf("cannot convert %T to a string", v)
}

// ToBoolean unboxes a scalar as a bool. Empty is false; numbers are true
// when non-zero.
func ToBoolean(v any) (bool, error) {
	switch v := v.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("cannot convert %q to a boolean", v)
		}
		return b, nil
	}
	f, err := ToDouble(v)
	if err != nil {
		return false, fmt.Errorf("cannot convert %T to a boolean", v)
	}
	return f != DoubleNull && f != 0, nil
}

// ToDateTime unboxes a scalar as a time. Strings are parsed as RFC 3339.
func ToDateTime(v any) (time.Time, error) {
	switch v := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case string:
		if v == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("cannot convert %q to a datetime: %w", v, err)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot convert %T to a datetime", v)
}

// FormatValue renders a boxed value for explain output and harness
// results. Empty values render as "#null".
func FormatValue(v any) string {
	if IsNull(v) {
		return "#null"
	}
	switch v := v.(type) {
	case string:
		return strconv.Quote(v)
	case olap.Tuple:
		return v.String()
	case *TupleList:
		return v.String()
	case interface{ UniqueName() string }:
		return v.UniqueName()
	}
	s, err := ToString(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

// BoxDouble boxes f for Evaluate, mapping DoubleNull to nil.
func BoxDouble(f float64) any {
	if f == DoubleNull {
		return nil
	}
	return f
}

// BoxInteger boxes i for Evaluate, mapping IntegerNull to nil.
func BoxInteger(i int64) any {
	if i == IntegerNull {
		return nil
	}
	return i
}
