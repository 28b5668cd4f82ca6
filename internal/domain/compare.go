package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Value classes in sort order. Values of different classes never compare by
// content, so a column mixing numbers and text still sorts consistently.
const (
	classNil = iota
	classNumber
	classString
	classBool
	classTime
	classOther
)

// number is a numeric cell widened without loss: exactly one of the fields is
// meaningful, picked by kind.
type number struct {
	kind byte // 'i', 'u' or 'f'
	i    int64
	u    uint64
	f    float64
}

// CompareValues orders two cell values and returns -1, 0 or 1.
//
// Values are ranked by class first: nil, numbers, strings, booleans, times, then
// anything else. Within a class, numbers of any width compare exactly, strings
// lexically, false before true and times chronologically. Only the last class
// falls back to comparing the fmt %v form.
func CompareValues(a, b any) int {
	ca, cb := valueClass(a), valueClass(b)
	if ca != cb {
		return compareOrdered(ca, cb)
	}

	switch ca {
	case classNil:
		return 0
	case classNumber:
		an, _ := toNumber(a)
		bn, _ := toNumber(b)
		return compareNumbers(an, bn)
	case classString:
		return strings.Compare(toText(a), toText(b))
	case classBool:
		av, bv := a.(bool), b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case classTime:
		return a.(time.Time).Compare(b.(time.Time))
	default:
		return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
	}
}

func valueClass(v any) int {
	if v == nil {
		return classNil
	}
	if _, ok := toNumber(v); ok {
		return classNumber
	}
	switch v.(type) {
	case string, []byte:
		return classString
	case bool:
		return classBool
	case time.Time:
		return classTime
	default:
		return classOther
	}
}

func toText(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v.(string)
}

func compareOrdered[T int | int64 | uint64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareNumbers(a, b number) int {
	switch {
	case a.kind == 'i' && b.kind == 'i':
		return compareOrdered(a.i, b.i)
	case a.kind == 'u' && b.kind == 'u':
		return compareOrdered(a.u, b.u)
	case a.kind == 'i' && b.kind == 'u':
		if a.i < 0 {
			return -1
		}
		return compareOrdered(uint64(a.i), b.u)
	case a.kind == 'u' && b.kind == 'i':
		return -compareNumbers(b, a)
	case a.kind == 'f' && b.kind == 'f':
		return compareFloats(a.f, b.f)
	case a.kind == 'f':
		return -compareNumbers(b, a)
	default:
		return compareIntFloat(a, b.f)
	}
}

// compareFloats puts NaN before every other float so the order stays total.
func compareFloats(a, b float64) int {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	}
	return compareOrdered(a, b)
}

// compareIntFloat compares an integer number with f without rounding the integer.
func compareIntFloat(n number, f float64) int {
	if math.IsNaN(f) {
		return 1
	}
	if n.kind == 'i' {
		switch {
		case f >= math.MaxInt64: // 2^63, above every int64
			return -1
		case f < math.MinInt64:
			return 1
		}
		t := math.Trunc(f)
		if c := compareOrdered(n.i, int64(t)); c != 0 {
			return c
		}
		return compareOrdered(t, f)
	}
	switch {
	case f >= math.MaxUint64: // 2^64, above every uint64
		return -1
	case f < 0:
		return 1
	}
	t := math.Trunc(f)
	if c := compareOrdered(n.u, uint64(t)); c != 0 {
		return c
	}
	return compareOrdered(t, f)
}

func toNumber(v any) (number, bool) {
	switch n := v.(type) {
	case int:
		return number{kind: 'i', i: int64(n)}, true
	case int8:
		return number{kind: 'i', i: int64(n)}, true
	case int16:
		return number{kind: 'i', i: int64(n)}, true
	case int32:
		return number{kind: 'i', i: int64(n)}, true
	case int64:
		return number{kind: 'i', i: n}, true
	case uint:
		return number{kind: 'u', u: uint64(n)}, true
	case uint8:
		return number{kind: 'u', u: uint64(n)}, true
	case uint16:
		return number{kind: 'u', u: uint64(n)}, true
	case uint32:
		return number{kind: 'u', u: uint64(n)}, true
	case uint64:
		return number{kind: 'u', u: n}, true
	case float32:
		return number{kind: 'f', f: float64(n)}, true
	case float64:
		return number{kind: 'f', f: n}, true
	default:
		return number{}, false
	}
}
