package schema

import (
	"bytes"
	"fmt"
)

// Kind is the tag of the closed value-domain sum type described in the
// engine's data model: every column value is one of these six scalar kinds
// or Null.
type Kind int

const (
	KindNull Kind = iota
	KindInteger
	KindReal
	KindText
	KindBoolean
	KindDateTime
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	case KindBoolean:
		return "boolean"
	case KindDateTime:
		return "datetime"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Value is a column value. Only one of the typed fields is meaningful,
// selected by Kind. DateTime is stored as epoch milliseconds in Int, per
// the data model.
type Value struct {
	Kind Kind
	Int  int64
	Real float64
	Str  string
	Bool bool
	Bin  []byte
}

func Null() Value                  { return Value{Kind: KindNull} }
func Integer(v int64) Value        { return Value{Kind: KindInteger, Int: v} }
func Real(v float64) Value         { return Value{Kind: KindReal, Real: v} }
func Text(v string) Value          { return Value{Kind: KindText, Str: v} }
func Boolean(v bool) Value         { return Value{Kind: KindBoolean, Bool: v} }
func DateTime(epochMs int64) Value { return Value{Kind: KindDateTime, Int: epochMs} }
func Binary(v []byte) Value        { return Value{Kind: KindBinary, Bin: v} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

// Equal reports structural equality; values of different kinds are never
// equal, matching the "no cross-type coercion" invariant.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindInteger, KindDateTime:
		return v.Int == other.Int
	case KindReal:
		return v.Real == other.Real
	case KindText:
		return v.Str == other.Str
	case KindBoolean:
		return v.Bool == other.Bool
	case KindBinary:
		return bytes.Equal(v.Bin, other.Bin)
	default:
		return false
	}
}

// Compare orders two values of the same Kind. It panics on Null or
// mismatched kinds — callers (key ranges, ordered indices) must never
// compare a null key, per the data model's "null is not a valid index key".
func Compare(a, b Value) int {
	if a.Kind != b.Kind {
		panic(fmt.Sprintf("schema: cannot compare values of kind %s and %s", a.Kind, b.Kind))
	}
	switch a.Kind {
	case KindInteger, KindDateTime:
		switch {
		case a.Int < b.Int:
			return -1
		case a.Int > b.Int:
			return 1
		default:
			return 0
		}
	case KindReal:
		switch {
		case a.Real < b.Real:
			return -1
		case a.Real > b.Real:
			return 1
		default:
			return 0
		}
	case KindText:
		return compareText(a.Str, b.Str)
	case KindBoolean:
		if a.Bool == b.Bool {
			return 0
		}
		if !a.Bool {
			return -1
		}
		return 1
	case KindBinary:
		return bytes.Compare(a.Bin, b.Bin)
	default:
		panic(fmt.Sprintf("schema: kind %s is not orderable", a.Kind))
	}
}

// compareText orders by Unicode code-unit (UTF-16 style) order, as the data
// model specifies, which for Go's UTF-8 strings coincides with plain byte
// comparison for the code-point ranges this engine targets.
func compareText(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
