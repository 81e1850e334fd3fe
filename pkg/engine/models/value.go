// Package models defines the core data structures shared by the
// calculation engine: cell values, references, the workbook load
// payload, and the external estimate records.
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrorCode represents standard spreadsheet error codes following
// Excel conventions. The display string is the code itself so error
// cells round-trip through JSON unchanged.
type ErrorCode string

const (
	ErrorNull  ErrorCode = "#NULL!"  // no cells in common between ranges
	ErrorDiv0  ErrorCode = "#DIV/0!" // division by zero
	ErrorValue ErrorCode = "#VALUE!" // wrong type of argument or operand
	ErrorRef   ErrorCode = "#REF!"   // invalid cell reference
	ErrorName  ErrorCode = "#NAME?"  // unrecognized function or range name
	ErrorNum   ErrorCode = "#NUM!"   // number too large or small to represent
	ErrorNA    ErrorCode = "#N/A"    // value not available
)

// IsErrorCode reports whether s is one of the fixed spreadsheet error codes.
func IsErrorCode(s string) bool {
	switch ErrorCode(s) {
	case ErrorNull, ErrorDiv0, ErrorValue, ErrorRef, ErrorName, ErrorNum, ErrorNA:
		return true
	}
	return false
}

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindNumber
	KindText
	KindBool
	KindTime
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindError:
		return "error"
	}
	return "unknown"
}

// Value is a tagged cell value: number (arbitrary-precision decimal),
// text, boolean, date/time, or spreadsheet error code. A Value holds at
// most one of {value, error} at a time.
type Value struct {
	Kind Kind
	Num  decimal.Decimal
	Text string
	Bool bool
	Time time.Time
	Err  ErrorCode
}

// Empty returns the empty (unset) value.
func Empty() Value { return Value{Kind: KindEmpty} }

// Number returns a numeric value.
func Number(d decimal.Decimal) Value { return Value{Kind: KindNumber, Num: d} }

// NumberFromFloat returns a numeric value converted from a float64.
func NumberFromFloat(f float64) Value {
	return Value{Kind: KindNumber, Num: decimal.NewFromFloat(f)}
}

// NumberFromInt returns a numeric value converted from an int64.
func NumberFromInt(i int64) Value {
	return Value{Kind: KindNumber, Num: decimal.NewFromInt(i)}
}

// Text returns a text value.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Boolean returns a boolean value.
func Boolean(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// TimeValue returns a date/time value.
func TimeValue(t time.Time) Value { return Value{Kind: KindTime, Time: t} }

// Error returns an error value carrying a spreadsheet error code.
func Error(code ErrorCode) Value { return Value{Kind: KindError, Err: code} }

// Zero is the numeric zero value that unset cells evaluate to.
func Zero() Value { return Value{Kind: KindNumber, Num: decimal.Zero} }

// IsError reports whether the value is a spreadsheet error.
func (v Value) IsError() bool { return v.Kind == KindError }

// IsBlank reports whether the value is empty or an empty string.
func (v Value) IsBlank() bool {
	return v.Kind == KindEmpty || (v.Kind == KindText && v.Text == "")
}

// IsNumeric reports whether the value is a number or date/time.
func (v Value) IsNumeric() bool { return v.Kind == KindNumber || v.Kind == KindTime }

// Excel date/time serial constants. Excel serial day 0 is
// December 30, 1899 00:00:00 UTC (the 1900 leap-year bug folded in).
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

const secondsPerDay = 86400

// SerialFromTime converts a time to its Excel serial number.
func SerialFromTime(t time.Time) decimal.Decimal {
	secs := t.UTC().Sub(excelEpoch).Seconds()
	return decimal.NewFromFloat(secs / secondsPerDay)
}

// TimeFromSerial converts an Excel serial number to a time.
func TimeFromSerial(serial decimal.Decimal) time.Time {
	secs, _ := serial.Mul(decimal.NewFromInt(secondsPerDay)).Round(0).Float64()
	return excelEpoch.Add(time.Duration(secs) * time.Second)
}

// AsNumber coerces the value to a decimal. Booleans coerce to 0/1,
// blanks to zero, date/times to their Excel serial, numeric-looking
// text to its parsed value. Returns ok=false when no numeric coercion
// exists (non-numeric text, errors).
func (v Value) AsNumber() (decimal.Decimal, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindBool:
		if v.Bool {
			return decimal.NewFromInt(1), true
		}
		return decimal.Zero, true
	case KindEmpty:
		return decimal.Zero, true
	case KindTime:
		return SerialFromTime(v.Time), true
	case KindText:
		d, err := decimal.NewFromString(strings.TrimSpace(v.Text))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}

// AsFloat coerces the value to a float64 using the same rules as AsNumber.
func (v Value) AsFloat() (float64, bool) {
	d, ok := v.AsNumber()
	if !ok {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// StrictNumber reports the decimal only for values that are already
// numeric (number, date/time). Text is not coerced; this is the COUNT
// notion of "numeric".
func (v Value) StrictNumber() (decimal.Decimal, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindTime:
		return SerialFromTime(v.Time), true
	}
	return decimal.Zero, false
}

// AsString renders the value the way a cell displays it.
func (v Value) AsString() string {
	switch v.Kind {
	case KindEmpty:
		return ""
	case KindNumber:
		return v.Num.String()
	case KindText:
		return v.Text
	case KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case KindTime:
		return v.Time.UTC().Format("2006-01-02 15:04:05")
	case KindError:
		return string(v.Err)
	}
	return ""
}

// IsTruthy reports the boolean interpretation of the value: FALSE,
// zero, blank and empty text are false, everything else true.
func (v Value) IsTruthy() bool {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return !v.Num.IsZero()
	case KindText:
		return v.Text != ""
	case KindEmpty:
		return false
	case KindTime:
		return true
	}
	return false
}

// Compare orders two values the way comparison operators do: numeric
// comparison when both sides coerce to numbers, case-insensitive
// lexical comparison otherwise. Returns -1, 0 or 1.
func Compare(a, b Value) int {
	an, aok := a.AsNumber()
	bn, bok := b.AsNumber()
	if aok && bok {
		return an.Cmp(bn)
	}
	return strings.Compare(strings.ToLower(a.AsString()), strings.ToLower(b.AsString()))
}

// valueJSON is the wire form of a Value for diagnostics export.
type valueJSON struct {
	Kind  string `json:"kind"`
	Value string `json:"value,omitempty"`
}

// MarshalJSON encodes the value as a {kind, value} pair so graph
// snapshots round-trip without float drift.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueJSON{Kind: v.Kind.String(), Value: v.AsString()})
}

// UnmarshalJSON restores a value from its {kind, value} wire form.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w valueJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case "empty":
		*v = Empty()
	case "number":
		d, err := decimal.NewFromString(w.Value)
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", w.Value, err)
		}
		*v = Number(d)
	case "text":
		*v = Text(w.Value)
	case "bool":
		b, err := strconv.ParseBool(strings.ToLower(w.Value))
		if err != nil {
			b = strings.EqualFold(w.Value, "TRUE")
		}
		*v = Boolean(b)
	case "time":
		t, err := time.Parse("2006-01-02 15:04:05", w.Value)
		if err != nil {
			return fmt.Errorf("invalid time %q: %w", w.Value, err)
		}
		*v = TimeValue(t.UTC())
	case "error":
		if !IsErrorCode(w.Value) {
			return fmt.Errorf("unknown error code %q", w.Value)
		}
		*v = Error(ErrorCode(w.Value))
	default:
		return fmt.Errorf("unknown value kind %q", w.Kind)
	}
	return nil
}
