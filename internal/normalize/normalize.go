// Package normalize turns scraped free text into structured values.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Value is the normalized form of a scraped text field: either a single
// string or an ordered list of non-empty lines. It marshals as a JSON string
// or a JSON array accordingly.
type Value struct {
	scalar string
	lines  []string
}

func Scalar(s string) Value {
	return Value{scalar: s}
}

func List(lines ...string) Value {
	if len(lines) < 2 {
		if len(lines) == 1 {
			return Value{scalar: lines[0]}
		}
		return Value{}
	}
	cp := make([]string, len(lines))
	copy(cp, lines)
	return Value{lines: cp}
}

// Text splits s on line breaks, trims each line and drops empty ones.
// Zero or one surviving line yields the trimmed input as a scalar, two or
// more yield the lines in order.
func Text(s string) Value {
	raw := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")

	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	if len(lines) <= 1 {
		return Value{scalar: strings.TrimSpace(s)}
	}
	return Value{lines: lines}
}

func (v Value) IsList() bool {
	return v.lines != nil
}

func (v Value) IsEmpty() bool {
	return v.lines == nil && v.scalar == ""
}

// Lines returns the list form. A non-empty scalar is a single line.
func (v Value) Lines() []string {
	if v.lines != nil {
		out := make([]string, len(v.lines))
		copy(out, v.lines)
		return out
	}
	if v.scalar == "" {
		return nil
	}
	return []string{v.scalar}
}

// String returns the scalar, or the lines joined by newlines.
func (v Value) String() string {
	if v.lines != nil {
		return strings.Join(v.lines, "\n")
	}
	return v.scalar
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.lines != nil {
		return json.Marshal(v.lines)
	}
	return json.Marshal(v.scalar)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = Value{}
		return nil
	case len(data) > 0 && data[0] == '[':
		var lines []string
		if err := json.Unmarshal(data, &lines); err != nil {
			return fmt.Errorf("decoding value list: %w", err)
		}
		*v = List(lines...)
		return nil
	default:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding value: %w", err)
		}
		*v = Value{scalar: s}
		return nil
	}
}

// Price parses a VND price such as "30.990.000₫" or "Giá: 1,290,000đ" into
// its integer amount. ok is false when the text holds no digits.
func Price(s string) (amount int64, ok bool) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}

	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Percent parses a discount label such as "-12%" into 12.
func Percent(s string) (int, bool) {
	n, ok := Price(s)
	if !ok || n > 100 {
		return 0, false
	}
	return int(n), true
}
