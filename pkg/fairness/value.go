package fairness

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Value is a metric result that may be undefined when its denominator is zero.
type Value struct {
	Value   float64
	Defined bool
}

// Defined returns a computed metric value.
func Defined(v float64) Value {
	return Value{Value: v, Defined: true}
}

// Undefined is the marker for a metric with a zero denominator.
var Undefined = Value{}

func ratio(num, den int) Value {
	if den == 0 {
		return Undefined
	}
	return Defined(float64(num) / float64(den))
}

func (v Value) sub(o Value) Value {
	if !v.Defined || !o.Defined {
		return Undefined
	}
	return Defined(v.Value - o.Value)
}

func (v Value) div(o Value) Value {
	if !v.Defined || !o.Defined || o.Value == 0 {
		return Undefined
	}
	return Defined(v.Value / o.Value)
}

func mean(a, b Value) Value {
	if !a.Defined || !b.Defined {
		return Undefined
	}
	return Defined((a.Value + b.Value) / 2)
}

// String renders the value, or "undefined".
func (v Value) String() string {
	if !v.Defined {
		return "undefined"
	}
	return strconv.FormatFloat(v.Value, 'f', -1, 64)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(v.Value)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Undefined
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("decoding metric value: %w", err)
	}
	*v = Defined(f)
	return nil
}

func (v Value) MarshalYAML() (any, error) {
	if !v.Defined {
		return nil, nil
	}
	return v.Value, nil
}
