package variant

import (
	"encoding/json"
	"fmt"
	"time"
)

type wireVariant struct {
	Kind   string            `json:"kind"`
	List   bool              `json:"list"`
	Values []json.RawMessage `json:"values"`
}

// MarshalJSON encodes v as {"kind":"int","list":false,"values":[...]}.
// Timestamps are written as RFC 3339 strings.
func (v Variant) MarshalJSON() ([]byte, error) {
	w := wireVariant{Kind: v.kind.String(), List: v.list, Values: make([]json.RawMessage, 0, len(v.values))}
	for _, x := range v.values {
		if t, ok := x.(time.Time); ok {
			x = t.Format(time.RFC3339Nano)
		}
		raw, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("marshal variant value: %w", err)
		}
		w.Values = append(w.Values, raw)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the format written by MarshalJSON.
func (v *Variant) UnmarshalJSON(data []byte) error {
	var w wireVariant
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("unmarshal variant: %w", err)
	}
	kind, err := ParseKind(w.Kind)
	if err != nil {
		return err
	}
	if kind == Invalid {
		*v = Variant{}
		return nil
	}

	out := Variant{kind: kind, list: w.List || len(w.Values) != 1, values: make([]any, 0, len(w.Values))}
	for _, raw := range w.Values {
		x, err := decodeValue(kind, raw)
		if err != nil {
			return err
		}
		out.values = append(out.values, x)
	}
	*v = out
	return nil
}

func decodeValue(k Kind, raw json.RawMessage) (any, error) {
	var err error
	switch k {
	case Int:
		var n int64
		err = json.Unmarshal(raw, &n)
		if err == nil {
			return n, nil
		}
	case Double:
		var f float64
		err = json.Unmarshal(raw, &f)
		if err == nil {
			return f, nil
		}
	case Bool:
		var b bool
		err = json.Unmarshal(raw, &b)
		if err == nil {
			return b, nil
		}
	case String, Resource:
		var s string
		err = json.Unmarshal(raw, &s)
		if err == nil {
			return s, nil
		}
	case DateTime:
		var s string
		if err = json.Unmarshal(raw, &s); err == nil {
			var t time.Time
			t, err = time.Parse(time.RFC3339Nano, s)
			if err == nil {
				return t.UTC(), nil
			}
		}
	}
	return nil, fmt.Errorf("decode %s value %s: %w", k, raw, err)
}
