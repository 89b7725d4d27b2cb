package reservation

import (
	"bytes"
	"encoding/json"
	"math"
)

// Scalar keeps the raw JSON of a request field. Type problems are then
// reported by admission checks, in check order, instead of failing decoding.
type Scalar json.RawMessage

func IntScalar(n int) Scalar {
	b, _ := json.Marshal(n)
	return Scalar(b)
}

func StringScalar(s string) Scalar {
	b, _ := json.Marshal(s)
	return Scalar(b)
}

func (s *Scalar) UnmarshalJSON(data []byte) error {
	*s = append((*s)[:0], data...)
	return nil
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("null"), nil
	}
	return s, nil
}

// Int returns the value when it is a JSON integer literal (4, not 4.0 or "4").
func (s Scalar) Int() (int, bool) {
	dec := json.NewDecoder(bytes.NewReader(s))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	n, err := num.Int64()
	if err != nil || n > math.MaxInt32 || n < math.MinInt32 {
		return 0, false
	}
	return int(n), true
}

// ID returns the value when it is a positive JSON integer.
func (s Scalar) ID() (uint, bool) {
	n, ok := s.Int()
	if !ok || n < 1 {
		return 0, false
	}
	return uint(n), true
}

func (s Scalar) Text() (string, bool) {
	var v string
	if len(s) == 0 || json.Unmarshal(s, &v) != nil {
		return "", false
	}
	return v, true
}

func (s Scalar) intPtr() *int {
	if n, ok := s.Int(); ok {
		return &n
	}
	return nil
}

func (s Scalar) idPtr() *uint {
	if id, ok := s.ID(); ok {
		return &id
	}
	return nil
}
