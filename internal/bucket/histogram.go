package bucket

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Value is one bucket's statistic. Count and Sum buckets use Count alone;
// ComplexCount buckets carry distinct days in Count and hour rows in Hours.
type Value struct {
	Kind  Statistic
	Count int64
	Hours int64
}

// Scalar returns the value a chart plots. For ComplexCount, hours selects
// Hours over Count.
func (v Value) Scalar(hours bool) int64 {
	if v.Kind == ComplexCount && hours {
		return v.Hours
	}
	return v.Count
}

type complexValue struct {
	Count     int64 `json:"count"`
	HourCount int64 `json:"hourCount"`
}

// MarshalJSON encodes Count and Sum as a bare integer and ComplexCount as an object
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Kind == ComplexCount {
		return json.Marshal(complexValue{Count: v.Count, HourCount: v.Hours})
	}
	return json.Marshal(v.Count)
}

func decodeValue(data []byte, kind Statistic) (Value, error) {
	v := Value{Kind: kind}
	if kind == ComplexCount {
		var cv complexValue
		if err := json.Unmarshal(data, &cv); err != nil {
			return v, err
		}
		v.Count, v.Hours = cv.Count, cv.HourCount
		return v, nil
	}
	err := json.Unmarshal(data, &v.Count)
	return v, err
}

// Histogram is a nested map of bucket keys. Inner levels hold Children,
// the innermost level holds Leaves.
type Histogram struct {
	Children map[string]*Histogram
	Leaves   map[string]Value
}

// Child returns the nested histogram under key, or nil
func (h *Histogram) Child(key string) *Histogram {
	if h == nil {
		return nil
	}
	return h.Children[key]
}

// Lookup follows path to a leaf. Absent keys report false.
func (h *Histogram) Lookup(path ...string) (Value, bool) {
	if len(path) == 0 {
		return Value{}, false
	}
	node := h
	for _, key := range path[:len(path)-1] {
		node = node.Child(key)
	}
	if node == nil {
		return Value{}, false
	}
	v, ok := node.Leaves[path[len(path)-1]]
	return v, ok
}

// Len returns the number of keys at this level
func (h *Histogram) Len() int {
	if h == nil {
		return 0
	}
	if h.Leaves != nil {
		return len(h.Leaves)
	}
	return len(h.Children)
}

// MarshalJSON writes keys in sorted order, as encoding/json does for maps
func (h *Histogram) MarshalJSON() ([]byte, error) {
	if h == nil {
		return []byte("{}"), nil
	}
	if h.Leaves != nil {
		return json.Marshal(h.Leaves)
	}
	if h.Children == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(h.Children)
}

// DecodeHistogram reads a histogram of the given slice type
func DecodeHistogram(data []byte, st SliceType) (*Histogram, error) {
	h, err := decodeLevel(data, st.Depth(), st.Statistic)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", st.Name, err)
	}
	return h, nil
}

func decodeLevel(data []byte, depth int, kind Statistic) (*Histogram, error) {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return &Histogram{}, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	h := &Histogram{}
	if depth <= 1 {
		h.Leaves = make(map[string]Value, len(raw))
		for key, msg := range raw {
			v, err := decodeValue(msg, kind)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			h.Leaves[key] = v
		}
		return h, nil
	}

	h.Children = make(map[string]*Histogram, len(raw))
	for key, msg := range raw {
		child, err := decodeLevel(msg, depth-1, kind)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		h.Children[key] = child
	}
	return h, nil
}
