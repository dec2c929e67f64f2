package executor

import (
	"bytes"
	"encoding/json"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Request is a single GraphQL request.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Result represents the result of executing a GraphQL request. Data is nil
// when validation failed or a non-null root field could not be produced.
type Result struct {
	Data   *ResultMap    `json:"data"`
	Errors gqlerror.List `json:"errors,omitempty"`
}

// ResultMap is an object in the response. Keys keep the order in which the
// fields were selected.
type ResultMap struct {
	keys   []string
	values map[string]any
}

func NewResultMap() *ResultMap {
	return &ResultMap{values: make(map[string]any)}
}

// Set writes v under key. Overwriting keeps the original position.
func (m *ResultMap) Set(key string, v any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

func (m *ResultMap) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *ResultMap) Keys() []string { return m.keys }

func (m *ResultMap) Len() int { return len(m.keys) }

// Map converts m and every nested ResultMap into plain maps.
func (m *ResultMap) Map() map[string]any {
	out := make(map[string]any, len(m.keys))
	for _, k := range m.keys {
		out[k] = plain(m.values[k])
	}
	return out
}

func plain(v any) any {
	switch v := v.(type) {
	case *ResultMap:
		if v == nil {
			return nil
		}
		return v.Map()
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = plain(v[i])
		}
		return out
	default:
		return v
	}
}

func (m *ResultMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
