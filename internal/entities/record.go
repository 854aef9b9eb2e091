package entities

// Record is a loosely-typed entity row from a named collection. The group
// service owns the "groups" collection; "owners" and "users" are externally
// owned, so records from those collections may carry an ID and nothing else.
type Record struct {
	ID     string
	Fields map[string]any
}

// NewRecord creates a record with an empty field map
func NewRecord(id string) *Record {
	return &Record{ID: id, Fields: map[string]any{}}
}

// GetString returns the named field as a string, or "" if absent or not a string
func (r *Record) GetString(key string) string {
	if r.Fields == nil {
		return ""
	}
	s, _ := r.Fields[key].(string)
	return s
}

// GetBool returns the named field as a bool, or false if absent or not a bool
func (r *Record) GetBool(key string) bool {
	if r.Fields == nil {
		return false
	}
	b, _ := r.Fields[key].(bool)
	return b
}

// GetStrings returns the named field as a string slice. JSON decoding yields
// []any, so both representations are accepted.
func (r *Record) GetStrings(key string) []string {
	if r.Fields == nil {
		return nil
	}
	switch v := r.Fields[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// GetInt returns the named field as an int. JSON decoding yields float64,
// so both representations are accepted.
func (r *Record) GetInt(key string) int {
	if r.Fields == nil {
		return 0
	}
	switch v := r.Fields[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Clone returns a shallow copy of the record with a copied field map
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := &Record{ID: r.ID}
	if r.Fields != nil {
		c.Fields = make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			c.Fields[k] = v
		}
	}
	return c
}
