package model

import "sort"

// Metadata maps a field name to its ordered values. The order of the values is the
// order in which they were added.
type Metadata map[string][]string

// Add appends values to a field, keeping any existing value.
func (m Metadata) Add(field string, values ...string) {
	m[field] = append(m[field], values...)
}

// Set replaces all the values of a field.
func (m Metadata) Set(field string, values ...string) {
	m[field] = append([]string(nil), values...)
}

// Get returns the values of a field.
func (m Metadata) Get(field string) []string { return m[field] }

// GetFirst returns the first value of a field or empty if the field has no values.
func (m Metadata) GetFirst(field string) string {
	values := m[field]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Fields returns the sorted field names.
func (m Metadata) Fields() []string {
	fields := make([]string, 0, len(m))
	for k := range m {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// Clone returns a deep copy.
func (m Metadata) Clone() Metadata {
	c := make(Metadata, len(m))
	for k, v := range m {
		c[k] = append([]string(nil), v...)
	}
	return c
}
