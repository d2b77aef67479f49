// Package analysis classifies how the methods of a class use its members.
//
// For every method and constructor it builds a Record of the names the body
// reads, writes and calls. Classification is purely syntactic: a name is a
// field if it is spelled like one, and no types are resolved.
package analysis

import (
	"encoding/json"
	"sort"
)

// Set is a deduplicated set of member names.
type Set map[string]struct{}

// NewSet creates a set holding names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts name. Empty names are ignored.
func (s Set) Add(name string) {
	if name == "" {
		return
	}
	s[name] = struct{}{}
}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the names in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Union adds every name of other to s.
func (s Set) Union(other Set) {
	for n := range other {
		s[n] = struct{}{}
	}
}

// MarshalJSON encodes the set as a sorted array.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of names.
func (s *Set) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewSet(names...)
	return nil
}

// Record is the relationship record of one method or constructor.
type Record struct {
	// Reads holds the names the body reads.
	Reads Set `json:"reads"`

	// Writes holds the names the body writes.
	Writes Set `json:"writes"`

	// Calls holds the names of methods the body invokes.
	Calls Set `json:"calls"`
}

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{
		Reads:  NewSet(),
		Writes: NewSet(),
		Calls:  NewSet(),
	}
}

// Merge adds every entry of other into r.
func (r *Record) Merge(other *Record) {
	r.Reads.Union(other.Reads)
	r.Writes.Union(other.Writes)
	r.Calls.Union(other.Calls)
}

// Relationships maps a method name to its record. Constructors are keyed by
// syntax.ConstructorName.
type Relationships map[string]*Record

// Names returns the method names in lexical order.
func (r Relationships) Names() []string {
	out := make([]string, 0, len(r))
	for n := range r {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// add merges rec into the record for name, creating it if needed.
// Overloads share a name, so their records are combined.
func (r Relationships) add(name string, rec *Record) {
	if existing, ok := r[name]; ok {
		existing.Merge(rec)
		return
	}
	r[name] = rec
}
