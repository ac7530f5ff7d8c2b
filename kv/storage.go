package kv

import (
	"iter"
	"unicode/utf8"

	"github.com/ember-web/ember/http/status"
	"github.com/ember-web/ember/internal/strutil"
)

type Pair struct {
	Key, Value string
}

// Storage is an ordered multimap for (string, string) pairs, used first of all as
// the header map. Insertion order is preserved for serialization and iteration,
// duplicates are kept, and lookup is case-insensitive by linear search, which
// proves to be more efficient than a map on the usually low amount of entries.
//
// Values are raw octets stored in string form and may legally contain non-textual
// bytes; use Text for a validated accessor.
type Storage struct {
	pairs      []Pair
	valuesBuff []string
}

func New() *Storage {
	return new(Storage)
}

// NewPrealloc returns an instance of Storage with pre-allocated underlying storage.
func NewPrealloc(n int) *Storage {
	return &Storage{
		pairs: make([]Pair, 0, n),
	}
}

// Add appends a new pair, preserving already existing pairs with the same key.
func (s *Storage) Add(key, value string) *Storage {
	s.pairs = append(s.pairs, Pair{
		Key:   key,
		Value: value,
	})
	return s
}

// Value returns the first value corresponding to the key, otherwise an empty string.
func (s *Storage) Value(key string) string {
	return s.ValueOr(key, "")
}

// ValueOr returns either the first value corresponding to the key or the fallback.
func (s *Storage) ValueOr(key, or string) string {
	value, found := s.Get(key)
	if !found {
		return or
	}

	return value
}

// Get returns the first matching value and a bool indicating whether it was found.
func (s *Storage) Get(key string) (value string, found bool) {
	for _, pair := range s.pairs {
		if strutil.CmpFold(key, pair.Key) {
			return pair.Value, true
		}
	}

	return "", false
}

// Text returns the first matching value, validated to be representable as text:
// valid UTF-8 without control bytes. Non-textual values yield an encoding error.
func (s *Storage) Text(key string) (value string, err error) {
	value, found := s.Get(key)
	if !found {
		return "", nil
	}

	if !utf8.ValidString(value) {
		return "", status.ErrNonTextualValue
	}

	for i := 0; i < len(value); i++ {
		if value[i] < 0x20 && value[i] != '\t' || value[i] == 0x7f {
			return "", status.ErrNonTextualValue
		}
	}

	return value, nil
}

// Values returns all values by the key in insertion order. Returns nil if the key
// doesn't exist.
//
// WARNING: calling it twice will override values returned by the first call.
// Consider copying the returned slice for safe use.
func (s *Storage) Values(key string) (values []string) {
	s.valuesBuff = s.valuesBuff[:0]

	for _, pair := range s.pairs {
		if strutil.CmpFold(pair.Key, key) {
			s.valuesBuff = append(s.valuesBuff, pair.Value)
		}
	}

	if len(s.valuesBuff) == 0 {
		return nil
	}

	return s.valuesBuff
}

// Has indicates whether there's an entry with the key.
func (s *Storage) Has(key string) bool {
	_, found := s.Get(key)
	return found
}

// Iter returns an iterator over the pairs in insertion order.
func (s *Storage) Iter() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, pair := range s.pairs {
			if !yield(pair.Key, pair.Value) {
				break
			}
		}
	}
}

// Len returns the number of stored pairs.
func (s *Storage) Len() int {
	return len(s.pairs)
}

func (s *Storage) Empty() bool {
	return s.Len() == 0
}

// Expose exposes the underlying pairs slice in insertion order.
func (s *Storage) Expose() []Pair {
	return s.pairs
}

// Clone creates a deep copy which may be stored somewhere safely.
func (s *Storage) Clone() *Storage {
	pairs := make([]Pair, len(s.pairs))
	copy(pairs, s.pairs)

	return &Storage{pairs: pairs}
}

// Clear drops all the entries, keeping the allocated space.
func (s *Storage) Clear() *Storage {
	s.pairs = s.pairs[:0]
	return s
}
