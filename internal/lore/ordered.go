package lore

// OrderedSet is an insertion-ordered, uniqueness-checked string collection.
// It replaces ad-hoc map-based dedup so first-seen order is an explicit
// contract rather than incidental behavior.
type OrderedSet struct {
	seen  map[string]struct{}
	items []string
}

// NewOrderedSet creates a set seeded with the given values, in order.
func NewOrderedSet(values ...string) *OrderedSet {
	s := &OrderedSet{seen: make(map[string]struct{}, len(values))}
	s.AddAll(values)
	return s
}

// Add inserts a value if not already present. Empty strings are ignored.
// Returns true if the value was inserted.
func (s *OrderedSet) Add(v string) bool {
	if v == "" {
		return false
	}
	if _, ok := s.seen[v]; ok {
		return false
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}

// AddAll inserts each value in order, skipping duplicates.
func (s *OrderedSet) AddAll(values []string) {
	for _, v := range values {
		s.Add(v)
	}
}

// Has reports whether a value is present.
func (s *OrderedSet) Has(v string) bool {
	_, ok := s.seen[v]
	return ok
}

// Len returns the number of distinct values.
func (s *OrderedSet) Len() int {
	return len(s.items)
}

// Values returns the values in insertion order. The slice is a copy.
func (s *OrderedSet) Values() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// DedupeOrdered returns values with duplicates and empty strings removed,
// preserving first-seen order.
func DedupeOrdered(values []string) []string {
	return NewOrderedSet(values...).Values()
}
