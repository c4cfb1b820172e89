package types

// StringSet is an ordered, duplicate-free list of tags stored as jsonb.
type StringSet []string

// Contains reports membership.
func (s StringSet) Contains(value string) bool {
	for _, v := range s {
		if v == value {
			return true
		}
	}
	return false
}

// Add appends value if absent and returns the (possibly new) set.
func (s StringSet) Add(value string) StringSet {
	if s.Contains(value) {
		return s
	}
	return append(s, value)
}
