package ids

import "github.com/segmentio/ksuid"

// encodedLen is the length of a ksuid in its base62 string form.
const encodedLen = 27

// New returns a k-sortable unique identifier.
func New() string {
	return ksuid.New().String()
}

// Valid reports whether id is a well-formed ksuid. ksuid.Parse checks only
// the length, so the alphabet is checked here first.
func Valid(id string) bool {
	if len(id) != encodedLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		ch := id[i]
		if !(ch >= '0' && ch <= '9' || ch >= 'A' && ch <= 'Z' || ch >= 'a' && ch <= 'z') {
			return false
		}
	}
	_, err := ksuid.Parse(id)
	return err == nil
}
