package model

import "unicode/utf8"

// Truncate returns the first n characters of s. It has no notion of word
// boundaries, and applying it to text already within n is a no-op.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
