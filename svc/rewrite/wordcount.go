package rewrite

import "strings"

// CountWords counts words the way the product bills them: tokens
// separated by any whitespace.
func CountWords(text string) int64 {
	return int64(len(strings.Fields(text)))
}
