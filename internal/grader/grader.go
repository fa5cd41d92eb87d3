// Package grader scores submission output against an exercise's expected output.
package grader

import "strings"

// FullScore is awarded when output matches exactly.
const FullScore = 100

// Grade returns FullScore when text and expected are equal after trimming
// surrounding whitespace, and 0 otherwise. Case, inner whitespace and number
// formatting are compared as-is.
func Grade(text, expected string) int {
	if strings.TrimSpace(text) == strings.TrimSpace(expected) {
		return FullScore
	}
	return 0
}
