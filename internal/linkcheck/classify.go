package linkcheck

import "strings"

// Classifier derives the broken link count from the checker's combined output.
type Classifier func(output string) int

// CountBrokenLinks counts lines that start with http:// or https://, which is
// how muffet lists each failing URL. The match is case sensitive and anchored
// at the line start.
func CountBrokenLinks(output string) int {
	n := 0
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			n++
		}
	}
	return n
}
