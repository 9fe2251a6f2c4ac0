package aggregate

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeValue produces the comparison form of a field value: surrounding
// whitespace trimmed, inner whitespace collapsed, Unicode case folded. The
// stored value is never normalized; this form exists only to decide whether
// two attempts agree.
func NormalizeValue(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return cases.Fold().String(s)
}
