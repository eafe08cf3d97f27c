package engine

import (
	"regexp"
	"strings"
)

var (
	leadingFence  = regexp.MustCompile("^```[\\w+-]*[ \\t]*\\r?\\n")
	trailingFence = regexp.MustCompile("(?:\\r?\\n)?```[ \\t]*$")
	bareFence     = regexp.MustCompile("^```[\\w+-]*[ \\t]*$")

	// Python import lines. The kernel and math are already in scope.
	importLine = regexp.MustCompile(`^([ \t]*)(?:from[ \t]+[\w.]+[ \t]+import[ \t]+.+|import[ \t]+[\w.]+(?:[ \t]+as[ \t]+\w+)?(?:[ \t]*,[ \t]*[\w.]+(?:[ \t]+as[ \t]+\w+)?)*)[ \t]*(?:#.*)?$`)
)

// PrepareScript trims whitespace, removes a surrounding markdown code fence
// and neutralises Python import statements. Import lines become "pass" at the
// same indentation, so error line numbers count from the first line of code
// after the opening fence.
func PrepareScript(code string) string {
	code = strings.TrimSpace(code)
	if bareFence.MatchString(code) {
		return ""
	}
	code = leadingFence.ReplaceAllString(code, "")
	code = trailingFence.ReplaceAllString(code, "")
	code = strings.TrimSpace(code)
	if bareFence.MatchString(code) {
		return ""
	}

	lines := strings.Split(code, "\n")
	for i, line := range lines {
		if m := importLine.FindStringSubmatch(line); m != nil {
			lines[i] = m[1] + "pass"
		}
	}
	return strings.Join(lines, "\n")
}
