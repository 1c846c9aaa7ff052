package verdict

import (
	"regexp"
	"strings"
)

// statusLinePattern matches lines such as
//
//	**Status:** ❌ Not Passed
//	Status: Questions
//	## **Status**: ✅ Passed
//	✅ **Status:** Passed
//	**Overall Status:** ✅ Passed
//	File a.go - Status: Passed
//
// Anything may precede "status" as long as it ends on a non-alphanumeric
// rune, so "Substatus: passed" does not count. "not passed" is listed first
// so it wins over "passed" at the same position, and the symbol run before
// the label cannot swallow letters, so "Not Passed" is never read as "Passed".
var statusLinePattern = regexp.MustCompile(
	`(?i)^(?:.*?[^\p{L}\p{N}])?status[\s*_]*:[\s*_]*(?:[^\p{L}\p{N}\s]+\s*)*(not\s+passed|passed|questions)\b`)

// StatusLine returns the label of the first status line in text
func StatusLine(text string) (Label, bool) {
	for _, line := range strings.Split(text, "\n") {
		m := statusLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		return labelFor(m[1])
	}
	return "", false
}

func labelFor(word string) (Label, bool) {
	switch strings.Join(strings.Fields(strings.ToLower(word)), " ") {
	case "passed":
		return LabelPassed, true
	case "not passed":
		return LabelNotPassed, true
	case "questions":
		return LabelQuestions, true
	}
	return "", false
}
