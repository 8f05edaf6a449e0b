package refine

import (
	"regexp"
	"strings"
)

// finalAnswerPattern extracts the literal "Final Answer:" segment through
// either the next bold markdown header on its own line or end-of-string.
var finalAnswerPattern = regexp.MustCompile(`(?s)Final Answer:\s*(.*?)(?:\n\s*\*\*[^\n*]+\*\*\s*\n|\z)`)

// ExtractFinalAnswer pulls the Final Answer: segment out of moderator text.
// If the literal token is absent, the full moderator text is used verbatim,
// per the finalizer's fallback rule.
func ExtractFinalAnswer(moderatorText string) string {
	if m := finalAnswerPattern.FindStringSubmatch(moderatorText); m != nil {
		if answer := strings.TrimSpace(m[1]); answer != "" {
			return answer
		}
	}
	return strings.TrimSpace(moderatorText)
}
