package modutil

import (
	"regexp"
	"strings"

	"sentinel-nlmod/internal/utils"
)

// MaxReasonLength matches the platform audit-log reason limit.
const MaxReasonLength = 512

var reasonRegex = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(bởi vì|tại vì|lý do là|lý do|ly do|reason|because of|because|cause|vì|for)\s*:?\s+(.+)$`)

var leadingKeywordRegex = regexp.MustCompile(`(?i)^(?:bởi vì|tại vì|lý do là|lý do|ly do|reason|because of|because|cause|vì|for)\s*:?\s+`)

// violationRegex catches reasons stated without a keyword, e.g.
// "cảnh cáo @x vi phạm nội quy". The violation phrase stays in the reason.
var violationRegex = regexp.MustCompile(`(?i)(?:^|[^\p{L}])((?:vi phạm|vi pham|violat(?:ed|ing|es|e|ion of))\s+.+)$`)

// ExtractReason returns the free-text reason following a reason keyword,
// with mentions and the duration phrase removed. It returns "" when the
// message has no reason clause.
func ExtractReason(text string) string {
	text = utils.NFC(text)
	var reason string
	if match := reasonRegex.FindStringSubmatch(text); match != nil {
		reason = match[2]
	} else if match := violationRegex.FindStringSubmatch(text); match != nil {
		reason = match[1]
	} else {
		return ""
	}
	reason = utils.StripMentions(reason)
	reason = StripDuration(reason)
	for i := 0; i < 3; i++ {
		trimmed := leadingKeywordRegex.ReplaceAllString(reason, "")
		if trimmed == reason {
			break
		}
		reason = trimmed
	}
	reason = strings.Trim(reason, " \t\n.,;:!-")
	return Truncate(reason, MaxReasonLength)
}
