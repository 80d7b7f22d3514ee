package agents

import "strings"

// ApprovalPhrases are the utterances that count as a user approving a plan.
var ApprovalPhrases = []string{
	"yes", "looks good", "perfect", "i approve", "let's do it",
	"sounds great", "that works", "i'm happy with this",
}

// IsApproval reports whether text contains one of the approval phrases.
func IsApproval(text string) bool {
	t := strings.ToLower(strings.ReplaceAll(text, "’", "'"))
	for _, p := range ApprovalPhrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}

func approvalList() string {
	quoted := make([]string, len(ApprovalPhrases))
	for i, p := range ApprovalPhrases {
		quoted[i] = `"` + p + `"`
	}
	return strings.Join(quoted, ", ")
}
