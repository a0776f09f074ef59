package orchestrator

import (
	"fmt"
	"strings"
)

const defaultTimeFilter = "Past Year"

// blocklistLimit caps how many saved titles are folded into the prompt.
const blocklistLimit = 50

// BuildPrompt composes the message submitted to the agent: the user's query
// plus the scan constraints and a do-not-repeat blocklist of already saved
// titles. The seed line nudges the agent away from returning the same
// signals for repeated identical queries.
func BuildPrompt(req ChatRequest, userMessage string, blocklist []string, seed int) string {
	var b strings.Builder
	b.WriteString(userMessage)

	if req.TechMode {
		b.WriteString("\n\nCONSTRAINT: This is a TECHNICAL HORIZON SCAN. Focus ONLY on emerging hardware, software, materials, or biotech. Ignore purely cultural trends.")
	}

	if len(req.SourceTypes) > 0 {
		fmt.Fprintf(&b, "\n\nCONSTRAINT: Prioritize findings from these specific source types: %s.", strings.Join(req.SourceTypes, ", "))
	}

	timeFilter := req.TimeFilter
	if timeFilter == "" {
		timeFilter = defaultTimeFilter
	}
	fmt.Fprintf(&b, "\n\nCONSTRAINT: Time Horizon is '%s'. Ensure signals are recent.", timeFilter)

	fmt.Fprintf(&b, "\n\n[System Note: Random Seed %d]", seed)

	if len(blocklist) > 0 {
		quoted := make([]string, len(blocklist))
		for i, t := range blocklist {
			quoted[i] = fmt.Sprintf("%q", t)
		}
		fmt.Fprintf(&b, "\n\nIMPORTANT: Do NOT return these titles (user has already saved them): %s", strings.Join(quoted, ", "))
	}

	return b.String()
}
