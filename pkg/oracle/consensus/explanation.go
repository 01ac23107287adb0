package consensus

import (
	"fmt"
	"strings"

	"github.com/verisage/oracle/pkg/oracle/types"
)

// explain renders the human-readable breakdown of a decision. This is
// pure formatting over already-computed data.
func (e *Engine) explain(kind types.JobKind, responses []types.ProviderResponse, decision types.Decision, confidence, totalWeight float64) string {
	valid := make([]types.ProviderResponse, 0, len(responses))
	for _, r := range responses {
		if r.Error == "" {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return "All providers failed to respond. Unable to make a decision."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Final Decision: %s** (confidence: %.2f)\n\n", strings.ToUpper(string(decision)), confidence)

	b.WriteString("**Voting Summary:**\n")
	counts := make(map[types.Decision]int)
	for _, r := range valid {
		counts[r.Decision]++
	}
	for _, d := range types.DecisionsFor(kind) {
		if counts[d] > 0 {
			fmt.Fprintf(&b, "- %s: %d provider(s)\n", strings.ToUpper(string(d)), counts[d])
		}
	}

	fmt.Fprintf(&b, "\n**Total Weight Used:** %.2f\n\n", totalWeight)

	b.WriteString("**Individual Provider Assessments:**\n")
	for _, r := range valid {
		fmt.Fprintf(&b, "- **%s** (weight: %.1f): %s (confidence: %.2f)\n",
			strings.ToUpper(r.Provider), e.weights[r.Provider], strings.ToUpper(string(r.Decision)), r.Confidence)
	}
	return strings.TrimRight(b.String(), "\n")
}
