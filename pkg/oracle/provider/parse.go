package provider

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/verisage/oracle/pkg/oracle/types"
)

// ParseEvaluation extracts a structured evaluation from raw model
// output. Strict JSON is tried first (with code fences stripped);
// legacy DECISION:/CONFIDENCE:/REASONING: line output is the fallback.
// Unrecognized decisions map to the uncertain value for the kind and
// confidence is clamped to [0,1] with a 0.5 default.
func ParseEvaluation(raw string, kind types.JobKind) *Evaluation {
	ev := &Evaluation{
		Decision:   types.UncertainValue(kind),
		Confidence: 0.5,
		Raw:        raw,
	}

	var parsed struct {
		Decision   string          `json:"decision"`
		Confidence json.RawMessage `json:"confidence"`
		Reasoning  string          `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err == nil {
		decision := types.Decision(strings.ToLower(strings.TrimSpace(parsed.Decision)))
		if types.ValidDecision(kind, decision) {
			ev.Decision = decision
		}
		if conf, ok := parseConfidence(parsed.Confidence); ok {
			ev.Confidence = clamp(conf)
		}
		ev.Reasoning = strings.TrimSpace(parsed.Reasoning)
	} else {
		parseLegacy(raw, kind, ev)
	}

	if ev.Reasoning == "" {
		ev.Reasoning = raw
	}
	return ev
}

// parseLegacy handles DECISION:/CONFIDENCE:/REASONING: line output from
// models that ignore the JSON instruction.
func parseLegacy(raw string, kind types.JobKind, ev *Evaluation) {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		upper := strings.ToUpper(line)
		switch {
		case strings.Contains(upper, "DECISION:"):
			text := strings.ToLower(strings.TrimSpace(afterColon(line)))
			ev.Decision = types.UncertainValue(kind)
			for _, d := range types.DecisionsFor(kind) {
				if strings.Contains(text, string(d)) {
					ev.Decision = d
					break
				}
			}
		case strings.Contains(upper, "CONFIDENCE:"):
			if conf, err := strconv.ParseFloat(strings.TrimSpace(afterColon(line)), 64); err == nil {
				ev.Confidence = clamp(conf)
			} else {
				ev.Confidence = 0.5
			}
		case strings.Contains(upper, "REASONING:"):
			reasoning := strings.TrimSpace(afterColon(line))
			if i+1 < len(lines) {
				reasoning += "\n" + strings.Join(lines[i+1:], "\n")
			}
			ev.Reasoning = reasoning
			return
		}
	}
}

func afterColon(line string) string {
	if i := strings.Index(line, ":"); i != -1 {
		return line[i+1:]
	}
	return ""
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(text string) string {
	stripped := strings.TrimSpace(text)
	if !strings.HasPrefix(stripped, "```") {
		return stripped
	}
	lines := strings.Split(stripped, "\n")
	lines = lines[1:]
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func parseConfidence(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	// Some models quote the number.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
