package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/verisage/oracle/pkg/oracle/types"
)

func TestParseStrictJSON(t *testing.T) {
	raw := `{"decision": "yes", "confidence": 0.92, "reasoning": "Multiple sources confirm."}`
	ev := ParseEvaluation(raw, types.KindFact)

	assert.Equal(t, types.DecisionYes, ev.Decision)
	assert.Equal(t, 0.92, ev.Confidence)
	assert.Equal(t, "Multiple sources confirm.", ev.Reasoning)
	assert.Equal(t, raw, ev.Raw)
}

func TestParseFencedJSON(t *testing.T) {
	raw := "```json\n{\"decision\": \"no\", \"confidence\": 0.7, \"reasoning\": \"Refuted.\"}\n```"
	ev := ParseEvaluation(raw, types.KindFact)

	assert.Equal(t, types.DecisionNo, ev.Decision)
	assert.Equal(t, 0.7, ev.Confidence)
}

func TestParseQuotedConfidence(t *testing.T) {
	ev := ParseEvaluation(`{"decision": "credible", "confidence": "0.8", "reasoning": "ok"}`, types.KindSocialPost)

	assert.Equal(t, types.VerdictCredible, ev.Decision)
	assert.Equal(t, 0.8, ev.Confidence)
}

func TestParseConfidenceClamped(t *testing.T) {
	ev := ParseEvaluation(`{"decision": "yes", "confidence": 1.7, "reasoning": "ok"}`, types.KindFact)
	assert.Equal(t, 1.0, ev.Confidence)

	ev = ParseEvaluation(`{"decision": "yes", "confidence": -3, "reasoning": "ok"}`, types.KindFact)
	assert.Equal(t, 0.0, ev.Confidence)
}

func TestParseUnknownDecisionFallsBackToUncertain(t *testing.T) {
	ev := ParseEvaluation(`{"decision": "maybe", "confidence": 0.9, "reasoning": "ok"}`, types.KindFact)
	assert.Equal(t, types.DecisionUncertain, ev.Decision)

	ev = ParseEvaluation(`{"decision": "maybe", "confidence": 0.9, "reasoning": "ok"}`, types.KindSocialPost)
	assert.Equal(t, types.VerdictQuestionable, ev.Decision)
}

func TestParseCrossVocabularyRejected(t *testing.T) {
	// A social-post verdict is not a valid fact decision.
	ev := ParseEvaluation(`{"decision": "credible", "confidence": 0.9, "reasoning": "ok"}`, types.KindFact)
	assert.Equal(t, types.DecisionUncertain, ev.Decision)
}

func TestParseLegacyLines(t *testing.T) {
	raw := "DECISION: yes\nCONFIDENCE: 0.85\nREASONING: The event was widely reported.\nAdditional context here."
	ev := ParseEvaluation(raw, types.KindFact)

	assert.Equal(t, types.DecisionYes, ev.Decision)
	assert.Equal(t, 0.85, ev.Confidence)
	assert.Contains(t, ev.Reasoning, "widely reported")
	assert.Contains(t, ev.Reasoning, "Additional context")
}

func TestParseGarbageDefaults(t *testing.T) {
	ev := ParseEvaluation("I am unable to help with that.", types.KindFact)

	assert.Equal(t, types.DecisionUncertain, ev.Decision)
	assert.Equal(t, 0.5, ev.Confidence)
	assert.Equal(t, "I am unable to help with that.", ev.Reasoning)
}

func TestParseMissingConfidenceDefaults(t *testing.T) {
	ev := ParseEvaluation(`{"decision": "misleading", "reasoning": "fabricated quote"}`, types.KindSocialPost)

	assert.Equal(t, types.VerdictMisleading, ev.Decision)
	assert.Equal(t, 0.5, ev.Confidence)
}

func TestSystemPromptPerKind(t *testing.T) {
	assert.Contains(t, SystemPrompt(types.KindFact), "yes")
	assert.Contains(t, SystemPrompt(types.KindSocialPost), "credible")
}
