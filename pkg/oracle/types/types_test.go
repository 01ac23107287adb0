package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecisionVocabularies(t *testing.T) {
	assert.Equal(t, []Decision{DecisionYes, DecisionNo, DecisionUncertain}, DecisionsFor(KindFact))
	assert.Equal(t, []Decision{VerdictCredible, VerdictQuestionable, VerdictMisleading, VerdictOpinion}, DecisionsFor(KindSocialPost))
}

func TestUncertainValuePerKind(t *testing.T) {
	assert.Equal(t, DecisionUncertain, UncertainValue(KindFact))
	assert.Equal(t, VerdictQuestionable, UncertainValue(KindSocialPost))
}

func TestValidDecisionRejectsCrossVocabulary(t *testing.T) {
	assert.True(t, ValidDecision(KindFact, DecisionYes))
	assert.False(t, ValidDecision(KindFact, VerdictCredible))
	assert.True(t, ValidDecision(KindSocialPost, VerdictOpinion))
	assert.False(t, ValidDecision(KindSocialPost, DecisionYes))
}

func TestTerminal(t *testing.T) {
	job := &Job{Status: StatusPending}
	assert.False(t, job.Terminal())
	job.Status = StatusProcessing
	assert.False(t, job.Terminal())
	job.Status = StatusCompleted
	assert.True(t, job.Terminal())
	job.Status = StatusFailed
	assert.True(t, job.Terminal())
}
