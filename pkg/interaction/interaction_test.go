package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loopagent/core/pkg/models"
)

func TestNonInteractiveDefaultStopsOnCritical(t *testing.T) {
	assert.Equal(t, DecisionStop, NonInteractiveDefault(models.PriorityCritical))
}

func TestNonInteractiveDefaultContinuesOnNonCritical(t *testing.T) {
	assert.Equal(t, DecisionContinue, NonInteractiveDefault(models.PriorityHigh))
	assert.Equal(t, DecisionContinue, NonInteractiveDefault(models.PriorityMedium))
	assert.Equal(t, DecisionContinue, NonInteractiveDefault(models.PriorityLow))
}

func TestNonInteractiveBackendResolve(t *testing.T) {
	b := NewNonInteractiveBackend()
	assert.Equal(t, DecisionStop, b.Resolve(FailureReport{Priority: models.PriorityCritical}))
	assert.Equal(t, DecisionContinue, b.Resolve(FailureReport{Priority: models.PriorityLow}))
}

func TestOutputHeadTruncatesToTenLines(t *testing.T) {
	text := ""
	for i := 0; i < 20; i++ {
		if i > 0 {
			text += "\n"
		}
		text += "line"
	}
	assert.Len(t, OutputHead(text), 10)
}

func TestOutputHeadShortTextUnchanged(t *testing.T) {
	assert.Equal(t, []string{"one", "two"}, OutputHead("one\ntwo"))
}
