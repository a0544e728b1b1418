package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loopagent/core/pkg/models"
)

func TestParseActionSpecHappyPath(t *testing.T) {
	reply := "ACTION_TYPE: SHELL_COMMAND\nACTION_DESCRIPTION: run the build\nPARAMETERS: command=go build ./..., timeout=30\nEXPECTED_OUTCOME: build succeeds"
	spec := parseActionSpec(reply)

	assert.Equal(t, models.TaskShellCommand, spec.Type)
	assert.Equal(t, "run the build", spec.Description)
	assert.Equal(t, "build succeeds", spec.ExpectedOutcome)
	assert.Equal(t, "go build ./...", spec.Parameters["command"])
	assert.Equal(t, "30", spec.Parameters["timeout"])
}

func TestParseActionSpecUnknownTypeDefaultsToAIAnalysis(t *testing.T) {
	reply := "ACTION_TYPE: FRY_AN_EGG\nACTION_DESCRIPTION: nonsense\nPARAMETERS: NONE\nEXPECTED_OUTCOME: none"
	spec := parseActionSpec(reply)
	assert.Equal(t, models.TaskAIAnalysis, spec.Type)
}

func TestParseActionSpecStripsCodeFences(t *testing.T) {
	reply := "```\nACTION_TYPE: FILE_WRITE\nACTION_DESCRIPTION: write config\nPARAMETERS: file_path=/tmp/x.yaml\nEXPECTED_OUTCOME: file exists\n```"
	spec := parseActionSpec(reply)
	assert.Equal(t, models.TaskFileWrite, spec.Type)
	assert.Equal(t, "/tmp/x.yaml", spec.Parameters["file_path"])
}

func TestParseParameterPairsSplitsOnlyBeforeNextKey(t *testing.T) {
	params := parseParameterPairs(`command=echo "hello, world", cwd=/tmp`)
	assert.Equal(t, `echo "hello, world"`, params["command"])
	assert.Equal(t, "/tmp", params["cwd"])
}

func TestParseParameterPairsUnquotesValues(t *testing.T) {
	params := parseParameterPairs(`name='my file.txt', mode="append"`)
	assert.Equal(t, "my file.txt", params["name"])
	assert.Equal(t, "append", params["mode"])
}

func TestParseParameterPairsEmpty(t *testing.T) {
	params := parseParameterPairs("NONE")
	assert.Empty(t, params)
}

func TestParseParameterPairsNoEquals(t *testing.T) {
	params := parseParameterPairs("just some text, another thing")
	assert.Empty(t, params)
}
