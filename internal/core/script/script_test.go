package script_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autorunner/internal/core/script"
)

func TestParse_BareStepList(t *testing.T) {
	sc, err := script.Parse(`
- navigate: https://example.com
- wait_for: "#main"
- click: "button.submit"
- log: hi
- quit
`)
	require.NoError(t, err)
	assert.Equal(t, script.CurrentVersion, sc.Version)
	require.Len(t, sc.Steps, 5)

	assert.Equal(t, script.OpNavigate, sc.Steps[0].Op)
	assert.Equal(t, "https://example.com", sc.Steps[0].URL)
	assert.Equal(t, script.OpWaitFor, sc.Steps[1].Op)
	assert.Equal(t, "#main", sc.Steps[1].Selector)
	assert.Equal(t, script.OpClick, sc.Steps[2].Op)
	assert.Equal(t, "button.submit", sc.Steps[2].Selector)
	assert.Equal(t, script.OpLog, sc.Steps[3].Op)
	assert.Equal(t, "hi", sc.Steps[3].Message)
	assert.Equal(t, script.OpQuit, sc.Steps[4].Op)
}

func TestParse_VersionedDocument(t *testing.T) {
	sc, err := script.Parse(`
version: 1
steps:
  - log: hello
  - sleep: 2s
`)
	require.NoError(t, err)
	assert.Equal(t, 1, sc.Version)
	require.Len(t, sc.Steps, 2)
	assert.Equal(t, 2*time.Second, sc.Steps[1].Duration)
}

func TestParse_UnsupportedVersion(t *testing.T) {
	_, err := script.Parse("version: 2\nsteps:\n  - log: hi\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported script version 2")
}

func TestParse_Fill(t *testing.T) {
	sc, err := script.Parse(`
- fill:
    selector: "#q"
    value: hello world
`)
	require.NoError(t, err)
	require.Len(t, sc.Steps, 1)
	assert.Equal(t, "#q", sc.Steps[0].Selector)
	assert.Equal(t, "hello world", sc.Steps[0].Value)
}

func TestParse_FillWithoutSelector(t *testing.T) {
	_, err := script.Parse("- fill:\n    value: x\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fill requires a selector")
}

func TestParse_ScreenshotDefaultsUpdateLatest(t *testing.T) {
	sc, err := script.Parse("- screenshot: checkout\n")
	require.NoError(t, err)
	assert.Equal(t, "checkout", sc.Steps[0].Label)
	assert.True(t, sc.Steps[0].UpdateLatest)
}

func TestParse_ScreenshotExplicitFlags(t *testing.T) {
	sc, err := script.Parse(`
- screenshot:
    label: debug shot
    update_latest: false
- screenshot:
`)
	require.NoError(t, err)
	require.Len(t, sc.Steps, 2)
	assert.Equal(t, "debug shot", sc.Steps[0].Label)
	assert.False(t, sc.Steps[0].UpdateLatest)
	assert.Empty(t, sc.Steps[1].Label)
	assert.True(t, sc.Steps[1].UpdateLatest)
}

func TestParse_ExtractSelectorDefault(t *testing.T) {
	sc, err := script.Parse("- extract:\n- extract: article\n")
	require.NoError(t, err)
	assert.Equal(t, "body", sc.Steps[0].Selector)
	assert.Equal(t, "article", sc.Steps[1].Selector)
}

func TestParse_UnknownOp(t *testing.T) {
	_, err := script.Parse("- teleport: mars\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown op "teleport"`)
}

func TestParse_NavigateWithoutURL(t *testing.T) {
	_, err := script.Parse("- navigate:\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "navigate requires a url")
}

func TestParse_InvalidSleep(t *testing.T) {
	_, err := script.Parse("- sleep: fast\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestParse_Empty(t *testing.T) {
	_, err := script.Parse("")
	require.Error(t, err)

	_, err = script.Parse("steps: []\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no steps")
}
