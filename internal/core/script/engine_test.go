package script_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autorunner/internal/core/script"
)

type fakeSession struct {
	calls   []string
	navErr  error
	html    string
	shot    []byte
	shotErr error
	closed  int
}

func (f *fakeSession) Navigate(url string) error {
	f.calls = append(f.calls, "navigate:"+url)
	return f.navErr
}

func (f *fakeSession) WaitFor(selector string) error {
	f.calls = append(f.calls, "wait_for:"+selector)
	return nil
}

func (f *fakeSession) Click(selector string) error {
	f.calls = append(f.calls, "click:"+selector)
	return nil
}

func (f *fakeSession) Fill(selector, value string) error {
	f.calls = append(f.calls, fmt.Sprintf("fill:%s=%s", selector, value))
	return nil
}

func (f *fakeSession) Content() (string, error) {
	f.calls = append(f.calls, "content")
	return f.html, nil
}

func (f *fakeSession) Screenshot() ([]byte, error) {
	f.calls = append(f.calls, "screenshot")
	return f.shot, f.shotErr
}

func (f *fakeSession) Close() error {
	f.closed++
	f.calls = append(f.calls, "close")
	return nil
}

type captureCall struct {
	label        string
	updateLatest bool
}

func newCaps(sess *fakeSession) (script.Capabilities, *[]string, *[]captureCall) {
	var logs []string
	var captures []captureCall
	caps := script.Capabilities{
		Session: sess,
		Log:     func(msg string) { logs = append(logs, msg) },
		CaptureScreenshot: func(label string, updateLatest bool) string {
			captures = append(captures, captureCall{label, updateLatest})
			return "https://cdn.example/shot.png"
		},
	}
	return caps, &logs, &captures
}

func mustParse(t *testing.T, text string) *script.Script {
	t.Helper()
	sc, err := script.Parse(text)
	require.NoError(t, err)
	return sc
}

func TestExecute_RunsStepsInOrder(t *testing.T) {
	sess := &fakeSession{}
	caps, logs, captures := newCaps(sess)

	sc := mustParse(t, `
- navigate: https://example.com
- wait_for: "#main"
- fill:
    selector: "#q"
    value: hi
- click: "#go"
- log: done searching
- screenshot:
    label: results
    update_latest: false
`)
	err := script.NewEngine().Execute(context.Background(), sc, caps)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"navigate:https://example.com",
		"wait_for:#main",
		"fill:#q=hi",
		"click:#go",
	}, sess.calls)
	assert.Equal(t, []string{"done searching"}, *logs)
	require.Len(t, *captures, 1)
	assert.Equal(t, captureCall{"results", false}, (*captures)[0])
}

func TestExecute_StepErrorCarriesIndexAndOp(t *testing.T) {
	sess := &fakeSession{navErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	caps, logs, _ := newCaps(sess)

	sc := mustParse(t, "- log: about to go\n- navigate: https://bad.invalid\n- log: never\n")
	err := script.NewEngine().Execute(context.Background(), sc, caps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 2 (navigate)")
	assert.Contains(t, err.Error(), "net::ERR_NAME_NOT_RESOLVED")
	assert.Equal(t, []string{"about to go"}, *logs)
}

func TestExecute_CanceledContextStopsRun(t *testing.T) {
	sess := &fakeSession{}
	caps, _, _ := newCaps(sess)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sc := mustParse(t, "- navigate: https://example.com\n")
	err := script.NewEngine().Execute(ctx, sc, caps)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sess.calls)
}

func TestExecute_SleepHonorsContext(t *testing.T) {
	sess := &fakeSession{}
	caps, _, _ := newCaps(sess)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	sc := mustParse(t, "- log: start\n- sleep: 5s\n")
	start := time.Now()
	err := script.NewEngine().Execute(ctx, sc, caps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 2 (sleep)")
	assert.Less(t, time.Since(start), time.Second)
}

func TestExecute_ExtractLogsMarkdown(t *testing.T) {
	sess := &fakeSession{
		html: `<html><body><nav>menu</nav><article><h1>Title</h1><p>Hello world</p></article></body></html>`,
	}
	caps, logs, _ := newCaps(sess)

	sc := mustParse(t, "- extract: article\n")
	err := script.NewEngine().Execute(context.Background(), sc, caps)
	require.NoError(t, err)

	require.Len(t, *logs, 1)
	assert.Contains(t, (*logs)[0], "extract article")
	assert.Contains(t, (*logs)[0], "Hello world")
	assert.NotContains(t, (*logs)[0], "menu")
}

func TestExecute_ExtractMissingSelectorFails(t *testing.T) {
	sess := &fakeSession{html: "<html><body><p>x</p></body></html>"}
	caps, _, _ := newCaps(sess)

	sc := mustParse(t, "- extract: article\n")
	err := script.NewEngine().Execute(context.Background(), sc, caps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matched nothing")
}

func TestExecute_QuitClosesSession(t *testing.T) {
	sess := &fakeSession{}
	caps, logs, _ := newCaps(sess)

	sc := mustParse(t, "- log: one\n- quit\n- log: two\n")
	err := script.NewEngine().Execute(context.Background(), sc, caps)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.closed)
	assert.Equal(t, []string{"one", "two"}, *logs)
}
