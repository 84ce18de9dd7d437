package script

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"autorunner/internal/utils/markdown"
)

// Session is the narrow browser surface a script may drive. The
// orchestrator owns the real session; scripts never launch or hold one
// themselves.
type Session interface {
	Navigate(url string) error
	WaitFor(selector string) error
	Click(selector string) error
	Fill(selector, value string) error
	Content() (string, error)
	Screenshot() ([]byte, error)
	Close() error
}

// Capabilities is the fixed set of callables injected into a run.
// CaptureScreenshot degrades internally (empty URL on failure), so the
// engine never treats a failed shot as a script error.
type Capabilities struct {
	Session           Session
	Log               func(msg string)
	CaptureScreenshot func(label string, updateLatest bool) string
}

type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Execute runs the steps in order, synchronously. The context is
// checked between steps; a step error aborts the run and carries the
// step index and op for the job record.
func (e *Engine) Execute(ctx context.Context, sc *Script, caps Capabilities) error {
	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
		if err := e.run(ctx, step, caps); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
	}
	return nil
}

func (e *Engine) run(ctx context.Context, step Step, caps Capabilities) error {
	switch step.Op {
	case OpNavigate:
		return caps.Session.Navigate(step.URL)
	case OpWaitFor:
		return caps.Session.WaitFor(step.Selector)
	case OpClick:
		return caps.Session.Click(step.Selector)
	case OpFill:
		return caps.Session.Fill(step.Selector, step.Value)
	case OpLog:
		caps.Log(step.Message)
		return nil
	case OpScreenshot:
		caps.CaptureScreenshot(step.Label, step.UpdateLatest)
		return nil
	case OpExtract:
		return e.extract(step, caps)
	case OpSleep:
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(step.Duration):
			return nil
		}
	case OpQuit:
		return caps.Session.Close()
	}
	return fmt.Errorf("unknown op %q", step.Op)
}

// extract snapshots the current page, reduces the selected fragment to
// markdown and appends it to the job log.
func (e *Engine) extract(step Step, caps Capabilities) error {
	html, err := caps.Session.Content()
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return err
	}
	sel := doc.Find(step.Selector)
	if sel.Length() == 0 {
		return fmt.Errorf("selector %q matched nothing", step.Selector)
	}
	fragment, err := goquery.OuterHtml(sel.First())
	if err != nil {
		return err
	}
	caps.Log(fmt.Sprintf("extract %s: %s", step.Selector, markdown.Convert(fragment)))
	return nil
}
