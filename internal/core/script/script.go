// Package script defines the typed automation instruction set stored in
// the jobs table and the fixed engine that interprets it. Scripts never
// contain executable code; the engine exposes a closed set of ops
// against an injected browser session.
package script

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// CurrentVersion is the only instruction-set version this engine
// accepts. Bump it together with a parser branch, never by aliasing ops.
const CurrentVersion = 1

type Op string

const (
	OpNavigate   Op = "navigate"
	OpWaitFor    Op = "wait_for"
	OpClick      Op = "click"
	OpFill       Op = "fill"
	OpLog        Op = "log"
	OpScreenshot Op = "screenshot"
	OpExtract    Op = "extract"
	OpSleep      Op = "sleep"
	OpQuit       Op = "quit"
)

type Step struct {
	Op           Op
	URL          string
	Selector     string
	Value        string
	Message      string
	Label        string
	UpdateLatest bool
	Duration     time.Duration
}

type Script struct {
	Version int
	Steps   []Step
}

// Parse decodes stored script text. Two shapes are accepted: a bare
// YAML sequence of steps, or a document {version, steps}. Unknown ops
// and unknown versions are rejected outright.
func Parse(text string) (*Script, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, fmt.Errorf("script is empty")
	}

	sc := &Script{Version: CurrentVersion}
	body := root.Content[0]

	var stepNodes []*yaml.Node
	switch body.Kind {
	case yaml.SequenceNode:
		stepNodes = body.Content
	case yaml.MappingNode:
		var doc struct {
			Version *int        `yaml:"version"`
			Steps   []yaml.Node `yaml:"steps"`
		}
		if err := body.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse script: %w", err)
		}
		if doc.Version != nil {
			if *doc.Version != CurrentVersion {
				return nil, fmt.Errorf("unsupported script version %d", *doc.Version)
			}
			sc.Version = *doc.Version
		}
		for i := range doc.Steps {
			stepNodes = append(stepNodes, &doc.Steps[i])
		}
	default:
		return nil, fmt.Errorf("script must be a step list or a {version, steps} document")
	}

	if len(stepNodes) == 0 {
		return nil, fmt.Errorf("script has no steps")
	}
	for i, n := range stepNodes {
		step, err := parseStep(n, i)
		if err != nil {
			return nil, err
		}
		sc.Steps = append(sc.Steps, step)
	}
	return sc, nil
}

func parseStep(n *yaml.Node, idx int) (Step, error) {
	bad := func(format string, args ...interface{}) (Step, error) {
		return Step{}, fmt.Errorf("step %d: %s", idx+1, fmt.Sprintf(format, args...))
	}

	// Bare scalar shorthand, e.g. "- quit".
	if n.Kind == yaml.ScalarNode {
		if Op(n.Value) == OpQuit {
			return Step{Op: OpQuit}, nil
		}
		return bad("op %q requires arguments", n.Value)
	}
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return bad("expected a single-op mapping")
	}

	op := Op(n.Content[0].Value)
	v := n.Content[1]
	step := Step{Op: op}

	switch op {
	case OpNavigate:
		if err := v.Decode(&step.URL); err != nil || step.URL == "" {
			return bad("navigate requires a url")
		}
	case OpWaitFor:
		if err := v.Decode(&step.Selector); err != nil || step.Selector == "" {
			return bad("wait_for requires a selector")
		}
	case OpClick:
		if err := v.Decode(&step.Selector); err != nil || step.Selector == "" {
			return bad("click requires a selector")
		}
	case OpLog:
		if err := v.Decode(&step.Message); err != nil {
			return bad("log requires a message")
		}
	case OpFill:
		var args struct {
			Selector string `yaml:"selector"`
			Value    string `yaml:"value"`
		}
		if err := v.Decode(&args); err != nil {
			return bad("fill: %v", err)
		}
		if args.Selector == "" {
			return bad("fill requires a selector")
		}
		step.Selector, step.Value = args.Selector, args.Value
	case OpScreenshot:
		step.UpdateLatest = true
		switch v.Kind {
		case yaml.ScalarNode:
			if v.Tag != "!!null" {
				step.Label = v.Value
			}
		case yaml.MappingNode:
			var args struct {
				Label        string `yaml:"label"`
				UpdateLatest *bool  `yaml:"update_latest"`
			}
			if err := v.Decode(&args); err != nil {
				return bad("screenshot: %v", err)
			}
			step.Label = args.Label
			if args.UpdateLatest != nil {
				step.UpdateLatest = *args.UpdateLatest
			}
		default:
			return bad("screenshot: invalid arguments")
		}
	case OpExtract:
		step.Selector = "body"
		switch v.Kind {
		case yaml.ScalarNode:
			if v.Tag != "!!null" && v.Value != "" {
				step.Selector = v.Value
			}
		case yaml.MappingNode:
			var args struct {
				Selector string `yaml:"selector"`
			}
			if err := v.Decode(&args); err != nil {
				return bad("extract: %v", err)
			}
			if args.Selector != "" {
				step.Selector = args.Selector
			}
		default:
			return bad("extract: invalid arguments")
		}
	case OpSleep:
		var raw string
		if err := v.Decode(&raw); err != nil {
			return bad("sleep requires a duration")
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return bad("sleep: invalid duration %q", raw)
		}
		step.Duration = d
	case OpQuit:
		// Explicit empty args ("quit: {}" or "quit:") are fine.
	default:
		return bad("unknown op %q", op)
	}
	return step, nil
}
