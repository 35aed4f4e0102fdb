package guardrails

import (
	"context"
	"fmt"

	"github.com/run-bigpig/traceai/pkg/interfaces"
	"github.com/run-bigpig/traceai/pkg/logging"
)

// Stage is the side of a model call a check runs on
type Stage string

const (
	StageInput  Stage = "input"
	StageOutput Stage = "output"
)

// Finding is the verdict of one triggered guardrail
type Finding struct {
	Rule   GuardrailType
	Action Action
	Reason string
}

// Result is the outcome of running a pipeline over one text
type Result struct {
	// Passed is false when a guardrail with BlockAction triggered
	Passed bool

	// Text is the checked text after every redaction
	Text string

	// Findings lists every triggered guardrail, in pipeline order
	Findings []Finding
}

// Pipeline runs guardrails in order. Redactions feed into the next guardrail;
// the first block stops the pipeline.
type Pipeline struct {
	guardrails []Guardrail
	logger     logging.Logger
}

var _ interfaces.Guardrails = (*Pipeline)(nil)

// NewPipeline creates a pipeline of guardrails
func NewPipeline(logger logging.Logger, guardrails ...Guardrail) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		guardrails: guardrails,
		logger:     logger,
	}
}

// Guardrails returns the configured guardrails
func (p *Pipeline) Guardrails() []Guardrail {
	return p.guardrails
}

// Check runs every guardrail over text for the given stage
func (p *Pipeline) Check(ctx context.Context, stage Stage, text string) (*Result, error) {
	result := &Result{Passed: true, Text: text}

	for _, g := range p.guardrails {
		current := result.Text

		var (
			triggered bool
			modified  string
			err       error
		)
		if stage == StageOutput {
			triggered, modified, err = g.CheckResponse(ctx, current)
		} else {
			triggered, modified, err = g.CheckRequest(ctx, current)
		}
		if err != nil {
			return nil, fmt.Errorf("guardrail %s failed: %w", g.Type(), err)
		}
		if !triggered {
			continue
		}

		finding := Finding{Rule: g.Type(), Action: g.Action(), Reason: reason(g, current)}
		result.Findings = append(result.Findings, finding)

		switch g.Action() {
		case BlockAction:
			result.Passed = false
			return result, nil
		case RedactAction:
			result.Text = modified
		default:
			p.logger.Warn(ctx, "Guardrail triggered", map[string]interface{}{
				"rule":   string(finding.Rule),
				"stage":  string(stage),
				"reason": finding.Reason,
			})
		}
	}
	return result, nil
}

// ProcessInput implements interfaces.Guardrails
func (p *Pipeline) ProcessInput(ctx context.Context, input string) (string, error) {
	return processed(p.Check(ctx, StageInput, input))
}

// ProcessOutput implements interfaces.Guardrails
func (p *Pipeline) ProcessOutput(ctx context.Context, output string) (string, error) {
	return processed(p.Check(ctx, StageOutput, output))
}

// processed turns a check result into the interfaces.Guardrails contract
func processed(result *Result, err error) (string, error) {
	if err != nil {
		return "", err
	}
	if !result.Passed {
		last := result.Findings[len(result.Findings)-1]
		if last.Reason != "" {
			return "", fmt.Errorf("%w: %s: %s", ErrBlocked, last.Rule, last.Reason)
		}
		return "", fmt.Errorf("%w: %s", ErrBlocked, last.Rule)
	}
	return result.Text, nil
}

func reason(g Guardrail, text string) string {
	if d, ok := g.(Describer); ok {
		if r := d.Describe(text); r != "" {
			return r
		}
	}
	return string(g.Type()) + " triggered"
}
