package guardrails

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/run-bigpig/traceai/pkg/interfaces"
	"github.com/run-bigpig/traceai/pkg/semconv"
	"github.com/run-bigpig/traceai/pkg/tracing"
)

// AdapterName is the registry key of traced guardrail checks
const AdapterName = "guardrails"

const protectSpanName = "Guardrail.protect"

// Protector runs a Pipeline and traces every check as a GUARDRAIL span
type Protector struct {
	pipeline *Pipeline
	tracer   *tracing.Tracer
}

var _ interfaces.Guardrails = (*Protector)(nil)

// NewProtector creates a traced guardrail check. A nil tracer disables tracing.
func NewProtector(pipeline *Pipeline, tracer *tracing.Tracer) *Protector {
	if pipeline == nil {
		pipeline = NewPipeline(nil)
	}
	return &Protector{pipeline: pipeline, tracer: tracer}
}

type protectRequest struct {
	stage Stage
	text  string
	rules []Guardrail
}

type rule struct {
	Rule   GuardrailType `json:"rule"`
	Action Action        `json:"action"`
}

// Protect checks text and records the rules and verdict on a span. Errors from
// the pipeline are recorded and returned unchanged.
func (p *Protector) Protect(ctx context.Context, stage Stage, text string) (*Result, error) {
	op := tracing.Operation[protectRequest, *Result]{
		Name:     protectSpanName,
		Adapter:  AdapterName,
		Request:  protectExtractor{},
		Response: protectExtractor{},
	}
	req := protectRequest{stage: stage, text: text, rules: p.pipeline.Guardrails()}
	return tracing.Call(ctx, p.tracer, op, req, func(ctx context.Context, req protectRequest) (*Result, error) {
		return p.pipeline.Check(ctx, req.stage, req.text)
	})
}

// ProcessInput implements interfaces.Guardrails
func (p *Protector) ProcessInput(ctx context.Context, input string) (string, error) {
	return processed(p.Protect(ctx, StageInput, input))
}

// ProcessOutput implements interfaces.Guardrails
func (p *Protector) ProcessOutput(ctx context.Context, output string) (string, error) {
	return processed(p.Protect(ctx, StageOutput, output))
}

type protectExtractor struct{}

func (protectExtractor) RequestAttributes(req protectRequest) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		rules := make([]rule, 0, len(req.rules))
		for _, g := range req.rules {
			rules = append(rules, rule{Rule: g.Type(), Action: g.Action()})
		}
		encoded, err := json.Marshal(rules)
		if err != nil {
			return
		}
		_ = yield(semconv.SpanKind, semconv.SpanKindGuardrail) &&
			yield(semconv.GuardrailRules, string(encoded)) &&
			yield(semconv.InputMimeType, semconv.MimeTypeText)
	}
}

func (protectExtractor) RequestExtraAttributes(req protectRequest) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		yield(semconv.InputValue, req.text)
	}
}

func (protectExtractor) ResponseAttributes(result *Result, _ bool) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if result == nil {
			return
		}
		status := semconv.GuardrailStatusPassed
		if !result.Passed {
			status = semconv.GuardrailStatusFailed
		}
		if !yield(semconv.GuardrailStatus, status) {
			return
		}
		reasons := make([]string, 0, len(result.Findings))
		for _, f := range result.Findings {
			reasons = append(reasons, f.Reason)
		}
		if !yield(semconv.GuardrailReasons, reasons) {
			return
		}
		for i, f := range result.Findings {
			ok := yield(semconv.Indexed(semconv.GuardrailReasons, i, semconv.GuardrailRule), string(f.Rule)) &&
				yield(semconv.Indexed(semconv.GuardrailReasons, i, semconv.GuardrailReason), f.Reason) &&
				yield(semconv.Indexed(semconv.GuardrailReasons, i, semconv.GuardrailAction), string(f.Action))
			if !ok {
				return
			}
		}
	}
}

func (protectExtractor) ResponseExtraAttributes(result *Result, _ bool) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if result == nil || !result.Passed {
			return
		}
		_ = yield(semconv.OutputMimeType, semconv.MimeTypeText) &&
			yield(semconv.OutputValue, result.Text)
	}
}
