package guardrails

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentFilter(t *testing.T) {
	filter := NewContentFilter([]string{"hack", "exploit", " "}, RedactAction)
	ctx := context.Background()

	triggered, modified, err := filter.CheckRequest(ctx, "How do I HACK the mainframe")
	require.NoError(t, err)
	assert.True(t, triggered)
	assert.Equal(t, "How do I **** the mainframe", modified)
	assert.Equal(t, "blocked words: hack", filter.Describe("HACK and hack again"))

	triggered, modified, err = filter.CheckResponse(ctx, "hackathon results")
	require.NoError(t, err)
	assert.False(t, triggered)
	assert.Equal(t, "hackathon results", modified)

	empty := NewContentFilter(nil, BlockAction)
	triggered, _, err = empty.CheckRequest(ctx, "anything")
	require.NoError(t, err)
	assert.False(t, triggered)
	assert.Empty(t, empty.Describe("anything"))
}

func TestPiiFilter(t *testing.T) {
	filter := NewPiiFilter(RedactAction)

	triggered, modified, err := filter.CheckRequest(context.Background(), "mail john@example.com from 10.0.0.1")
	require.NoError(t, err)
	assert.True(t, triggered)
	assert.Equal(t, "mail <EMAIL_ADDRESS> from <IP_ADDRESS>", modified)
	assert.Equal(t, "detected EMAIL_ADDRESS, IP_ADDRESS", filter.Describe("mail john@example.com from 10.0.0.1"))

	triggered, modified, err = filter.CheckResponse(context.Background(), "nothing personal")
	require.NoError(t, err)
	assert.False(t, triggered)
	assert.Equal(t, "nothing personal", modified)
}

func TestTokenLimit(t *testing.T) {
	text := "one two three four five six"

	tests := []struct {
		mode     string
		expected string
	}{
		{TruncateEnd, "one two three four ..."},
		{TruncateStart, "three four five six"},
		{TruncateMiddle, "one two ... five six"},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			limit := NewTokenLimit(4, nil, RedactAction, tt.mode)
			triggered, modified, err := limit.CheckRequest(context.Background(), text)
			require.NoError(t, err)
			assert.True(t, triggered)
			assert.Equal(t, tt.expected, modified)
		})
	}

	limit := NewTokenLimit(10, nil, BlockAction, "")
	triggered, _, err := limit.CheckResponse(context.Background(), text)
	require.NoError(t, err)
	assert.False(t, triggered)
	assert.Equal(t, "6 tokens exceeds limit of 4", NewTokenLimit(4, nil, LogAction, "").Describe(text))
}

func TestToolRestriction(t *testing.T) {
	restriction := NewToolRestriction([]string{"Search"}, RedactAction)
	ctx := context.Background()

	triggered, modified, err := restriction.CheckRequest(ctx, "use tool search then use tool shell")
	require.NoError(t, err)
	assert.True(t, triggered)
	assert.Equal(t, "use tool search then use tool [RESTRICTED TOOL: shell is not allowed]", modified)
	assert.Equal(t, "restricted tools: shell", restriction.Describe("use tool shell and use tool SHELL"))

	triggered, _, err = restriction.CheckResponse(ctx, "use tool shell")
	require.NoError(t, err)
	assert.False(t, triggered)
}

func TestPipelineRedactsInOrder(t *testing.T) {
	pipeline := NewPipeline(nil,
		NewPiiFilter(RedactAction),
		NewContentFilter([]string{"secret"}, RedactAction),
	)

	result, err := pipeline.Check(context.Background(), StageInput, "the secret is at john@example.com")
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Equal(t, "the **** is at <EMAIL_ADDRESS>", result.Text)
	require.Len(t, result.Findings, 2)
	assert.Equal(t, PiiFilterGuardrail, result.Findings[0].Rule)
	assert.Equal(t, ContentFilterGuardrail, result.Findings[1].Rule)
	assert.Equal(t, "blocked words: secret", result.Findings[1].Reason)
}

func TestPipelineStopsOnBlock(t *testing.T) {
	after := &fakeGuardrail{kind: "after", action: BlockAction}
	pipeline := NewPipeline(nil,
		NewContentFilter([]string{"exploit"}, BlockAction),
		after,
	)

	result, err := pipeline.Check(context.Background(), StageOutput, "an exploit")
	require.NoError(t, err)
	assert.False(t, result.Passed)
	assert.Len(t, result.Findings, 1)
	assert.Zero(t, after.calls)

	_, err = pipeline.ProcessOutput(context.Background(), "an exploit")
	assert.ErrorIs(t, err, ErrBlocked)
	assert.Contains(t, err.Error(), "blocked words: exploit")
}

func TestPipelineLogActionKeepsText(t *testing.T) {
	pipeline := NewPipeline(nil, NewContentFilter([]string{"darn"}, LogAction))

	out, err := pipeline.ProcessInput(context.Background(), "darn it")
	require.NoError(t, err)
	assert.Equal(t, "darn it", out)
}

func TestPipelineError(t *testing.T) {
	boom := errors.New("boom")
	pipeline := NewPipeline(nil, &fakeGuardrail{kind: "broken", err: boom})

	_, err := pipeline.ProcessInput(context.Background(), "text")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrBlocked)
}

type fakeGuardrail struct {
	kind   GuardrailType
	action Action
	err    error
	calls  int
}

func (f *fakeGuardrail) Type() GuardrailType { return f.kind }

func (f *fakeGuardrail) Action() Action { return f.action }

func (f *fakeGuardrail) CheckRequest(_ context.Context, request string) (bool, string, error) {
	f.calls++
	if f.err != nil {
		return false, request, f.err
	}
	return true, request, nil
}

func (f *fakeGuardrail) CheckResponse(ctx context.Context, response string) (bool, string, error) {
	return f.CheckRequest(ctx, response)
}
