// Package scope carries caller-supplied span attributes (session, user, metadata,
// tags and prompt template) through a context.Context.
//
// A scope frame is pushed by deriving a new context with With. Frames are immutable,
// so leaving a scope is simply returning to the parent context: no explicit pop can
// be forgotten on an early return or a panic, and goroutines holding different
// contexts never observe each other's frames.
package scope

import (
	"context"
	"encoding/json"
	"iter"
	"maps"
	"slices"

	"github.com/run-bigpig/traceai/pkg/semconv"
)

type contextKey string

// attributesKey is the context key for the active scope frame
const attributesKey contextKey = "traceai_scope"

// PromptTemplate describes the template a prompt was rendered from
type PromptTemplate struct {
	Template  string
	Version   string
	Variables map[string]interface{}
}

// Attributes is the merged view of every scope frame active in a context
type Attributes struct {
	SessionID      string
	UserID         string
	Metadata       map[string]interface{}
	Tags           []string
	PromptTemplate *PromptTemplate
}

// Option adds fields to a new scope frame
type Option func(*Attributes)

// WithSessionID sets the session identifier. An empty id keeps the outer one.
func WithSessionID(sessionID string) Option {
	return func(a *Attributes) {
		if sessionID != "" {
			a.SessionID = sessionID
		}
	}
}

// WithUserID sets the user identifier. An empty id keeps the outer one.
func WithUserID(userID string) Option {
	return func(a *Attributes) {
		if userID != "" {
			a.UserID = userID
		}
	}
}

// WithMetadata adds metadata entries. Entries from outer scopes are kept.
func WithMetadata(metadata map[string]interface{}) Option {
	return func(a *Attributes) {
		if len(metadata) == 0 {
			return
		}
		if a.Metadata == nil {
			a.Metadata = make(map[string]interface{}, len(metadata))
		}
		maps.Copy(a.Metadata, metadata)
	}
}

// WithTags appends tags that are not already present
func WithTags(tags ...string) Option {
	return func(a *Attributes) {
		for _, tag := range tags {
			if tag != "" && !slices.Contains(a.Tags, tag) {
				a.Tags = append(a.Tags, tag)
			}
		}
	}
}

// WithPromptTemplate records the template, its version and the variables used to render it
func WithPromptTemplate(template, version string, variables map[string]interface{}) Option {
	return func(a *Attributes) {
		pt := &PromptTemplate{}
		if a.PromptTemplate != nil {
			*pt = *a.PromptTemplate
			pt.Variables = maps.Clone(a.PromptTemplate.Variables)
		}
		if template != "" {
			pt.Template = template
		}
		if version != "" {
			pt.Version = version
		}
		if len(variables) > 0 {
			if pt.Variables == nil {
				pt.Variables = make(map[string]interface{}, len(variables))
			}
			maps.Copy(pt.Variables, variables)
		}
		a.PromptTemplate = pt
	}
}

// With returns a context whose scope frame is the current frame merged with opts.
// Scalars set by opts override the outer frame; metadata, tags and template
// variables are added to it.
func With(ctx context.Context, opts ...Option) context.Context {
	frame := Current(ctx)
	for _, opt := range opts {
		opt(&frame)
	}
	return context.WithValue(ctx, attributesKey, frame)
}

// Using runs fn inside a new scope frame. The frame is only visible to fn and
// to whatever fn passes its context to.
func Using(ctx context.Context, fn func(ctx context.Context) error, opts ...Option) error {
	return fn(With(ctx, opts...))
}

// Current returns a copy of the scope frame active in ctx
func Current(ctx context.Context) Attributes {
	if ctx == nil {
		return Attributes{}
	}
	frame, ok := ctx.Value(attributesKey).(Attributes)
	if !ok {
		return Attributes{}
	}
	return frame.clone()
}

// SessionIDFrom returns the session identifier active in ctx
func SessionIDFrom(ctx context.Context) (string, bool) {
	a := Current(ctx)
	return a.SessionID, a.SessionID != ""
}

// IsEmpty reports whether no field is set
func (a Attributes) IsEmpty() bool {
	return a.SessionID == "" && a.UserID == "" && len(a.Metadata) == 0 &&
		len(a.Tags) == 0 && a.PromptTemplate == nil
}

// Pairs yields the frame as span attributes
func (a Attributes) Pairs() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if a.SessionID != "" && !yield(semconv.SessionID, a.SessionID) {
			return
		}
		if a.UserID != "" && !yield(semconv.UserID, a.UserID) {
			return
		}
		if len(a.Metadata) > 0 {
			if data, err := json.Marshal(a.Metadata); err == nil && !yield(semconv.Metadata, string(data)) {
				return
			}
		}
		if len(a.Tags) > 0 && !yield(semconv.TagTags, slices.Clone(a.Tags)) {
			return
		}
		if pt := a.PromptTemplate; pt != nil {
			if pt.Template != "" && !yield(semconv.PromptTemplate, pt.Template) {
				return
			}
			if pt.Version != "" && !yield(semconv.PromptTemplateVersion, pt.Version) {
				return
			}
			if len(pt.Variables) > 0 {
				if data, err := json.Marshal(pt.Variables); err == nil {
					yield(semconv.PromptTemplateVariable, string(data))
				}
			}
		}
	}
}

func (a Attributes) clone() Attributes {
	out := Attributes{
		SessionID: a.SessionID,
		UserID:    a.UserID,
		Metadata:  maps.Clone(a.Metadata),
		Tags:      slices.Clone(a.Tags),
	}
	if a.PromptTemplate != nil {
		pt := *a.PromptTemplate
		pt.Variables = maps.Clone(a.PromptTemplate.Variables)
		out.PromptTemplate = &pt
	}
	return out
}
