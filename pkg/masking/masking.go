// Package masking decides which captured span attributes are safe to export.
//
// Masking is a pure function of the policy, the attribute key and the value.
// Categorically hidden keys resolve to semconv.RedactedValue before any
// content scanning happens; everything else may be scanned for PII.
package masking

import (
	"strings"

	"github.com/run-bigpig/traceai/pkg/config"
	"github.com/run-bigpig/traceai/pkg/semconv"
)

// Engine applies a TraceConfig to attribute values. It is safe for concurrent use.
type Engine struct {
	cfg     config.TraceConfig
	scanner *Scanner
}

// New creates a masking engine for the given policy
func New(cfg config.TraceConfig) *Engine {
	return &Engine{
		cfg:     cfg,
		scanner: NewScanner(),
	}
}

// Config returns the policy the engine applies
func (e *Engine) Config() config.TraceConfig {
	return e.cfg
}

// Mask returns value as it may be recorded under key: either value itself, a
// PII-scrubbed copy, or semconv.RedactedValue. Lazy values (func() any,
// func() (any, error), func() string) are evaluated first; a failed evaluation
// is redacted.
func (e *Engine) Mask(key string, value any) any {
	value, ok := resolve(value)
	if !ok {
		return semconv.RedactedValue
	}

	if e.hidden(key, value) {
		return semconv.RedactedValue
	}

	if !e.cfg.PIIRedaction {
		return value
	}

	switch v := value.(type) {
	case string:
		return e.scanner.Scan(v)
	case []string:
		return e.scanner.ScanAll(v)
	default:
		return value
	}
}

// resolve evaluates deferred values. The second result is false when
// evaluation failed or panicked.
func resolve(value any) (resolved any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			resolved, ok = nil, false
		}
	}()

	switch fn := value.(type) {
	case func() any:
		return fn(), true
	case func() (any, error):
		v, err := fn()
		if err != nil {
			return nil, false
		}
		return v, true
	case func() string:
		return fn(), true
	default:
		return value, true
	}
}

func (e *Engine) hidden(key string, value any) bool {
	cfg := e.cfg

	switch key {
	case semconv.InputValue, semconv.InputMimeType:
		return cfg.HideInputs
	case semconv.OutputValue, semconv.OutputMimeType:
		return cfg.HideOutputs
	case semconv.LLMInvocationParameters:
		return cfg.HideInvocationParameters
	}

	if inCategory(key, semconv.LLMInputMessages) {
		if cfg.HideInputs || cfg.HideInputMessages {
			return true
		}
		if cfg.HideInputText && isTextKey(key) {
			return true
		}
		if isImageKey(key) {
			if cfg.HideInputImages {
				return true
			}
			if s, ok := value.(string); ok && isBase64Image(s) && len(s) > e.imageCutoff() {
				return true
			}
		}
		return false
	}

	if inCategory(key, semconv.LLMOutputMessages) {
		if cfg.HideOutputs || cfg.HideOutputMessages {
			return true
		}
		return cfg.HideOutputText && isTextKey(key)
	}

	if cfg.HideEmbeddingVectors && inCategory(key, semconv.EmbeddingEmbeddings) &&
		strings.HasSuffix(key, "."+semconv.EmbeddingVector) {
		return true
	}

	return false
}

func (e *Engine) imageCutoff() int {
	if e.cfg.Base64ImageMaxLength <= 0 {
		return config.DefaultBase64ImageMaxLength
	}
	return e.cfg.Base64ImageMaxLength
}

// inCategory reports whether key is prefix itself or nested under it
func inCategory(key, prefix string) bool {
	return key == prefix || (strings.HasPrefix(key, prefix) && key[len(prefix)] == '.')
}

func isTextKey(key string) bool {
	return strings.HasSuffix(key, "."+semconv.MessageContent) ||
		strings.HasSuffix(key, "."+semconv.MessageContentText)
}

func isImageKey(key string) bool {
	return strings.Contains(key, "."+semconv.MessageContentImage)
}

func isBase64Image(s string) bool {
	return strings.HasPrefix(s, "data:image/") && strings.Contains(s, ";base64,")
}
