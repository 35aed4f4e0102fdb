// Package semconv holds the attribute keys and values recorded on instrumentation spans.
//
// The keys are consumed by downstream viewers and must stay stable. Indexed keys are
// built with the helper functions at the bottom of this file, for example
// InputMessage(0, MessageRole) yields "llm.input_messages.0.message.role".
package semconv

import (
	"strconv"
	"strings"
)

// Span kind
const (
	SpanKind = "fi.span.kind"
)

// Span kind values
const (
	SpanKindLLM       = "LLM"
	SpanKindEmbedding = "EMBEDDING"
	SpanKindReranker  = "RERANKER"
	SpanKindTool      = "TOOL"
	SpanKindAgent     = "AGENT"
	SpanKindChain     = "CHAIN"
	SpanKindRetriever = "RETRIEVER"
	SpanKindVectorDB  = "VECTOR_DB"
	SpanKindGuardrail = "GUARDRAIL"
)

// Input and output
const (
	InputValue     = "input.value"
	InputMimeType  = "input.mime_type"
	OutputValue    = "output.value"
	OutputMimeType = "output.mime_type"
)

// Mime types
const (
	MimeTypeText = "text/plain"
	MimeTypeJSON = "application/json"
)

// LLM
const (
	LLMProvider             = "llm.provider"
	LLMSystem               = "llm.system"
	LLMModelName            = "llm.model_name"
	LLMInvocationParameters = "llm.invocation_parameters"
	LLMInputMessages        = "llm.input_messages"
	LLMOutputMessages       = "llm.output_messages"
	LLMTools                = "llm.tools"
	LLMTokenCountPrompt     = "llm.token_count.prompt"
	LLMTokenCountCompletion = "llm.token_count.completion"
	LLMTokenCountTotal      = "llm.token_count.total"
	LLMFinishReason         = "llm.finish_reason"
	LLMSystemPrompt         = "llm.system_prompt"
)

// Message fields, relative to an indexed message prefix
const (
	MessageRole          = "message.role"
	MessageContent       = "message.content"
	MessageName          = "message.name"
	MessageToolCallID    = "message.tool_call_id"
	MessageContents      = "message.contents"
	MessageToolCalls     = "message.tool_calls"
	MessageContentType   = "message_content.type"
	MessageContentText   = "message_content.text"
	MessageContentImage  = "message_content.image"
	ImageURL             = "image.url"
	ToolCallID           = "tool_call.id"
	ToolCallFunctionName = "tool_call.function.name"
	ToolCallFunctionArgs = "tool_call.function.arguments"
	ToolJSONSchema       = "tool.json_schema"
)

// Embeddings
const (
	EmbeddingModelName  = "embedding.model_name"
	EmbeddingEmbeddings = "embedding.embeddings"
	EmbeddingText       = "embedding.text"
	EmbeddingVector     = "embedding.vector"
)

// Reranker
const (
	RerankerQuery           = "reranker.query"
	RerankerModelName       = "reranker.model_name"
	RerankerTopK            = "reranker.top_k"
	RerankerInputDocuments  = "reranker.input_documents"
	RerankerOutputDocuments = "reranker.output_documents"
)

// Documents, relative to an indexed document prefix
const (
	RetrievalDocuments = "retrieval.documents"
	DocumentID         = "document.id"
	DocumentContent    = "document.content"
	DocumentScore      = "document.score"
	DocumentMetadata   = "document.metadata"
)

// Tools
const (
	ToolName        = "tool.name"
	ToolDescription = "tool.description"
	ToolParameters  = "tool.parameters"
	ToolIsError     = "tool.is_error"
)

// Vector stores
const (
	DBSystem     = "db.system"
	DBOperation  = "db.operation"
	DBCollection = "db.collection"
	DBLimit      = "db.limit"
	DBMinScore   = "db.min_score"
	DBFilters    = "db.filters"
	DBBatchSize  = "db.batch_size"
	DBIDs        = "db.ids"
)

// Guardrails
const (
	GuardrailRules   = "guardrail.rules"
	GuardrailStatus  = "guardrail.status"
	GuardrailReasons = "guardrail.reasons"
	GuardrailRule    = "guardrail.rule"
	GuardrailReason  = "guardrail.reason"
	GuardrailAction  = "guardrail.action"
)

// Guardrail status values
const (
	GuardrailStatusPassed = "passed"
	GuardrailStatusFailed = "failed"
)

// Context scope. These never collide with extractor keys.
const (
	SessionID              = "session.id"
	UserID                 = "user.id"
	Metadata               = "metadata"
	TagTags                = "tag.tags"
	PromptTemplate         = "llm.prompt_template.template"
	PromptTemplateVersion  = "llm.prompt_template.version"
	PromptTemplateVariable = "llm.prompt_template.variables"
)

// Span lifecycle markers
const (
	StreamIncomplete = "fi.stream.incomplete"
	SpanCancelled    = "fi.span.cancelled"
	FirstTokenEvent  = "First Token Stream Event"
)

// RedactedValue replaces any value hidden by the masking policy.
const RedactedValue = "__REDACTED__"

// Indexed joins a prefix, an index and a field into a dotted key.
func Indexed(prefix string, i int, field string) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(field) + 4)
	b.WriteString(prefix)
	b.WriteByte('.')
	b.WriteString(strconv.Itoa(i))
	if field != "" {
		b.WriteByte('.')
		b.WriteString(field)
	}
	return b.String()
}

// InputMessage returns the key of field on the i-th input message.
func InputMessage(i int, field string) string {
	return Indexed(LLMInputMessages, i, field)
}

// OutputMessage returns the key of field on the i-th output message.
func OutputMessage(i int, field string) string {
	return Indexed(LLMOutputMessages, i, field)
}

// MessageContentPart returns the key of field on the j-th content part of a message prefix.
func MessageContentPart(message string, j int, field string) string {
	return Indexed(message+"."+MessageContents, j, field)
}

// MessageToolCall returns the key of field on the j-th tool call of a message prefix.
func MessageToolCall(message string, j int, field string) string {
	return Indexed(message+"."+MessageToolCalls, j, field)
}
