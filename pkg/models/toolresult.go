package models

// ErrorCode classifies tool failures.
type ErrorCode string

const (
	ErrorCodeNetwork          ErrorCode = "NETWORK"
	ErrorCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrorCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrorCodeRateLimit        ErrorCode = "RATE_LIMIT"
	ErrorCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	ErrorCodeInternal         ErrorCode = "INTERNAL"
)

// IsValid checks if the error code is one of the known codes.
func (c ErrorCode) IsValid() bool {
	switch c {
	case ErrorCodeNetwork, ErrorCodeNotFound, ErrorCodeInvalidInput,
		ErrorCodeRateLimit, ErrorCodePermissionDenied, ErrorCodeInternal:
		return true
	default:
		return false
	}
}

// DefaultRetryable is the conventional retry hint for each code.
func (c ErrorCode) DefaultRetryable() bool {
	switch c {
	case ErrorCodeNetwork, ErrorCodeRateLimit, ErrorCodeInternal:
		return true
	default:
		return false
	}
}

// ToolError describes a tool failure.
type ToolError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
}

// ToolMeta carries provenance for a tool invocation.
type ToolMeta struct {
	Source    string         `json:"source"`
	LatencyMs int64          `json:"latency_ms"`
	Params    map[string]any `json:"params,omitempty"`
}

// ToolResult is the uniform envelope every tool returns. Exactly one of
// Data and Error is set, matching Ok.
type ToolResult struct {
	Ok    bool           `json:"ok"`
	Data  map[string]any `json:"data,omitempty"`
	Error *ToolError     `json:"error,omitempty"`
	Meta  ToolMeta       `json:"meta"`
}

// NewToolSuccess builds an ok result.
func NewToolSuccess(data map[string]any, meta ToolMeta) *ToolResult {
	if data == nil {
		data = map[string]any{}
	}
	return &ToolResult{Ok: true, Data: data, Meta: meta}
}

// NewToolFailure builds a failed result with the code's default retry hint.
func NewToolFailure(code ErrorCode, message string, meta ToolMeta) *ToolResult {
	return &ToolResult{
		Ok:    false,
		Error: &ToolError{Code: code, Message: message, Retryable: code.DefaultRetryable()},
		Meta:  meta,
	}
}

// Retryable reports whether a failed result may be retried.
func (r *ToolResult) Retryable() bool {
	return !r.Ok && r.Error != nil && r.Error.Retryable
}

// ErrorMessage returns the failure message, or "" for ok results.
func (r *ToolResult) ErrorMessage() string {
	if r.Ok || r.Error == nil {
		return ""
	}
	return r.Error.Message
}
