package capture

import "errors"

// RenderError represents an error that occurred while rendering a section
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Error codes for rendering failures
const (
	ErrCodeRenderFailed       = "RENDER_FAILED"
	ErrCodeRenderTimeout      = "RENDER_TIMEOUT"
	ErrCodeUnsupportedContent = "UNSUPPORTED_CONTENT"
	ErrCodeResourceLoadFailed = "RESOURCE_LOAD_FAILED"
)

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrorCode returns the code of the first RenderError in err's chain, or ""
func ErrorCode(err error) string {
	var re *RenderError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
