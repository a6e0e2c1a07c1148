// Package envelope defines the JSON error body written by handlers and middleware.
// It imports nothing from this module, so middleware can depend on it.
package envelope

// Error codes
const (
	CodeNotFound           = "NOT_FOUND"
	CodeBadRequest         = "BAD_REQUEST"
	CodeInternalServer     = "INTERNAL_SERVER_ERROR"
	CodeValidation         = "VALIDATION_ERROR"
	CodeDatabaseConnection = "DATABASE_CONNECTION_ERROR"
	CodeAddressNotFound    = "ADDRESS_NOT_FOUND"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeRateLimited        = "RATE_LIMITED"
)

// Response is the top-level error response structure.
type Response struct {
	Error Detail `json:"error"`
}

// Detail contains the error information.
type Detail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// New builds a Response without details.
func New(code, message, requestID string) Response {
	return Response{Error: Detail{Code: code, Message: message, RequestID: requestID}}
}

// WithDetails returns a copy of r carrying details.
func (r Response) WithDetails(details map[string]interface{}) Response {
	r.Error.Details = details
	return r
}
