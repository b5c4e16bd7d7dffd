package common

type ErrorResponse struct {
	Message string `json:"message"`
	// Machine-readable denial clause, filled for permission failures.
	Code string `json:"code,omitempty"`
}

func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{
		Message: message,
	}
}

func NewCodedErrorResponse(code, message string) *ErrorResponse {
	return &ErrorResponse{
		Message: message,
		Code:    code,
	}
}
