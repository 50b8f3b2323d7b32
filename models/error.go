package models

// ErrorMessageResponse is the error body returned by the API on non-2xx responses
type ErrorMessageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
