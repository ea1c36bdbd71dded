package types

// Envelope is the body of every REST response: data on success, error otherwise.
type Envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func OK(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

func Fail(code, message string, details any) Envelope {
	return Envelope{Error: &APIError{Code: code, Message: message, Details: details}}
}
