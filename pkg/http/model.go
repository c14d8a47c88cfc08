package http

// APIResponse is the envelope every route writes. Errors go in Data as a
// list of AppError or ValidationError.
type APIResponse struct {
	Status    int         `json:"status"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

type ValidationError struct {
	Code    string                 `json:"code,omitempty"`
	Field   string                 `json:"field,omitempty"`
	Message string                 `json:"message,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListData wraps a collection with its size.
type ListData struct {
	Items interface{} `json:"items"`
	Total int         `json:"total"`
}
