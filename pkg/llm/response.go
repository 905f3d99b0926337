package llm

// ErrorResponse is the JSON error body returned by the scribe API.
type ErrorResponse struct {
	Error string `json:"error"`
}
