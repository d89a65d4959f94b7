package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	CodeKeyRequired  = "idempotency_key_required"
	CodeKeyMalformed = "idempotency_key_malformed"
	CodeConflict     = "idempotency_conflict"
	CodeProcessing   = "processing"
	CodeInternal     = "internal_error"
)
