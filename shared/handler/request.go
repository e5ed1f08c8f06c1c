package handler

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Request types understood by the media bot worker.
const (
	TypeDownload = "download"
)

// Request is one intake message, independent of the queue or HTTP route
// that carried it.
type Request struct {
	ID string `json:"id"`

	// Source names the intake: "rabbitmq", "sqs" or "http".
	Source string `json:"source"`

	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`

	// Metadata carries transport attributes such as trace headers.
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Response is the outcome of a Request.
type Response struct {
	ID          string            `json:"id"`
	Success     bool              `json:"success"`
	Data        json.RawMessage   `json:"data,omitempty"`
	Error       *ErrorResponse    `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ProcessedAt time.Time         `json:"processed_at"`
	Duration    time.Duration     `json:"duration,omitempty"`
}

// ErrorResponse is the machine-readable failure of a Request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	// Retryable tells the intake whether redelivery may help.
	Retryable bool `json:"retryable,omitempty"`
}

// Error codes.
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal    = "INTERNAL_ERROR"
	CodeCancelled   = "CANCELLED"
)

var retryableCodes = map[string]bool{
	CodeUnavailable: true,
	CodeCancelled:   true,
}

// NewRequest wraps payload in a Request with a fresh ID.
func NewRequest(requestType string, payload interface{}) (Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Request{}, err
	}

	return Request{
		ID:        uuid.NewString(),
		Type:      requestType,
		Payload:   body,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UTC(),
	}, nil
}

// Unmarshal decodes the payload into v.
func (r *Request) Unmarshal(v interface{}) error {
	return json.Unmarshal(r.Payload, v)
}

// SetMetadata adds or replaces a metadata entry.
func (r *Request) SetMetadata(key, value string) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
}

// GetMetadata returns a metadata entry.
func (r *Request) GetMetadata(key string) (string, bool) {
	val, ok := r.Metadata[key]
	return val, ok
}

// Marshal encodes v as the response data.
func (r *Response) Marshal(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.Data = data
	return nil
}

// NewErrorResponse builds a failed Response.
func NewErrorResponse(id, code, message, details string) Response {
	return Response{
		ID:      id,
		Success: false,
		Error: &ErrorResponse{
			Code:      code,
			Message:   message,
			Details:   details,
			Retryable: retryableCodes[code],
		},
		ProcessedAt: time.Now().UTC(),
	}
}

// NewSuccessResponse builds a successful Response carrying data.
func NewSuccessResponse(id string, data interface{}) (Response, error) {
	resp := Response{
		ID:          id,
		Success:     true,
		ProcessedAt: time.Now().UTC(),
		Metadata:    make(map[string]string),
	}

	if data != nil {
		if err := resp.Marshal(data); err != nil {
			return Response{}, err
		}
	}
	return resp, nil
}
