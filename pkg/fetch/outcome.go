package fetch

import "encoding/json"

// FailureKind classifies why a fetch failed. Transient kinds are worth
// retrying; permanent kinds are not.
type FailureKind string

const (
	// KindTimeout indicates the request exceeded its deadline.
	KindTimeout FailureKind = "timeout"

	// KindConnectionError indicates a transport-level failure (DNS, refused
	// connection, reset).
	KindConnectionError FailureKind = "connection_error"

	// KindServerError indicates a 5xx response from the API.
	KindServerError FailureKind = "server_error"

	// KindRateLimited indicates a 429 response from the API.
	KindRateLimited FailureKind = "rate_limited"

	// KindNotFound indicates a 404 response.
	KindNotFound FailureKind = "not_found"

	// KindMalformedResponse indicates a 200 response whose body is not valid JSON.
	KindMalformedResponse FailureKind = "malformed_response"

	// KindClientError indicates a 4xx response other than 404 and 429.
	KindClientError FailureKind = "client_error"
)

// Transient reports whether a failure of this kind may succeed on retry.
func (k FailureKind) Transient() bool {
	switch k {
	case KindTimeout, KindConnectionError, KindServerError, KindRateLimited:
		return true
	default:
		return false
	}
}

// Status is the terminal disposition of one product ID.
type Status string

const (
	// StatusSuccess means the payload was fetched.
	StatusSuccess Status = "success"

	// StatusFailure means all applicable attempts failed.
	StatusFailure Status = "failure"

	// StatusDuplicate means the ID was a repeat occurrence in the input.
	StatusDuplicate Status = "duplicate"
)

// Outcome is the terminal result of processing one product ID. Once created
// it is immutable; after a worker sends an Outcome on the results channel it
// must not touch the payload again.
type Outcome struct {
	ID       string          `json:"id"`
	Status   Status          `json:"status"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Kind     FailureKind     `json:"kind,omitempty"`
	Message  string          `json:"message,omitempty"`
	Attempts int             `json:"attempts"`
}

// Success builds a success outcome. The payload is handed over verbatim.
func Success(id string, payload json.RawMessage, attempts int) Outcome {
	return Outcome{
		ID:       id,
		Status:   StatusSuccess,
		Payload:  payload,
		Attempts: attempts,
	}
}

// Failure builds a terminal failure outcome carrying the last failure kind.
func Failure(id string, kind FailureKind, message string, attempts int) Outcome {
	return Outcome{
		ID:       id,
		Status:   StatusFailure,
		Kind:     kind,
		Message:  message,
		Attempts: attempts,
	}
}

// Duplicate builds an outcome for an ID that repeated in the input.
func Duplicate(id string) Outcome {
	return Outcome{
		ID:     id,
		Status: StatusDuplicate,
	}
}
