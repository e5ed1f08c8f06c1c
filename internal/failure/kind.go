// Package failure maps raw engine and transport error text onto a closed set
// of failure kinds and scrubs secrets out of user-facing messages.
package failure

// Kind is the category of a failed attempt.
type Kind int

const (
	// FatalExtraction is the fallback for anything not matched below.
	FatalExtraction Kind = iota
	RetryableCredential
	RetryableGeo
	RetryableTransient
	UnsupportedFormat
	SizeExceeded
	Timeout
)

var kindNames = map[Kind]string{
	FatalExtraction:     "fatal",
	RetryableCredential: "credential",
	RetryableGeo:        "geo",
	RetryableTransient:  "transient",
	UnsupportedFormat:   "unsupported",
	SizeExceeded:        "size_exceeded",
	Timeout:             "timeout",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Retryable reports whether the orchestrator resolves this kind itself,
// by switching egress or backing off, before surfacing it.
func (k Kind) Retryable() bool {
	switch k {
	case RetryableCredential, RetryableGeo, RetryableTransient:
		return true
	}
	return false
}

// UserMessage is the text shown to the requester once a kind is surfaced.
func (k Kind) UserMessage() string {
	switch k {
	case RetryableCredential:
		return "This content requires a login and none of the available accounts could access it."
	case RetryableGeo:
		return "This content is not available in the regions we can reach."
	case RetryableTransient:
		return "The source kept failing temporarily. Please try again later."
	case UnsupportedFormat:
		return "This link is not supported or contains no downloadable media."
	case SizeExceeded:
		return "The file is too large to download."
	case Timeout:
		return "The download took too long and was stopped."
	default:
		return "The download failed."
	}
}
