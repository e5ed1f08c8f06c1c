package failure

import (
	"context"
	"errors"
	"strings"
)

type rule struct {
	kind     Kind
	patterns []string
}

// rules are checked in order; the first matching pattern wins.
var rules = []rule{
	{Timeout, []string{
		"context deadline exceeded",
		"task timeout",
	}},
	{SizeExceeded, []string{
		"file is larger than max-filesize",
		"size_exceeded",
		"exceeds the size limit",
	}},
	{RetryableGeo, []string{
		"available in your country",
		"geo restrict",
		"geo-restrict",
		"blocked it in your country",
		"not available from your location",
		"not available in your region",
	}},
	// Instagram answers "rate-limit reached or login required" for posts it
	// will never serve to yt-dlp; those go to the fallback engine.
	{UnsupportedFormat, []string{
		"rate-limit reached",
	}},
	{RetryableCredential, []string{
		"sign in to confirm",
		"login required",
		"log in to",
		"use --cookies",
		"authentication",
		"http error 401",
		"http error 403",
		"forbidden",
		"private video",
		"confirm your age",
		"inappropriate for some users",
	}},
	{UnsupportedFormat, []string{
		"unsupported url",
		"no video formats found",
		"no media found",
		"there is no video in this post",
		"unable to extract",
	}},
	{RetryableTransient, []string{
		"http error 429",
		"too many requests",
		"timed out",
		"connection reset",
		"connection refused",
		"temporary failure",
		"network is unreachable",
		"incomplete read",
		"http error 500",
		"http error 502",
		"http error 503",
		"http error 504",
		"unable to download webpage",
		"got error: eof",
	}},
}

// Classify maps raw error text onto a Kind.
func Classify(text string) Kind {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, p := range r.patterns {
			if strings.Contains(lower, p) {
				return r.kind
			}
		}
	}
	return FatalExtraction
}

// ClassifyError is Classify for errors, recognizing context deadlines
// regardless of their text.
func ClassifyError(err error) Kind {
	if err == nil {
		return FatalExtraction
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return Classify(err.Error())
}

var outOfRangePatterns = []string{
	"playlist index out of range",
	"index out of range",
	"there are no entries",
	"playlist does not have",
}

var noContentPatterns = []string{
	"no video formats found",
	"no media found",
	"there is no video in this post",
	"no media could be found",
}

// IsOutOfRange reports engine text meaning the requested playlist position
// does not exist. Later positions cannot exist either.
func IsOutOfRange(text string) bool {
	return containsAny(text, outOfRangePatterns)
}

// IsNoContent reports engine text meaning the URL resolved but carried no
// downloadable media.
func IsNoContent(text string) bool {
	return containsAny(text, noContentPatterns)
}

func containsAny(text string, patterns []string) bool {
	lower := strings.ToLower(text)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
