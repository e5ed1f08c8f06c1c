package failure

import (
	"regexp"
	"sort"
	"strings"
)

const (
	credentialPlaceholder = "<credential>"
	proxyPlaceholder      = "<proxy>"
	urlPlaceholder        = "<url>"
)

var (
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)
	urlPattern  = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.\-]*://[^\s'"<>]+`)
)

// Redactor removes credential paths, proxy addresses and URLs from text
// before it is shown to a requester.
type Redactor struct {
	credentials []string
	proxies     []string
}

// NewRedactor builds a Redactor for the known secret values.
func NewRedactor(credentials, proxies []string) *Redactor {
	r := &Redactor{
		credentials: nonEmpty(credentials),
		proxies:     nonEmpty(proxies),
	}
	// longest first so a path never leaves a suffix of a longer one behind
	sort.Slice(r.credentials, func(i, j int) bool { return len(r.credentials[i]) > len(r.credentials[j]) })
	sort.Slice(r.proxies, func(i, j int) bool { return len(r.proxies[i]) > len(r.proxies[j]) })
	return r
}

// Redact returns text safe for users.
func (r *Redactor) Redact(text string) string {
	text = ansiPattern.ReplaceAllString(text, "")

	for _, p := range r.proxies {
		text = strings.ReplaceAll(text, p, proxyPlaceholder)
	}
	for _, c := range r.credentials {
		text = strings.ReplaceAll(text, c, credentialPlaceholder)
	}

	text = urlPattern.ReplaceAllStringFunc(text, func(u string) string {
		if isProxyScheme(u) {
			return proxyPlaceholder
		}
		return urlPlaceholder
	})

	text = strings.TrimPrefix(strings.TrimSpace(text), "ERROR: ")
	return text
}

// Message renders the user-facing text for a surfaced failure.
func (r *Redactor) Message(kind Kind, detail string) string {
	detail = r.Redact(detail)
	if detail == "" {
		return kind.UserMessage()
	}
	return kind.UserMessage() + "\n" + detail
}

// isProxyScheme treats socks URLs and URLs carrying userinfo as egress
// addresses.
func isProxyScheme(u string) bool {
	if strings.HasPrefix(strings.ToLower(u), "socks") {
		return true
	}
	rest := u[strings.Index(u, "://")+3:]
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		rest = rest[:slash]
	}
	return strings.Contains(rest, "@")
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
