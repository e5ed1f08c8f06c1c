// Package egress picks the credential file and proxy for each download
// attempt. A Selector owns the shared state (round-robin counter, random
// source, per-domain success cache); a Session tracks what one task has
// already tried so no credential is used twice.
package egress

import (
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/failure"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"
)

// Policy is the proxy selection strategy.
type Policy string

const (
	RoundRobin Policy = "round_robin"
	Random     Policy = "random"
	Static     Policy = "static"
)

var hostAliases = map[string]string{
	"youtu.be":      "youtube.com",
	"vm.tiktok.com": "tiktok.com",
	"twitter.com":   "x.com",
	"instagr.am":    "instagram.com",
}

type success struct {
	credential string
	expires    time.Time
}

// Selector hands out sessions and remembers working credentials.
type Selector struct {
	mu sync.Mutex

	credentials map[string][]string
	defaults    []string
	proxies     []string
	static      map[string]string
	policy      Policy
	ttl         time.Duration

	counter   int
	rng       *rand.Rand
	successes map[string]success
	now       func() time.Time
}

// Option customizes a Selector.
type Option func(*Selector)

// WithRand sets the random source used by the random policy.
func WithRand(rng *rand.Rand) Option {
	return func(s *Selector) { s.rng = rng }
}

// WithClock sets the clock used for the success cache.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) { s.now = now }
}

// NewSelector builds a Selector from the egress configuration.
func NewSelector(cfg config.EgressConfig, opts ...Option) *Selector {
	s := &Selector{
		credentials: make(map[string][]string, len(cfg.Credentials)),
		defaults:    append([]string(nil), cfg.DefaultCredentials...),
		proxies:     append([]string(nil), cfg.Proxies...),
		static:      make(map[string]string, len(cfg.StaticProxies)),
		policy:      Policy(cfg.ProxyPolicy),
		ttl:         cfg.SuccessTTL,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		successes:   make(map[string]success),
		now:         time.Now,
	}
	for d, files := range cfg.Credentials {
		s.credentials[strings.ToLower(d)] = append([]string(nil), files...)
	}
	for d, proxy := range cfg.StaticProxies {
		s.static[strings.ToLower(d)] = proxy
	}
	if s.policy == "" {
		s.policy = RoundRobin
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Secrets returns every credential path and proxy URL, for redaction.
func (s *Selector) Secrets() (credentials, proxies []string) {
	credentials = append(credentials, s.defaults...)
	for _, files := range s.credentials {
		credentials = append(credentials, files...)
	}
	proxies = append(proxies, s.proxies...)
	for _, p := range s.static {
		proxies = append(proxies, p)
	}
	return credentials, proxies
}

// NewSession starts a fresh per-task session for rawURL.
func (s *Selector) NewSession(rawURL string) *Session {
	d := s.domainOf(rawURL)

	candidates := s.credentials[d]
	specific := len(candidates) > 0
	if !specific {
		candidates = s.defaults
	}

	return &Session{
		selector:   s,
		domain:     d,
		candidates: append([]string(nil), candidates...),
		specific:   specific,
		tried:      make(map[string]bool),
		retried:    make(map[failure.Kind]bool),
		state:      Untried,
	}
}

// domainOf maps a URL to the configured domain it belongs to.
func (s *Selector) domainOf(rawURL string) string {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if alias, ok := hostAliases[host]; ok {
		host = alias
	}

	for d := range s.credentials {
		if host == d || strings.HasSuffix(host, "."+d) {
			return d
		}
	}
	for d := range s.static {
		if host == d || strings.HasSuffix(host, "."+d) {
			return d
		}
	}

	labels := strings.Split(host, ".")
	if len(labels) > 2 {
		return strings.Join(labels[len(labels)-2:], ".")
	}
	return host
}

func (s *Selector) cachedSuccess(d string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hit, ok := s.successes[d]
	if !ok {
		return "", false
	}
	if !s.now().Before(hit.expires) {
		delete(s.successes, d)
		return "", false
	}
	return hit.credential, true
}

func (s *Selector) rememberSuccess(d, credential string) {
	if s.ttl <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successes[d] = success{credential: credential, expires: s.now().Add(s.ttl)}
}

func (s *Selector) staticProxy(d string) string {
	return s.static[d]
}

// nextProxy picks a proxy for d, avoiding current when there is a choice.
func (s *Selector) nextProxy(d, current string) (string, bool) {
	if p := s.static[d]; p != "" && s.policy == Static && p != current {
		return p, true
	}
	if len(s.proxies) == 0 {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < 2*len(s.proxies); attempt++ {
		var p string
		switch s.policy {
		case Random:
			p = s.proxies[s.rng.Intn(len(s.proxies))]
		case Static:
			p = s.proxies[0]
		default:
			p = s.proxies[s.counter%len(s.proxies)]
			s.counter++
		}
		if p != current {
			return p, true
		}
	}
	return "", false
}
