package egress

import (
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/failure"
)

// State is the progress of a session through its credentials.
type State int

const (
	Untried State = iota
	Trying
	Succeeded
	Exhausted
)

func (s State) String() string {
	switch s {
	case Untried:
		return "untried"
	case Trying:
		return "trying"
	case Succeeded:
		return "succeeded"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Session is the egress state of one task. It is not safe for concurrent
// use; a task's attempts run sequentially.
type Session struct {
	selector   *Selector
	domain     string
	candidates []string
	// specific is true when candidates come from a domain entry rather
	// than the defaults.
	specific bool

	tried   map[string]bool
	retried map[failure.Kind]bool
	current domain.EgressProfile
	state   State
}

// Domain returns the domain the session selects for.
func (s *Session) Domain() string { return s.domain }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Current returns the profile of the latest attempt.
func (s *Session) Current() domain.EgressProfile { return s.current }

// Untried returns how many candidate credentials have not been used.
func (s *Session) Untried() int {
	n := 0
	for _, c := range s.candidates {
		if !s.tried[c] {
			n++
		}
	}
	return n
}

// Initial returns the profile of the first attempt: a credential that
// recently worked for the domain, else the first domain credential, else
// none. A static proxy for the domain is always applied.
func (s *Session) Initial() domain.EgressProfile {
	profile := domain.EgressProfile{ProxyURL: s.selector.staticProxy(s.domain)}

	if cred, ok := s.selector.cachedSuccess(s.domain); ok {
		profile.CredentialID = cred
	} else if s.specific && len(s.candidates) > 0 {
		profile.CredentialID = s.candidates[0]
	}

	if profile.CredentialID != "" {
		s.tried[profile.CredentialID] = true
		s.state = Trying
	}
	s.current = profile
	return profile
}

// Next returns the profile for the retry after a failure of kind. It
// returns false when the kind has no egress remedy or its single retry has
// been spent; the session is then Exhausted.
func (s *Session) Next(kind failure.Kind) (domain.EgressProfile, bool) {
	if s.retried[kind] {
		s.state = Exhausted
		return domain.EgressProfile{}, false
	}

	next := s.current
	switch kind {
	case failure.RetryableCredential:
		cred, ok := s.nextCredential()
		if !ok {
			s.state = Exhausted
			return domain.EgressProfile{}, false
		}
		next.CredentialID = cred
		s.tried[cred] = true
		s.state = Trying

	case failure.RetryableGeo:
		proxy, ok := s.selector.nextProxy(s.domain, s.current.ProxyURL)
		if !ok {
			s.state = Exhausted
			return domain.EgressProfile{}, false
		}
		next.ProxyURL = proxy

	default:
		return domain.EgressProfile{}, false
	}

	s.retried[kind] = true
	s.current = next
	return next, true
}

// Succeeded records that the current profile worked.
func (s *Session) Succeeded() {
	s.state = Succeeded
	if s.current.CredentialID != "" {
		s.selector.rememberSuccess(s.domain, s.current.CredentialID)
	}
}

func (s *Session) nextCredential() (string, bool) {
	for _, c := range s.candidates {
		if !s.tried[c] {
			return c, true
		}
	}
	return "", false
}
