// Package classify marks content as restricted by source domain or by
// keywords in its title and description.
package classify

import (
	"context"
	"net/url"
	"strings"
	"unicode"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"
)

// Keywords implements domain.Classifier with static lists.
type Keywords struct {
	domains  map[string]struct{}
	keywords map[string]struct{}
}

var _ domain.Classifier = (*Keywords)(nil)

// New builds a classifier from cfg. Matching is case-insensitive.
func New(cfg config.ClassifierConfig) *Keywords {
	k := &Keywords{
		domains:  make(map[string]struct{}, len(cfg.Domains)),
		keywords: make(map[string]struct{}, len(cfg.Keywords)),
	}
	for _, d := range cfg.Domains {
		k.domains[strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")] = struct{}{}
	}
	for _, w := range cfg.Keywords {
		k.keywords[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return k
}

// IsRestricted reports whether the host of rawURL, or any parent domain of
// it, is listed, or whether a listed keyword appears as a whole word in
// title or description.
func (k *Keywords) IsRestricted(_ context.Context, rawURL, title, description string) bool {
	if k.hostListed(rawURL) {
		return true
	}
	if len(k.keywords) == 0 {
		return false
	}
	for _, text := range []string{title, description} {
		for _, word := range words(text) {
			if _, ok := k.keywords[word]; ok {
				return true
			}
		}
	}
	return false
}

func (k *Keywords) hostListed(rawURL string) bool {
	if len(k.domains) == 0 {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for host != "" {
		if _, ok := k.domains[host]; ok {
			return true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			break
		}
		host = host[i+1:]
	}
	return false
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
