package cache

import (
	"net/url"
	"sort"
	"strings"
)

// canonicalizer rewrites a parsed URL for one family of hosts.
type canonicalizer struct {
	hosts []string
	apply func(u *url.URL)
}

// dropParams are tracking parameters removed from every URL.
var dropParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"si":      true,
	"igshid":  true,
	"igsh":    true,
	"feature": true,
	"ref":     true,
}

var canonicalizers = []canonicalizer{
	{
		hosts: []string{"youtube.com", "m.youtube.com", "music.youtube.com", "youtu.be"},
		apply: canonicalYouTube,
	},
	{
		hosts: []string{"instagram.com", "tiktok.com", "vm.tiktok.com"},
		apply: func(u *url.URL) { u.RawQuery = "" },
	},
	{
		hosts: []string{"twitter.com", "mobile.twitter.com", "x.com"},
		apply: func(u *url.URL) {
			u.Host = "x.com"
			u.RawQuery = ""
		},
	},
}

// Normalize returns the canonical form of raw used in cache keys.
// Normalize(Normalize(x)) == Normalize(x) for every input.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = "https"
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""
	u.ForceQuery = false
	u.Host = strings.ToLower(u.Host)
	for strings.HasPrefix(u.Host, "www.") {
		u.Host = u.Host[len("www."):]
	}
	if strings.HasSuffix(u.Host, ":443") || strings.HasSuffix(u.Host, ":80") {
		u.Host = u.Host[:strings.LastIndexByte(u.Host, ':')]
	}

	for _, c := range canonicalizers {
		if matchesHost(u.Host, c.hosts) {
			c.apply(u)
			return finish(u)
		}
	}

	q := u.Query()
	for key := range q {
		if dropParams[strings.ToLower(key)] || strings.HasPrefix(strings.ToLower(key), "utm_") {
			q.Del(key)
		}
	}
	u.RawQuery = encodeSorted(q)
	return finish(u)
}

func finish(u *url.URL) string {
	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}
	if u.Path == "/" {
		u.Path = ""
	}
	return u.String()
}

func canonicalYouTube(u *url.URL) {
	q := u.Query()
	id := q.Get("v")

	switch {
	case u.Host == "youtu.be":
		id = strings.Trim(u.Path, "/")
	case strings.HasPrefix(u.Path, "/shorts/"), strings.HasPrefix(u.Path, "/live/"), strings.HasPrefix(u.Path, "/embed/"):
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) >= 2 {
			id = parts[1]
		}
	}

	keep := url.Values{}
	if id != "" {
		keep.Set("v", id)
	}
	if list := q.Get("list"); list != "" {
		keep.Set("list", list)
	}

	u.Host = "youtube.com"
	switch {
	case id != "":
		u.Path = "/watch"
	case keep.Get("list") != "":
		u.Path = "/playlist"
	}
	u.RawQuery = encodeSorted(keep)
}

func matchesHost(host string, hosts []string) bool {
	for _, h := range hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// encodeSorted encodes q with keys and values in a fixed order.
func encodeSorted(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		values := append([]string(nil), q[k]...)
		sort.Strings(values)
		for _, v := range values {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
