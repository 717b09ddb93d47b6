// Package origin decides which browser origin a request may return to or
// receive CORS grants for. Every decision is checked against a fixed
// allow-list whose first entry is the fallback.
package origin

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// QueryParam lets the initiating page declare its own origin on /auth/login.
const QueryParam = "origin"

var ErrEmptyAllowList = errors.New("origin allow-list is empty")

type Validator struct {
	allowed  map[string]struct{}
	fallback string
}

func New(allowed []string) (*Validator, error) {
	v := &Validator{allowed: make(map[string]struct{}, len(allowed))}
	for _, o := range allowed {
		o = normalize(o)
		if o == "" {
			continue
		}
		if v.fallback == "" {
			v.fallback = o
		}
		v.allowed[o] = struct{}{}
	}
	if v.fallback == "" {
		return nil, ErrEmptyAllowList
	}
	return v, nil
}

// Allowed reports whether o is on the allow-list.
func (v *Validator) Allowed(o string) bool {
	o = normalize(o)
	if o == "" {
		return false
	}
	_, ok := v.allowed[o]
	return ok
}

// Fallback is the first configured origin.
func (v *Validator) Fallback() string { return v.fallback }

// Resolve picks the origin a redirect should go back to. The first candidate
// present among the origin query parameter, the Origin header and the
// Referer header decides; anything not allow-listed yields the fallback.
func (v *Validator) Resolve(r *http.Request) string {
	if o := r.URL.Query().Get(QueryParam); o != "" {
		return v.orFallback(o)
	}
	if o := r.Header.Get("Origin"); o != "" {
		return v.orFallback(o)
	}
	if ref := r.Header.Get("Referer"); ref != "" {
		return v.orFallback(fromReferer(ref))
	}
	return v.fallback
}

// ResolveCORS returns the value for Access-Control-Allow-Origin. An
// untrusted Origin header is never echoed.
func (v *Validator) ResolveCORS(r *http.Request) string {
	return v.orFallback(r.Header.Get("Origin"))
}

// FromState validates an origin carried through the OAuth state parameter.
func (v *Validator) FromState(state string) string {
	return v.orFallback(state)
}

func (v *Validator) orFallback(o string) string {
	if v.Allowed(o) {
		return normalize(o)
	}
	return v.fallback
}

func normalize(o string) string {
	return strings.TrimRight(strings.TrimSpace(o), "/")
}

// fromReferer reduces a full Referer URL to scheme://host[:port].
func fromReferer(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
