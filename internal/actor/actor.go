// Package actor resolves who is making a request. Core operations never read
// it themselves; handlers resolve the id once and pass it down explicitly.
package actor

import (
	"net/http"
	"strconv"
)

// Resolver returns the actor id for a request, or false when there is none.
type Resolver interface {
	Resolve(r *http.Request) (int64, bool)
}

// HeaderResolver trusts an id placed on the request by the authentication
// layer in front of this service.
type HeaderResolver struct {
	Header string
}

func NewHeaderResolver(header string) HeaderResolver {
	if header == "" {
		header = "X-User-ID"
	}
	return HeaderResolver{Header: header}
}

func (h HeaderResolver) Resolve(r *http.Request) (int64, bool) {
	v := r.Header.Get(h.Header)
	if v == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
