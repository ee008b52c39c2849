package auth

import (
	"net/http"
	"strings"
)

const customTokenHeader = "X-Auth-Token"

// BearerFromRequest extracts the handshake token, by preference order:
// Authorization header, custom header, then query parameter. Browser
// websocket clients cannot set headers, hence the query fallback.
func BearerFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if h := r.Header.Get(customTokenHeader); h != "" {
		return h
	}
	return r.URL.Query().Get("token")
}
