package chi

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyHeader is accepted as an alternative to a Bearer token.
const APIKeyHeader = "X-API-Key"

// publicPaths bypass authentication so probes and scrapers need no credentials.
var publicPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// BearerAuthMiddleware rejects requests without a configured API key. Keys are read from
// "Authorization: Bearer <key>" or the X-API-Key header. Empty apiKeys disables the check.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	digests := make([][sha256.Size]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			digests = append(digests, sha256.Sum256([]byte(k)))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(digests) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := publicPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			token, problem := credential(r)
			if problem == "" && !known(digests, token) {
				problem = "invalid api key"
			}
			if problem != "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="mongomap"`)
				writeError(w, http.StatusUnauthorized, codeUnauthorized, problem)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// credential extracts the presented key, or a reason why none was usable.
func credential(r *http.Request) (token, problem string) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return "", "authorization header must use Bearer scheme"
		}
		if tok = strings.TrimSpace(tok); tok == "" {
			return "", "empty bearer token"
		}
		return tok, ""
	}
	if k := r.Header.Get(APIKeyHeader); k != "" {
		return k, ""
	}
	return "", "missing authorization header"
}

// known compares fixed-size digests in constant time and visits every key.
func known(digests [][sha256.Size]byte, token string) bool {
	sum := sha256.Sum256([]byte(token))
	match := 0
	for i := range digests {
		match |= subtle.ConstantTimeCompare(digests[i][:], sum[:])
	}
	return match == 1
}
