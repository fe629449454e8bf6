package portalmock

import (
	"errors"
	"net/http"
	"strings"

	"placecell.org/internal/auth"
	"placecell.org/internal/portal"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

// access names who may call a route.
type access int

const (
	anyUser access = iota
	studentsOnly
	officersOnly
)

// withAuth verifies the bearer token, rejects revoked tokens and puts the
// caller's principal on the request context.
func (s *Server) withAuth(who access, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		claims, err := s.signer.Verify(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "Token is invalid or expired")
			return
		}
		s.mu.Lock()
		revoked := s.revoked[claims.ID]
		s.mu.Unlock()
		if revoked {
			writeError(w, r, http.StatusUnauthorized, "Token has been revoked")
			return
		}
		role, ok := auth.ParseRole(claims.Role)
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "Token is invalid or expired")
			return
		}
		p := auth.Principal{ID: portal.ID(claims.Subject), Email: claims.Email, Role: role}
		switch {
		case who == studentsOnly && p.IsOfficer():
			writeError(w, r, http.StatusForbidden, "Unauthorized: Student role required")
			return
		case who == officersOnly && !p.IsOfficer():
			writeError(w, r, http.StatusForbidden, "Unauthorized: Admin or CDPC role required")
			return
		}
		ctx := auth.ContextWithPrincipal(r.Context(), p)
		ctx = withTokenID(ctx, claims.ID)
		next(w, r.WithContext(ctx))
	}
}

// caller returns the numeric id of the authenticated principal.
func caller(r *http.Request) (int, auth.Principal) {
	p, _ := auth.PrincipalFromContext(r.Context())
	n, _ := p.ID.Int()
	return int(n), p
}
