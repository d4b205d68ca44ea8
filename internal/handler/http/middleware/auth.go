package middleware

import (
	"net/http"

	"github.com/clubtrack/attendance-backend-go/internal/domain/auth"
	"github.com/clubtrack/attendance-backend-go/internal/handler/http/response"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
)

// AuthRequired rejects requests without a verified access token and stores the
// caller's identity in the request context.
func AuthRequired(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())

			if err != nil {
				response.Unauthorized(w, err.Error())
				return
			}

			if token == nil {
				response.HandleError(w, auth.ErrInvalidToken)
				return
			}

			tokenType, ok := claims["type"].(string)
			if tokenType != "access" || !ok {
				response.HandleError(w, auth.ErrInvalidToken)
				return
			}

			ctx := auth.WithIdentity(r.Context(), jwt.IdentityFromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(hfn)
	}
}

// MemberRequired allows only tokens that name a member of a club
func MemberRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := auth.IdentityFromContext(r.Context())
		if err != nil || identity.ClubID == "" {
			response.HandleError(w, auth.ErrNotAMember)
			return
		}

		next.ServeHTTP(w, r)
	})
}
