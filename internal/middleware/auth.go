package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/runboard/internal/auth"
	"github.com/hitoshi/runboard/internal/model"
)

// PrincipalLoader は検証済みクレームから認証主体を構築する。
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, claims *auth.Claims) (*model.Principal, error)
}

// TokenVerifier はベアラートークンを検証する。
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのベアラートークンを検証し、
// 認証主体をリクエストコンテキストへ格納するミドルウェアを返す。
// ヘッダー欠落・形式不正・検証失敗はすべて401になる。
func NewAuthMiddleware(verifier TokenVerifier, loader PrincipalLoader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthenticationRequiredError())
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthenticationRequiredError())
				return
			}

			principal, err := loader.LoadPrincipal(r.Context(), claims)
			if err != nil {
				var apiErr *model.APIError
				if e, ok := err.(*model.APIError); ok && e.Code == model.ErrCodeUserNotFound {
					apiErr = model.NewAuthenticationRequiredError()
				} else {
					apiErr = model.NewStoreUnavailableError()
					WriteErrorResponse(w, http.StatusServiceUnavailable, apiErr)
					return
				}
				WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// bearerToken はAuthorizationヘッダーからベアラートークンを抽出する。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
