package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/runboard/internal/auth"
	"github.com/hitoshi/runboard/internal/model"
)

// mockVerifier はTokenVerifierのモック実装。
type mockVerifier struct {
	verifyFn func(token string) (*auth.Claims, error)
}

func (m *mockVerifier) Verify(token string) (*auth.Claims, error) {
	return m.verifyFn(token)
}

// mockLoader はPrincipalLoaderのモック実装。
type mockLoader struct {
	loadFn func(ctx context.Context, claims *auth.Claims) (*model.Principal, error)
}

func (m *mockLoader) LoadPrincipal(ctx context.Context, claims *auth.Claims) (*model.Principal, error) {
	return m.loadFn(ctx, claims)
}

func okVerifier(uid string) *mockVerifier {
	return &mockVerifier{
		verifyFn: func(token string) (*auth.Claims, error) {
			claims := &auth.Claims{}
			claims.Subject = uid
			return claims, nil
		},
	}
}

func okLoader(uid string) *mockLoader {
	return &mockLoader{
		loadFn: func(ctx context.Context, claims *auth.Claims) (*model.Principal, error) {
			return &model.Principal{UID: uid, ActiveRole: model.RoleSeller}, nil
		},
	}
}

// TestAuthMiddleware_ValidToken は有効トークンで認証主体がコンテキストへ
// 格納されることを検証する。
func TestAuthMiddleware_ValidToken(t *testing.T) {
	mw := NewAuthMiddleware(okVerifier("user-1"), okLoader("user-1"))

	var gotPrincipal *model.Principal
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrincipal, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/requests", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotPrincipal == nil || gotPrincipal.UID != "user-1" {
		t.Errorf("principal = %+v, want user-1", gotPrincipal)
	}
}

// TestAuthMiddleware_MissingOrMalformedHeader はヘッダー欠落・形式不正が
// 401になることを検証する。
func TestAuthMiddleware_MissingOrMalformedHeader(t *testing.T) {
	mw := NewAuthMiddleware(okVerifier("user-1"), okLoader("user-1"))

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run without a valid bearer token")
	}))

	cases := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"bare token", "some-token"},
		{"empty bearer", "Bearer "},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/requests", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != model.ErrCodeAuthenticationRequired {
				t.Errorf("code = %q, want AUTHENTICATION_REQUIRED", body.Code)
			}
		})
	}
}

// TestAuthMiddleware_InvalidToken は検証失敗が401になることを検証する。
func TestAuthMiddleware_InvalidToken(t *testing.T) {
	verifier := &mockVerifier{
		verifyFn: func(token string) (*auth.Claims, error) {
			return nil, errors.New("signature is invalid")
		},
	}
	mw := NewAuthMiddleware(verifier, okLoader("user-1"))

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run with an invalid token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/requests", nil)
	req.Header.Set("Authorization", "Bearer tampered")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// TestAuthMiddleware_DeletedUser は有効トークンでもユーザーが存在しなければ
// 401になることを検証する。
func TestAuthMiddleware_DeletedUser(t *testing.T) {
	loader := &mockLoader{
		loadFn: func(ctx context.Context, claims *auth.Claims) (*model.Principal, error) {
			return nil, model.NewUserNotFoundError()
		},
	}
	mw := NewAuthMiddleware(okVerifier("ghost"), loader)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run for a deleted user")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/requests", nil)
	req.Header.Set("Authorization", "Bearer valid-but-orphaned")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// TestPrincipalFromContext_Missing は未認証コンテキストでfalseが返ることを検証する。
func TestPrincipalFromContext_Missing(t *testing.T) {
	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Error("empty context should not contain a principal")
	}
}
