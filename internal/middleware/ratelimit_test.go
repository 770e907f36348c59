package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/runboard/internal/model"
)

func testRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001), // 補充をほぼ無効化
		GeneralBurst:    3,
		CreateRate:      rate.Limit(0.001),
		CreateBurst:     2,
		CleanupInterval: time.Hour,
	}
}

func authedRequest(uid, path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	principal := &model.Principal{UID: uid, ActiveRole: model.RoleSeller}
	return req.WithContext(ContextWithPrincipal(req.Context(), principal))
}

// TestRateLimiter_GeneralBurstExceeded はバースト超過後に429が返ることを検証する。
func TestRateLimiter_GeneralBurstExceeded(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest("user-1", "/api/requests"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("user-1", "/api/requests"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response should carry Retry-After")
	}
}

// TestRateLimiter_PerUserIsolation はユーザーごとに独立してカウントされる
// ことを検証する。
func TestRateLimiter_PerUserIsolation(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// user-1のバーストを使い切る
	for i := 0; i < 4; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), authedRequest("user-1", "/api/requests"))
	}

	// user-2は影響を受けない
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("user-2", "/api/requests"))
	if rec.Code != http.StatusOK {
		t.Errorf("user-2 status = %d, want 200", rec.Code)
	}

	if got := rl.GeneralLimiterCount(); got != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", got)
	}
}

// TestRateLimiter_CreateIndependentOfGeneral は起票リミッターがAPI全般と
// 独立に動作することを検証する。
func TestRateLimiter_CreateIndependentOfGeneral(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	general := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	create := rl.CreateMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	// 起票バースト(2)を使い切る
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		create.ServeHTTP(rec, authedRequest("user-1", "/api/requests"))
		if rec.Code != http.StatusCreated {
			t.Fatalf("create %d: status = %d, want 201", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	create.ServeHTTP(rec, authedRequest("user-1", "/api/requests"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("create status = %d, want 429", rec.Code)
	}

	// API全般には残枠がある
	rec = httptest.NewRecorder()
	general.ServeHTTP(rec, authedRequest("user-1", "/api/requests"))
	if rec.Code != http.StatusOK {
		t.Errorf("general status = %d, want 200", rec.Code)
	}
}

// TestRateLimiter_UnauthenticatedRejected は認証主体なしのリクエストが
// 401になることを検証する。
func TestRateLimiter_UnauthenticatedRejected(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run without a principal")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/requests", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// TestRateLimiter_CleanupRemovesStaleEntries は期限切れエントリが
// クリーンアップで削除されることを検証する。
func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	config := testRateLimiterConfig()
	config.CleanupInterval = time.Millisecond
	rl := NewRateLimiter(config)
	defer rl.Stop()

	rl.getOrCreateGeneralLimiter("user-1")

	// lastAccessを過去へ巻き戻す
	rl.generalMu.Lock()
	rl.generalLimiters["user-1"].lastAccess = time.Now().Add(-time.Hour)
	rl.generalMu.Unlock()

	rl.cleanup()

	if got := rl.GeneralLimiterCount(); got != 0 {
		t.Errorf("GeneralLimiterCount after cleanup = %d, want 0", got)
	}
}
