// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"

	"github.com/hitoshi/runboard/internal/model"
)

type contextKey string

const principalContextKey contextKey = "principal"

// ContextWithPrincipal は認証主体をコンテキストへ格納する。
func ContextWithPrincipal(ctx context.Context, principal *model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext はコンテキストから認証主体を取り出す。
// 未認証の場合はnilとfalseを返す。
func PrincipalFromContext(ctx context.Context) (*model.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(*model.Principal)
	if !ok || principal == nil {
		return nil, false
	}
	return principal, true
}
