package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/runboard/internal/middleware"
	"github.com/hitoshi/runboard/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// SwitchRole は認証主体の有効役割を切り替える。
	SwitchRole(ctx context.Context, principal *model.Principal, role model.Role) (*model.Principal, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// switchRoleBody は役割切り替えリクエストのボディ。
type switchRoleBody struct {
	ActiveRole string `json:"activeRole"`
}

// SwitchRole は有効役割を切り替える。
// PUT /api/users/me/role
func (h *UserHandler) SwitchRole(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var body switchRoleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	updated, err := h.service.SwitchRole(r.Context(), principal, model.Role(body.ActiveRole))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	roles := make([]string, len(updated.Roles))
	for i, role := range updated.Roles {
		roles[i] = string(role)
	}

	writeJSONResponse(w, http.StatusOK, meResponse{
		UID:         updated.UID,
		DisplayName: updated.DisplayName,
		Email:       updated.Email,
		Roles:       roles,
		ActiveRole:  string(updated.ActiveRole),
		StoreID:     updated.StoreID,
	})
}
