package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/runboard/internal/auth"
	"github.com/hitoshi/runboard/internal/middleware"
	"github.com/hitoshi/runboard/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Signup は新規ユーザーを登録し、アクセストークンを発行する。
	Signup(ctx context.Context, input auth.SignupInput) (*auth.LoginResult, error)
	// Login は資格情報を検証し、アクセストークンを発行する。
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
}

// AuthHandler は認証のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// profileResponse はユーザープロフィールのレスポンス。
type profileResponse struct {
	UID         string    `json:"uid"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	Roles       []string  `json:"roles"`
	ActiveRole  string    `json:"activeRole"`
	StoreID     string    `json:"storeId"`
	CreatedAt   time.Time `json:"createdAt"`
	LastLogin   time.Time `json:"lastLogin"`
}

// toProfileResponse はUserProfileをレスポンス型に変換する。
func toProfileResponse(profile *model.UserProfile) profileResponse {
	roles := make([]string, len(profile.Roles))
	for i, r := range profile.Roles {
		roles[i] = string(r)
	}
	return profileResponse{
		UID:         profile.UID,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
		Roles:       roles,
		ActiveRole:  string(profile.ActiveRole),
		StoreID:     profile.StoreID,
		CreatedAt:   profile.CreatedAt,
		LastLogin:   profile.LastLogin,
	}
}

// loginResponse は認証成功時のレスポンス。
type loginResponse struct {
	Token   string          `json:"token"`
	Profile profileResponse `json:"profile"`
}

// signupBody はサインアップリクエストのボディ。
type signupBody struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

// Signup は新規ユーザーを登録する。
// POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var body signupBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	result, err := h.service.Signup(r.Context(), auth.SignupInput{
		DisplayName: body.DisplayName,
		Email:       body.Email,
		Password:    body.Password,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, loginResponse{
		Token:   result.Token,
		Profile: toProfileResponse(result.Profile),
	})
}

// loginBody はログインリクエストのボディ。
type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login は資格情報を検証し、トークンを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	result, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, loginResponse{
		Token:   result.Token,
		Profile: toProfileResponse(result.Profile),
	})
}

// meResponse は認証主体のレスポンス。
type meResponse struct {
	UID         string   `json:"uid"`
	DisplayName string   `json:"displayName"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	ActiveRole  string   `json:"activeRole"`
	StoreID     string   `json:"storeId"`
}

// Me は現在の認証主体を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	roles := make([]string, len(principal.Roles))
	for i, role := range principal.Roles {
		roles[i] = string(role)
	}

	writeJSONResponse(w, http.StatusOK, meResponse{
		UID:         principal.UID,
		DisplayName: principal.DisplayName,
		Email:       principal.Email,
		Roles:       roles,
		ActiveRole:  string(principal.ActiveRole),
		StoreID:     principal.StoreID,
	})
}
