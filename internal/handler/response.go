// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/runboard/internal/model"
)

// --- レスポンス型 ---

// userRefResponse はリクエストに記録されたユーザー参照のレスポンス。
type userRefResponse struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
}

// requestResponse はリクエスト1件のレスポンス。
type requestResponse struct {
	ID          string           `json:"id"`
	StoreID     string           `json:"storeId"`
	TicketNo    string           `json:"ticketNo"`
	Category    string           `json:"category"`
	TypeOfShoe  string           `json:"typeOfShoe"`
	Brand       string           `json:"brand"`
	Model       string           `json:"model"`
	ColourCode  string           `json:"colourCode,omitempty"`
	Size        string           `json:"size"`
	Quantity    int              `json:"quantity"`
	CustomerTag string           `json:"customerTag,omitempty"`
	Notes       string           `json:"notes,omitempty"`
	Barcode     string           `json:"barcode,omitempty"`
	Status      string           `json:"status"`
	CreatedBy   userRefResponse  `json:"createdBy"`
	ClaimedBy   *userRefResponse `json:"claimedBy,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	ClaimedAt   *time.Time       `json:"claimedAt,omitempty"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

// toRequestResponse はドメインのRequestをレスポンス型に変換する。
func toRequestResponse(req *model.Request) requestResponse {
	resp := requestResponse{
		ID:          req.ID,
		StoreID:     req.StoreID,
		TicketNo:    req.TicketNo,
		Category:    string(req.Category),
		TypeOfShoe:  string(req.TypeOfShoe),
		Brand:       req.Brand,
		Model:       req.Model,
		ColourCode:  req.ColourCode,
		Size:        req.Size,
		Quantity:    req.Quantity,
		CustomerTag: req.CustomerTag,
		Notes:       req.Notes,
		Barcode:     req.Barcode,
		Status:      string(req.Status),
		CreatedBy: userRefResponse{
			UID:         req.CreatedBy.UID,
			DisplayName: req.CreatedBy.DisplayName,
			Email:       req.CreatedBy.Email,
		},
		CreatedAt:   req.CreatedAt,
		ClaimedAt:   req.ClaimedAt,
		CompletedAt: req.CompletedAt,
	}
	if req.ClaimedBy != nil {
		resp.ClaimedBy = &userRefResponse{
			UID:         req.ClaimedBy.UID,
			DisplayName: req.ClaimedBy.DisplayName,
			Email:       req.ClaimedBy.Email,
		}
	}
	return resp
}

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSONResponse(w, statusCode, map[string]string{
		"code":     apiErr.Code,
		"message":  apiErr.Message,
		"category": apiErr.Category,
		"action":   apiErr.Action,
	})
}

// handleServiceError はサービス層のエラーをHTTPレスポンスへ変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はエラーコードをHTTPステータスコードへ対応付ける。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeAuthenticationRequired, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeAuthorization:
		return http.StatusForbidden
	case model.ErrCodeValidation, model.ErrCodeInvalidRole:
		return http.StatusBadRequest
	case model.ErrCodeRequestNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidTransition, model.ErrCodeStatusConflict, model.ErrCodeDuplicateUser:
		return http.StatusConflict
	case model.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeUnauthorized は未認証レスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthenticationRequiredError())
}
