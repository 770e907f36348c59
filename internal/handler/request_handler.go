package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/runboard/internal/middleware"
	"github.com/hitoshi/runboard/internal/model"
	"github.com/hitoshi/runboard/internal/request"
)

// RequestServiceInterface はリクエストハンドラーが必要とするサービスインターフェース。
type RequestServiceInterface interface {
	// CreateBatch はドラフトのバッチを検証し、all-or-nothingで永続化する。
	CreateBatch(ctx context.Context, principal *model.Principal, drafts []request.Draft) ([]string, error)
	// List は条件に一致するリクエスト一覧をカーソルページネーション付きで返す。
	List(ctx context.Context, principal *model.Principal, input request.ListInput) (*request.ListResult, error)
	// UpdateStatus は状態遷移を適用する。
	UpdateStatus(ctx context.Context, principal *model.Principal, storeID, id string, target model.RequestStatus, expected *model.RequestStatus) (*model.Request, error)
}

// RequestHandler はリクエスト管理のHTTPハンドラー。
type RequestHandler struct {
	service RequestServiceInterface
}

// NewRequestHandler はRequestHandlerを生成する。
func NewRequestHandler(service RequestServiceInterface) *RequestHandler {
	return &RequestHandler{service: service}
}

// requestDraftBody はリクエスト起票のボディ（1件分）。
type requestDraftBody struct {
	StoreID     string `json:"storeId,omitempty"`
	Category    string `json:"category"`
	TypeOfShoe  string `json:"typeOfShoe"`
	Brand       string `json:"brand"`
	Model       string `json:"model"`
	ColourCode  string `json:"colourCode,omitempty"`
	Size        string `json:"size"`
	Quantity    *int   `json:"quantity,omitempty"`
	CustomerTag string `json:"customerTag,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Barcode     string `json:"barcode,omitempty"`
}

// toDraft はボディをサービス層のドラフトに変換する。
func (b requestDraftBody) toDraft() request.Draft {
	return request.Draft{
		StoreID:     b.StoreID,
		Category:    b.Category,
		TypeOfShoe:  b.TypeOfShoe,
		Brand:       b.Brand,
		Model:       b.Model,
		ColourCode:  b.ColourCode,
		Size:        b.Size,
		Quantity:    b.Quantity,
		CustomerTag: b.CustomerTag,
		Notes:       b.Notes,
		Barcode:     b.Barcode,
	}
}

// CreateRequests はリクエストを起票する。
// POST /api/requests
// ボディは単一オブジェクトまたは配列を受け付け、いずれもバッチとして扱う。
func (h *RequestHandler) CreateRequests(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	var bodies []requestDraftBody
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(raw, &bodies); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewValidationError("リクエストボディの解析に失敗しました"))
			return
		}
	} else {
		var single requestDraftBody
		if err := json.Unmarshal(raw, &single); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewValidationError("リクエストボディの解析に失敗しました"))
			return
		}
		bodies = []requestDraftBody{single}
	}

	drafts := make([]request.Draft, len(bodies))
	for i, b := range bodies {
		drafts[i] = b.toDraft()
	}

	ids, err := h.service.CreateBatch(r.Context(), principal, drafts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, map[string]any{"ids": ids})
}

// requestListResponse はリクエスト一覧のレスポンス。
type requestListResponse struct {
	Items     []requestResponse `json:"items"`
	NextAfter *int64            `json:"nextAfter,omitempty"`
}

// ListRequests はリクエスト一覧を取得する。
// GET /api/requests?storeId=&status=&customerTag=&createdByUid=&claimedByUid=&since=&until=&limit=&after=&order=
func (h *RequestHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	query := r.URL.Query()
	input := request.ListInput{
		StoreID:      query.Get("storeId"),
		CustomerTag:  query.Get("customerTag"),
		CreatedByUID: query.Get("createdByUid"),
		ClaimedByUID: query.Get("claimedByUid"),
		Order:        query.Get("order"),
	}

	// statusはカンマ区切りの集合
	if raw := query.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				input.Statuses = append(input.Statuses, s)
			}
		}
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewValidationError("limitは整数で指定してください: "+raw))
			return
		}
		input.Limit = limit
	}

	for _, p := range []struct {
		name   string
		target **time.Time
	}{
		{"since", &input.Since},
		{"until", &input.Until},
		{"after", &input.After},
	} {
		if raw := query.Get(p.name); raw != "" {
			ts, err := parseTimeParam(raw)
			if err != nil {
				writeAPIErrorResponse(w, http.StatusBadRequest,
					model.NewValidationError(p.name+"の形式が不正です: "+raw))
				return
			}
			*p.target = &ts
		}
	}

	result, err := h.service.List(r.Context(), principal, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]requestResponse, len(result.Items))
	for i, req := range result.Items {
		items[i] = toRequestResponse(req)
	}

	writeJSONResponse(w, http.StatusOK, requestListResponse{
		Items:     items,
		NextAfter: result.NextAfter,
	})
}

// statusUpdateBody は状態遷移リクエストのボディ。
type statusUpdateBody struct {
	Status string `json:"status"`
	// ExpectedStatus を指定すると保存状態との一致を前提条件とする条件付き更新になる。
	ExpectedStatus *string `json:"expectedStatus,omitempty"`
	StoreID        string  `json:"storeId,omitempty"`
}

// UpdateRequestStatus はリクエストの状態を遷移させる。
// PATCH /api/requests/{id}/status
func (h *RequestHandler) UpdateRequestStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストIDが指定されていません"))
		return
	}

	var body statusUpdateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	var expected *model.RequestStatus
	if body.ExpectedStatus != nil {
		status := model.RequestStatus(*body.ExpectedStatus)
		if !status.Valid() {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewValidationError("expectedStatusが不正です: "+*body.ExpectedStatus))
			return
		}
		expected = &status
	}

	updated, err := h.service.UpdateStatus(r.Context(), principal,
		body.StoreID, id, model.RequestStatus(body.Status), expected)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toRequestResponse(updated))
}

// parseTimeParam はRFC 3339またはエポックミリ秒の時刻パラメータを解析する。
// parseTimeParam はepoch millis、RFC 3339、日付のみ（YYYY-MM-DD）のいずれかを
// 時刻として解釈する。日付のみの場合はUTCの0時として扱う。
func parseTimeParam(raw string) (time.Time, error) {
	if millis, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(millis).UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
