package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hitoshi/runboard/internal/board"
	"github.com/hitoshi/runboard/internal/middleware"
	"github.com/hitoshi/runboard/internal/model"
)

// keepAliveInterval はSSE接続維持のためのコメント送信間隔。
const keepAliveInterval = 30 * time.Second

// BoardProjector はパーティションのスナップショットを生成するインターフェース。
type BoardProjector interface {
	Project(ctx context.Context, storeID string) (*board.Snapshot, error)
}

// BoardSubscriber はパーティションの変更シグナルを購読するインターフェース。
type BoardSubscriber interface {
	Subscribe(storeID string) (<-chan struct{}, func())
}

// BoardMetrics はライブビューの接続数を記録するインターフェース。
type BoardMetrics interface {
	RecordBoardSubscribers(count int)
}

// BoardHandler はライブビューのHTTPハンドラー。
type BoardHandler struct {
	projector BoardProjector
	hub       BoardSubscriber
	metrics   BoardMetrics
	logger    *slog.Logger

	// 現在アクティブなSSE接続数
	active atomic.Int64
}

// NewBoardHandler はBoardHandlerを生成する。metricsはnilを許容する。
func NewBoardHandler(projector BoardProjector, hub BoardSubscriber, metrics BoardMetrics, logger *slog.Logger) *BoardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BoardHandler{
		projector: projector,
		hub:       hub,
		metrics:   metrics,
		logger:    logger,
	}
}

// boardStoreID はクエリまたは認証主体からパーティションを決定する。
func boardStoreID(r *http.Request, principal *model.Principal) string {
	if storeID := r.URL.Query().Get("storeId"); storeID != "" {
		return storeID
	}
	return principal.StoreID
}

// GetBoard はパーティションの現在のスナップショットを返す。
// GET /api/board?storeId=
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	snapshot, err := h.projector.Project(r.Context(), boardStoreID(r, principal))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, snapshot)
}

// WatchBoard はパーティションのスナップショットをSSEでストリーム配信する。
// GET /api/board/watch?storeId=
// 接続時に初回スナップショットを送り、以後は変更通知のたびに再投影して送る。
// クライアント切断で購読は解除される。
func (h *BoardHandler) WatchBoard(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
			Code:     "INTERNAL_ERROR",
			Message:  "ストリーミングに対応していません。",
			Category: "system",
			Action:   "しばらく待ってから再度お試しください。",
		})
		return
	}

	storeID := boardStoreID(r, principal)

	signals, cancel := h.hub.Subscribe(storeID)
	defer cancel()

	h.recordActive(h.active.Add(1))
	defer func() {
		h.recordActive(h.active.Add(-1))
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// 初回スナップショット
	if err := h.sendSnapshot(r.Context(), w, flusher, storeID); err != nil {
		return
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case _, open := <-signals:
			if !open {
				return
			}
			if err := h.sendSnapshot(r.Context(), w, flusher, storeID); err != nil {
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *BoardHandler) recordActive(count int64) {
	if h.metrics != nil {
		h.metrics.RecordBoardSubscribers(int(count))
	}
}

// sendSnapshot は現在のスナップショットをSSEイベントとして送信する。
func (h *BoardHandler) sendSnapshot(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, storeID string) error {
	snapshot, err := h.projector.Project(ctx, storeID)
	if err != nil {
		h.logger.Warn("スナップショットの生成に失敗しました",
			slog.String("error", err.Error()),
			slog.String("store_id", storeID),
		)
		return err
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: board\ndata: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
