// Package request はリクエストのライフサイクルを司るサービス層を提供する。
// 検証、チケット番号の採番、状態遷移の認可、読み取り時の期限切れ削除を担当する。
package request

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/runboard/internal/model"
	"github.com/hitoshi/runboard/internal/repository"
)

// Notifier はストアパーティションの変更通知を受け取るインターフェース。
// ライブビュー（board.Hub）の部分集合として定義する。
type Notifier interface {
	// Notify はパーティション内のリクエスト集合が変化したことを通知する。
	Notify(storeID string)
}

// Metrics はサービス層が記録するメトリクスのインターフェース。
type Metrics interface {
	RecordRequestsCreated(count int)
	RecordStatusTransition(to model.RequestStatus)
	RecordRequestsReaped(count int64)
}

// Config はServiceの動作設定を保持する。
type Config struct {
	// DefaultStoreID はstoreId省略時に使用するパーティション。
	DefaultStoreID string
	// RetentionWindow はこれより古いリクエストを削除対象とする期間。
	RetentionWindow time.Duration
}

// Service はリクエストのライフサイクル操作を提供する。
type Service struct {
	repo     repository.RequestRepository
	notifier Notifier
	metrics  Metrics
	logger   *slog.Logger
	config   Config

	// テストから差し替え可能にするためのフック
	now       func() time.Time
	ticketGen func() string
}

// NewService はServiceを生成する。notifierとmetricsはnilを許容する。
func NewService(
	repo repository.RequestRepository,
	notifier Notifier,
	metrics Metrics,
	logger *slog.Logger,
	config Config,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger,
		config:    config,
		now:       time.Now,
		ticketGen: NewTicketNo,
	}
}

// CreateBatch はドラフトのバッチを検証し、全件を単一の書き込みで永続化する。
// 1件でも検証に失敗した場合はバッチ全体を拒否し、何も永続化しない。
// 生成したIDを入力順に返す。
func (s *Service) CreateBatch(ctx context.Context, principal *model.Principal, drafts []Draft) ([]string, error) {
	if principal == nil {
		return nil, model.NewAuthenticationRequiredError()
	}

	requests, err := buildRequests(principal, drafts, s.config.DefaultStoreID, s.now().UTC(), s.ticketGen)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateBatch(ctx, requests); err != nil {
		s.logger.Error("リクエストバッチの永続化に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("batch_size", len(requests)),
		)
		return nil, model.NewStoreUnavailableError()
	}

	if s.metrics != nil {
		s.metrics.RecordRequestsCreated(len(requests))
	}
	s.notifyStores(requests)

	ids := make([]string, 0, len(requests))
	for _, req := range requests {
		ids = append(ids, req.ID)
	}
	return ids, nil
}

// ListInput はリクエスト一覧の取得条件を表す。
type ListInput struct {
	StoreID      string
	Statuses     []string
	CustomerTag  string
	CreatedByUID string
	ClaimedByUID string
	Since        *time.Time
	Until        *time.Time
	After        *time.Time
	Order        string // "asc" | "desc"（デフォルト desc）
	Limit        int    // 0はデフォルト値25として扱う
}

// ListResult はリクエスト一覧とページネーションカーソルを表す。
type ListResult struct {
	Items []*model.Request
	// NextAfter は最終要素のcreated_at（エポックミリ秒）。
	// ページが満杯でない場合はnil（次ページなし）。
	NextAfter *int64
}

// List は条件に一致するリクエストをcreated_at順で返す。
// statusフィルタが有界（1〜10値）な読み取りでは、保持期間を超過した
// リクエストを同一読み取りの副作用として削除し、結果から除外する。
// 削除の失敗は読み取りを失敗させない（ログのみ）。
func (s *Service) List(ctx context.Context, principal *model.Principal, input ListInput) (*ListResult, error) {
	if principal == nil {
		return nil, model.NewAuthenticationRequiredError()
	}

	q, err := s.toListQuery(input)
	if err != nil {
		return nil, err
	}

	// 読み取り駆動の遅延リーパー: 有界なstatusフィルタのときのみ発火する
	if len(q.Statuses) > 0 {
		s.reap(ctx, q.StoreID)
	}

	items, listErr := s.repo.List(ctx, q)
	if listErr != nil {
		s.logger.Error("リクエスト一覧の取得に失敗しました",
			slog.String("error", listErr.Error()),
			slog.String("store_id", q.StoreID),
		)
		return nil, model.NewStoreUnavailableError()
	}

	result := &ListResult{Items: items}
	if len(items) == q.Limit {
		// ページ満杯のときのみ次ページカーソルを返す
		last := items[len(items)-1].CreatedAt.UnixMilli()
		result.NextAfter = &last
	}
	return result, nil
}

// toListQuery は入力を検証してリポジトリクエリへ変換する。
func (s *Service) toListQuery(input ListInput) (repository.RequestListQuery, error) {
	q := repository.RequestListQuery{
		StoreID:      input.StoreID,
		CustomerTag:  input.CustomerTag,
		CreatedByUID: input.CreatedByUID,
		ClaimedByUID: input.ClaimedByUID,
		Since:        input.Since,
		Until:        input.Until,
		After:        input.After,
	}
	if q.StoreID == "" {
		q.StoreID = s.config.DefaultStoreID
	}

	if len(input.Statuses) > repository.MaxStatusFilterValues {
		return q, model.NewValidationError("statusフィルタは最大10値までです")
	}
	for _, raw := range input.Statuses {
		status := model.RequestStatus(raw)
		if !status.Valid() {
			return q, model.NewValidationError("statusが不正です: " + raw)
		}
		q.Statuses = append(q.Statuses, status)
	}

	switch input.Order {
	case "", string(repository.SortDesc):
		q.Order = repository.SortDesc
	case string(repository.SortAsc):
		q.Order = repository.SortAsc
	default:
		return q, model.NewValidationError("orderはascまたはdescを指定してください: " + input.Order)
	}

	q.Limit = input.Limit
	if q.Limit == 0 {
		q.Limit = repository.DefaultListLimit
	}
	if q.Limit < repository.MinListLimit {
		q.Limit = repository.MinListLimit
	}
	if q.Limit > repository.MaxListLimit {
		q.Limit = repository.MaxListLimit
	}

	return q, nil
}

// reap は保持期間を超過したリクエストを単一のバッチ書き込みで削除する。
// ベストエフォート: 失敗しても呼び出し元の読み取りは継続する。
func (s *Service) reap(ctx context.Context, storeID string) {
	cutoff := s.now().UTC().Add(-s.config.RetentionWindow)

	deleted, err := s.repo.DeleteOlderThan(ctx, storeID, cutoff)
	if err != nil {
		s.logger.Warn("期限切れリクエストの削除に失敗しました",
			slog.String("error", err.Error()),
			slog.String("store_id", storeID),
		)
		return
	}
	if deleted > 0 {
		s.logger.Info("期限切れリクエストを削除しました",
			slog.String("store_id", storeID),
			slog.Int64("deleted_count", deleted),
		)
		if s.metrics != nil {
			s.metrics.RecordRequestsReaped(deleted)
		}
		if s.notifier != nil {
			s.notifier.Notify(storeID)
		}
	}
}

// UpdateStatus は状態遷移を適用する。
// ランナー役割以外のプリンシパルによる遷移は一切の変更なしに拒否される。
// 現在状態と同じ遷移先は冪等なno-opとして現在値を返す。
// expectedが指定され保存状態と一致しない場合はSTATUS_CONFLICTを返す。
// 遷移先がinProgressの場合はclaimedBy/claimedAtを、doneの場合はcompletedAtを
// サーバー時刻で記録する。
func (s *Service) UpdateStatus(
	ctx context.Context,
	principal *model.Principal,
	storeID, id string,
	target model.RequestStatus,
	expected *model.RequestStatus,
) (*model.Request, error) {
	if principal == nil {
		return nil, model.NewAuthenticationRequiredError()
	}
	if !target.Valid() {
		return nil, model.NewValidationError("statusが不正です: " + string(target))
	}
	if !principal.IsRunner() {
		return nil, model.NewAuthorizationError(model.RoleRunner)
	}

	if storeID == "" {
		storeID = s.config.DefaultStoreID
	}

	current, err := s.repo.FindByID(ctx, storeID, id)
	if err != nil {
		s.logger.Error("リクエストの取得に失敗しました",
			slog.String("error", err.Error()),
			slog.String("request_id", id),
		)
		return nil, model.NewStoreUnavailableError()
	}
	if current == nil {
		return nil, model.NewRequestNotFoundError(id)
	}

	// 冪等: 現在状態への遷移はno-op
	if current.Status == target {
		return current, nil
	}

	if expected != nil && *expected != current.Status {
		return nil, model.NewStatusConflictError(*expected, current.Status)
	}

	if !model.CanTransition(current.Status, target) {
		return nil, model.NewInvalidTransitionError(current.Status, target)
	}

	now := s.now().UTC()
	var claimedBy *model.UserRef
	var claimedAt, completedAt *time.Time
	switch target {
	case model.StatusInProgress:
		ref := model.UserRef{UID: principal.UID, DisplayName: principal.DisplayName}
		claimedBy = &ref
		claimedAt = &now
	case model.StatusDone:
		completedAt = &now
	}

	affected, err := s.repo.UpdateStatusIf(ctx, storeID, id, current.Status, target, claimedBy, claimedAt, completedAt)
	if err != nil {
		s.logger.Error("リクエスト状態の更新に失敗しました",
			slog.String("error", err.Error()),
			slog.String("request_id", id),
		)
		return nil, model.NewStoreUnavailableError()
	}

	if affected == 0 {
		// 条件付きUPDATEの不発: 競合か削除かを再読み取りで判別する
		latest, findErr := s.repo.FindByID(ctx, storeID, id)
		if findErr != nil {
			return nil, model.NewStoreUnavailableError()
		}
		if latest == nil {
			return nil, model.NewRequestNotFoundError(id)
		}
		return nil, model.NewStatusConflictError(current.Status, latest.Status)
	}

	updated, err := s.repo.FindByID(ctx, storeID, id)
	if err != nil || updated == nil {
		// 更新自体は成功している。読み戻しに失敗した場合はローカルで再構成する。
		updated = current
		updated.Status = target
		if claimedBy != nil {
			updated.ClaimedBy = claimedBy
			updated.ClaimedAt = claimedAt
		}
		if completedAt != nil {
			updated.CompletedAt = completedAt
		}
	}

	if s.metrics != nil {
		s.metrics.RecordStatusTransition(target)
	}
	if s.notifier != nil {
		s.notifier.Notify(storeID)
	}
	return updated, nil
}

// notifyStores はバッチに含まれる各パーティションへ変更を通知する。
func (s *Service) notifyStores(requests []*model.Request) {
	if s.notifier == nil {
		return
	}
	seen := make(map[string]struct{}, 1)
	for _, req := range requests {
		if _, ok := seen[req.StoreID]; ok {
			continue
		}
		seen[req.StoreID] = struct{}{}
		s.notifier.Notify(req.StoreID)
	}
}
