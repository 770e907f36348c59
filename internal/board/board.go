// Package board はパーティションごとのライブビュー投影を提供する。
// リクエストの変更を購読者へプッシュ配信し、状態別にグループ化した
// スナップショットを生成する。
package board

import (
	"context"
	"time"

	"github.com/hitoshi/runboard/internal/model"
	"github.com/hitoshi/runboard/internal/repository"
)

// Snapshot はパーティションのライブビュー投影。
// 作成時刻の古い順で状態別にグループ化される。
type Snapshot struct {
	StoreID     string           `json:"storeId"`
	Queued      []*model.Request `json:"queued"`
	InProgress  []*model.Request `json:"inProgress"`
	Done        []*model.Request `json:"done"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// Projector はパーティションのスナップショットを生成する。
type Projector struct {
	repo repository.RequestRepository
	now  func() time.Time
}

// NewProjector はProjectorを生成する。
func NewProjector(repo repository.RequestRepository) *Projector {
	return &Projector{
		repo: repo,
		now:  time.Now,
	}
}

// Project はパーティションの現在のスナップショットを構築する。
// 各グループは作成時刻の古い順に並ぶ。
// パーティション内の全リクエストを対象とするため、1ページで収まらない場合は
// カーソルで全ページを読み切る。
func (p *Projector) Project(ctx context.Context, storeID string) (*Snapshot, error) {
	snapshot := &Snapshot{
		StoreID:     storeID,
		Queued:      []*model.Request{},
		InProgress:  []*model.Request{},
		Done:        []*model.Request{},
		GeneratedAt: p.now().UTC(),
	}

	query := repository.RequestListQuery{
		StoreID: storeID,
		Order:   repository.SortAsc,
		Limit:   repository.MaxListLimit,
	}
	for {
		items, err := p.repo.List(ctx, query)
		if err != nil {
			return nil, err
		}

		for _, req := range items {
			switch req.Status {
			case model.StatusQueued:
				snapshot.Queued = append(snapshot.Queued, req)
			case model.StatusInProgress:
				snapshot.InProgress = append(snapshot.InProgress, req)
			case model.StatusDone:
				snapshot.Done = append(snapshot.Done, req)
			}
		}

		if len(items) < query.Limit {
			return snapshot, nil
		}
		cursor := items[len(items)-1].CreatedAt
		query.After = &cursor
	}
}
