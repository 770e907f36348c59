package board

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/hitoshi/runboard/internal/model"
	"github.com/hitoshi/runboard/internal/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestHub_NotifyReachesSubscriber は通知が購読者へ届くことを検証する。
func TestHub_NotifyReachesSubscriber(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, cancel := hub.Subscribe("REBEL-ADELAIDE")
	defer cancel()

	hub.Notify("REBEL-ADELAIDE")

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("signal did not reach the subscriber")
	}
}

// TestHub_NotifyIsPartitioned は別パーティションの通知が届かないことを検証する。
func TestHub_NotifyIsPartitioned(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, cancel := hub.Subscribe("REBEL-ADELAIDE")
	defer cancel()

	hub.Notify("REBEL-MELBOURNE")

	select {
	case <-ch:
		t.Fatal("signal leaked across partitions")
	case <-time.After(50 * time.Millisecond):
	}
}

// TestHub_NotifyCoalesces は未受信シグナルが1件に集約されることを検証する。
func TestHub_NotifyCoalesces(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, cancel := hub.Subscribe("REBEL-ADELAIDE")
	defer cancel()

	for i := 0; i < 5; i++ {
		hub.Notify("REBEL-ADELAIDE")
	}

	<-ch
	select {
	case <-ch:
		t.Fatal("coalesced signals should collapse to one")
	case <-time.After(50 * time.Millisecond):
	}
}

// TestHub_CancelRemovesSubscriber は購読解除で購読者が取り除かれ、
// チャネルがクローズされることを検証する。
func TestHub_CancelRemovesSubscriber(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, cancel := hub.Subscribe("REBEL-ADELAIDE")
	if got := hub.SubscriberCount("REBEL-ADELAIDE"); got != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", got)
	}

	cancel()
	// 冪等
	cancel()

	if got := hub.SubscriberCount("REBEL-ADELAIDE"); got != 0 {
		t.Fatalf("SubscriberCount after cancel = %d, want 0", got)
	}
	if _, open := <-ch; open {
		t.Error("channel should be closed after cancel")
	}

	// 解除後の通知はパニックしない
	hub.Notify("REBEL-ADELAIDE")
}

// TestHub_CloseClosesAllSubscribers はClose後に全チャネルがクローズされ、
// 新規購読が即クローズ済みチャネルを返すことを検証する。
func TestHub_CloseClosesAllSubscribers(t *testing.T) {
	hub := NewHub()

	ch1, cancel1 := hub.Subscribe("REBEL-ADELAIDE")
	ch2, cancel2 := hub.Subscribe("REBEL-MELBOURNE")
	defer cancel1()
	defer cancel2()

	hub.Close()

	if _, open := <-ch1; open {
		t.Error("ch1 should be closed after hub close")
	}
	if _, open := <-ch2; open {
		t.Error("ch2 should be closed after hub close")
	}

	ch3, cancel3 := hub.Subscribe("REBEL-ADELAIDE")
	defer cancel3()
	if _, open := <-ch3; open {
		t.Error("subscribe after close should return a closed channel")
	}
}

// TestProjector_GroupsByStatus はスナップショットが状態別に古い順で
// グループ化されることを検証する。
func TestProjector_GroupsByStatus(t *testing.T) {
	base := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	items := []*model.Request{
		{ID: "a", Status: model.StatusQueued, CreatedAt: base},
		{ID: "b", Status: model.StatusInProgress, CreatedAt: base.Add(time.Minute)},
		{ID: "c", Status: model.StatusQueued, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "d", Status: model.StatusDone, CreatedAt: base.Add(3 * time.Minute)},
	}

	repo := &mockRequestRepo{
		listFn: func(ctx context.Context, q repository.RequestListQuery) ([]*model.Request, error) {
			if q.Order != repository.SortAsc {
				t.Errorf("Order = %q, want asc", q.Order)
			}
			if q.StoreID != "REBEL-ADELAIDE" {
				t.Errorf("StoreID = %q, want REBEL-ADELAIDE", q.StoreID)
			}
			return items, nil
		},
	}

	projector := NewProjector(repo)
	snapshot, err := projector.Project(context.Background(), "REBEL-ADELAIDE")
	if err != nil {
		t.Fatalf("Project returned error: %v", err)
	}

	if len(snapshot.Queued) != 2 || snapshot.Queued[0].ID != "a" || snapshot.Queued[1].ID != "c" {
		t.Errorf("Queued = %+v, want [a c] in creation order", snapshot.Queued)
	}
	if len(snapshot.InProgress) != 1 || snapshot.InProgress[0].ID != "b" {
		t.Errorf("InProgress = %+v, want [b]", snapshot.InProgress)
	}
	if len(snapshot.Done) != 1 || snapshot.Done[0].ID != "d" {
		t.Errorf("Done = %+v, want [d]", snapshot.Done)
	}
}

// TestProjector_EmptyPartition は空パーティションで各グループが空配列に
// なることを検証する（JSONでnullにならない）。
func TestProjector_EmptyPartition(t *testing.T) {
	repo := &mockRequestRepo{
		listFn: func(ctx context.Context, q repository.RequestListQuery) ([]*model.Request, error) {
			return nil, nil
		},
	}

	projector := NewProjector(repo)
	snapshot, err := projector.Project(context.Background(), "REBEL-ADELAIDE")
	if err != nil {
		t.Fatalf("Project returned error: %v", err)
	}

	if snapshot.Queued == nil || snapshot.InProgress == nil || snapshot.Done == nil {
		t.Error("groups should be empty slices, not nil")
	}
}

// TestProjector_ReadsBeyondSinglePage は1ページ（100件）を超えるパーティションで
// 全リクエストが投影に含まれることを検証する。最新のリクエストが欠落してはならない。
func TestProjector_ReadsBeyondSinglePage(t *testing.T) {
	base := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	all := make([]*model.Request, 150)
	for i := range all {
		all[i] = &model.Request{
			ID:        fmt.Sprintf("req-%03d", i),
			Status:    model.StatusQueued,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
	}

	// カーソルとリミットを尊重するページングリポジトリ
	repo := &mockRequestRepo{
		listFn: func(ctx context.Context, q repository.RequestListQuery) ([]*model.Request, error) {
			var page []*model.Request
			for _, req := range all {
				if q.After != nil && !req.CreatedAt.After(*q.After) {
					continue
				}
				page = append(page, req)
				if len(page) == q.Limit {
					break
				}
			}
			return page, nil
		},
	}

	projector := NewProjector(repo)
	snapshot, err := projector.Project(context.Background(), "REBEL-ADELAIDE")
	if err != nil {
		t.Fatalf("Project returned error: %v", err)
	}

	if len(snapshot.Queued) != len(all) {
		t.Fatalf("Queued = %d requests, want %d", len(snapshot.Queued), len(all))
	}
	if snapshot.Queued[0].ID != "req-000" {
		t.Errorf("Queued[0].ID = %q, want req-000", snapshot.Queued[0].ID)
	}
	if last := snapshot.Queued[len(snapshot.Queued)-1]; last.ID != "req-149" {
		t.Errorf("newest request = %q, want req-149", last.ID)
	}
}

// TestProjector_RepoError はリポジトリ失敗がそのまま返ることを検証する。
func TestProjector_RepoError(t *testing.T) {
	want := errors.New("connection reset")
	repo := &mockRequestRepo{
		listFn: func(ctx context.Context, q repository.RequestListQuery) ([]*model.Request, error) {
			return nil, want
		},
	}

	projector := NewProjector(repo)
	if _, err := projector.Project(context.Background(), "REBEL-ADELAIDE"); !errors.Is(err, want) {
		t.Errorf("error = %v, want %v", err, want)
	}
}

// mockRequestRepo はRequestRepositoryのモック実装。
type mockRequestRepo struct {
	listFn func(ctx context.Context, q repository.RequestListQuery) ([]*model.Request, error)
}

func (m *mockRequestRepo) CreateBatch(ctx context.Context, requests []*model.Request) error {
	return nil
}

func (m *mockRequestRepo) FindByID(ctx context.Context, storeID, id string) (*model.Request, error) {
	return nil, nil
}

func (m *mockRequestRepo) List(ctx context.Context, q repository.RequestListQuery) ([]*model.Request, error) {
	if m.listFn != nil {
		return m.listFn(ctx, q)
	}
	return nil, nil
}

func (m *mockRequestRepo) UpdateStatusIf(ctx context.Context, storeID, id string, expected, to model.RequestStatus, claimedBy *model.UserRef, claimedAt, completedAt *time.Time) (int64, error) {
	return 0, nil
}

func (m *mockRequestRepo) DeleteOlderThan(ctx context.Context, storeID string, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (m *mockRequestRepo) DeleteOlderThanAllStores(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}
