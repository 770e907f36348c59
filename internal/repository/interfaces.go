// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/runboard/internal/model"
)

// SortOrder は一覧のソート順を表す。
type SortOrder string

const (
	// SortAsc はcreated_at昇順。
	SortAsc SortOrder = "asc"
	// SortDesc はcreated_at降順。
	SortDesc SortOrder = "desc"
)

// Valid はソート順が定義済みの値かを返す。
func (o SortOrder) Valid() bool {
	return o == SortAsc || o == SortDesc
}

// 一覧取得のページサイズ制約。
const (
	DefaultListLimit = 25
	MinListLimit     = 1
	MaxListLimit     = 100

	// MaxStatusFilterValues はstatusフィルタに指定できる値の上限。
	MaxStatusFilterValues = 10
)

// RequestListQuery はリクエスト一覧のフィルタとページネーション条件を表す。
// 範囲フィルタ（Since/Until）とカーソル（After）はソートフィールドである
// created_atのみを対象とする。
type RequestListQuery struct {
	StoreID string

	Statuses     []model.RequestStatus // 最大10値
	CustomerTag  string
	CreatedByUID string
	ClaimedByUID string

	Since *time.Time // created_at >= Since
	Until *time.Time // created_at <= Until

	After *time.Time // カーソル: 前ページ最終要素のcreated_at
	Order SortOrder
	Limit int
}

// RequestRepository はリクエストデータの永続化インターフェース。
type RequestRepository interface {
	// CreateBatch はバッチ内の全リクエストを単一トランザクションで作成する。
	// いずれか1件でも失敗した場合は全件ロールバックされる（all-or-nothing）。
	CreateBatch(ctx context.Context, requests []*model.Request) error

	// FindByID は指定パーティション内のリクエストを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, storeID, id string) (*model.Request, error)

	// List は条件に一致するリクエストをcreated_at順で取得する。
	List(ctx context.Context, q RequestListQuery) ([]*model.Request, error)

	// UpdateStatusIf は保存されているstatusがexpectedと一致する場合のみtoへ更新する。
	// claimedByがnilでなければclaimed_by/claimed_atを、completedAtがnilでなければ
	// completed_atを併せて設定する。更新された行数を返す（0 = 不一致または未存在）。
	UpdateStatusIf(ctx context.Context, storeID, id string, expected, to model.RequestStatus, claimedBy *model.UserRef, claimedAt, completedAt *time.Time) (int64, error)

	// DeleteOlderThan はcreated_atがcutoffより古いリクエストを単一の
	// バッチ書き込みで削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, storeID string, cutoff time.Time) (int64, error)

	// DeleteOlderThanAllStores は全パーティションを対象にcutoffより古い
	// リクエストを削除する。定期スイープ用。
	DeleteOlderThanAllStores(ctx context.Context, cutoff time.Time) (int64, error)
}

// UserRepository はユーザープロフィールの永続化インターフェース。
type UserRepository interface {
	// FindByUID は指定UIDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUID(ctx context.Context, uid string) (*model.UserProfile, error)

	// FindByEmail はメールアドレスでプロフィールを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.UserProfile, error)

	// Create はプロフィールを作成する。
	Create(ctx context.Context, user *model.UserProfile) error

	// UpdateActiveRole は有効役割を更新する。
	UpdateActiveRole(ctx context.Context, uid string, role model.Role) error

	// TouchLastLogin は最終ログイン日時を更新する。
	TouchLastLogin(ctx context.Context, uid string, at time.Time) error
}
