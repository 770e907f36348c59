// Package model はドメインモデルを定義する。
package model

import "time"

// Request は店舗の靴取り寄せリクエストを表す。
// ストアパーティション（store_id）配下にスコープされる。
type Request struct {
	ID       string
	StoreID  string
	TicketNo string // 表示用チケット番号（RB-####）。一意性は保証しない。

	Category   Category
	TypeOfShoe ShoeType
	Brand      string
	Model      string
	ColourCode string
	Size       string
	Quantity   int

	CustomerTag string
	Notes       string
	Barcode     string

	Status RequestStatus

	CreatedBy UserRef
	ClaimedBy *UserRef

	CreatedAt   time.Time
	ClaimedAt   *time.Time
	CompletedAt *time.Time
}

// UserRef はリクエストに記録される作成者・担当者の参照情報を表す。
// 値は検証済みトークンのクレームから取得し、クライアント入力は信用しない。
type UserRef struct {
	UID         string
	DisplayName string
	Email       string
}

// RequestStatus はリクエストのライフサイクル状態を表す。
type RequestStatus string

const (
	// StatusQueued は未着手の初期状態。
	StatusQueued RequestStatus = "queued"
	// StatusInProgress はランナーが取り寄せ中の状態。
	StatusInProgress RequestStatus = "inProgress"
	// StatusDone は完了の終端状態。以降の遷移は許可されない。
	StatusDone RequestStatus = "done"
)

// Valid はstatusが定義済みの値かを返す。
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// CanTransition はfromからtoへの状態遷移が許可されるかを返す。
// 許可される遷移: queued→inProgress、queued→done、inProgress→done。
// 同一状態への遷移はここではfalse（冪等なno-op判定はサービス層で行う）。
func CanTransition(from, to RequestStatus) bool {
	switch from {
	case StatusQueued:
		return to == StatusInProgress || to == StatusDone
	case StatusInProgress:
		return to == StatusDone
	case StatusDone:
		// 終端状態
		return false
	}
	return false
}

// Category は靴のカテゴリを表す。
type Category string

const (
	CategoryMens   Category = "Mens"
	CategoryWomens Category = "Womens"
	CategoryKids   Category = "Kids"
)

// Valid はカテゴリが定義済みの値かを返す。
func (c Category) Valid() bool {
	switch c {
	case CategoryMens, CategoryWomens, CategoryKids:
		return true
	}
	return false
}

// ShoeType は靴の種別を表す。
type ShoeType string

const (
	ShoeTypeRunning     ShoeType = "Running"
	ShoeTypeCasual      ShoeType = "Casual"
	ShoeTypeGymTraining ShoeType = "Gym/Training"
	ShoeTypeRaceday     ShoeType = "Raceday"
	ShoeTypeBasketball  ShoeType = "Basketball"
	ShoeTypeCricket     ShoeType = "Cricket"
)

// Valid は靴種別が定義済みの値かを返す。
func (t ShoeType) Valid() bool {
	switch t {
	case ShoeTypeRunning, ShoeTypeCasual, ShoeTypeGymTraining,
		ShoeTypeRaceday, ShoeTypeBasketball, ShoeTypeCricket:
		return true
	}
	return false
}

// 数量の許容範囲。
const (
	MinQuantity = 1
	MaxQuantity = 10
)
