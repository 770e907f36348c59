package request

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/runboard/internal/model"
)

// Draft は起票前のリクエスト候補を表す。
// クライアント入力をそのまま保持し、検証と正規化を経てmodel.Requestになる。
type Draft struct {
	StoreID     string
	Category    string
	TypeOfShoe  string
	Brand       string
	Model       string
	ColourCode  string
	Size        string
	Quantity    *int // nil（省略）はデフォルト値1として扱う。明示的な0は検証エラー
	CustomerTag string
	Notes       string
	Barcode     string
}

// normalize は自由入力フィールドをトリムし、省略値を補う。
func (d Draft) normalize(defaultStoreID string) Draft {
	d.StoreID = strings.TrimSpace(d.StoreID)
	if d.StoreID == "" {
		d.StoreID = defaultStoreID
	}
	d.Brand = strings.TrimSpace(d.Brand)
	d.Model = strings.TrimSpace(d.Model)
	d.ColourCode = strings.TrimSpace(d.ColourCode)
	d.Size = strings.TrimSpace(d.Size)
	if d.Quantity == nil {
		quantity := model.MinQuantity
		d.Quantity = &quantity
	}
	return d
}

// validate は正規化済みドラフトの必須項目・列挙値・範囲制約を検証する。
// indexはバッチ内の位置（エラーメッセージ用）。
func (d Draft) validate(index int) *model.APIError {
	if !model.Category(d.Category).Valid() {
		return model.NewValidationError(
			fmt.Sprintf("%d件目のcategoryが不正です: %q", index+1, d.Category))
	}
	if !model.ShoeType(d.TypeOfShoe).Valid() {
		return model.NewValidationError(
			fmt.Sprintf("%d件目のtypeOfShoeが不正です: %q", index+1, d.TypeOfShoe))
	}
	if d.Brand == "" {
		return model.NewValidationError(
			fmt.Sprintf("%d件目のbrandは必須です", index+1))
	}
	if d.Model == "" {
		return model.NewValidationError(
			fmt.Sprintf("%d件目のmodelは必須です", index+1))
	}
	if d.Size == "" {
		return model.NewValidationError(
			fmt.Sprintf("%d件目のsizeは必須です", index+1))
	}
	if *d.Quantity < model.MinQuantity || *d.Quantity > model.MaxQuantity {
		return model.NewValidationError(
			fmt.Sprintf("%d件目のquantityは%d〜%dで指定してください: %d",
				index+1, model.MinQuantity, model.MaxQuantity, *d.Quantity))
	}
	return nil
}

// buildRequests はドラフトのバッチを検証し、永続化可能なRequest群へ変換する。
// 1件でも検証に失敗した場合はバッチ全体をエラーとし、何も返さない。
// createdByは認証済みプリンシパルから記録する。クライアント提供の身元情報は使用しない。
func buildRequests(
	principal *model.Principal,
	drafts []Draft,
	defaultStoreID string,
	now time.Time,
	ticketGen func() string,
) ([]*model.Request, error) {
	if len(drafts) == 0 {
		return nil, model.NewValidationError("リクエストが1件も含まれていません")
	}

	requests := make([]*model.Request, 0, len(drafts))
	for i, draft := range drafts {
		d := draft.normalize(defaultStoreID)
		if apiErr := d.validate(i); apiErr != nil {
			return nil, apiErr
		}

		requests = append(requests, &model.Request{
			ID:          uuid.NewString(),
			StoreID:     d.StoreID,
			TicketNo:    ticketGen(),
			Category:    model.Category(d.Category),
			TypeOfShoe:  model.ShoeType(d.TypeOfShoe),
			Brand:       d.Brand,
			Model:       d.Model,
			ColourCode:  d.ColourCode,
			Size:        d.Size,
			Quantity:    *d.Quantity,
			CustomerTag: d.CustomerTag,
			Notes:       d.Notes,
			Barcode:     d.Barcode,
			Status:      model.StatusQueued,
			CreatedBy:   principal.UserRef(),
			CreatedAt:   now,
		})
	}

	return requests, nil
}
