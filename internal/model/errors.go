// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, request, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthenticationRequired = "AUTHENTICATION_REQUIRED"
	ErrCodeValidation             = "VALIDATION_ERROR"
	ErrCodeAuthorization          = "AUTHORIZATION_ERROR"
	ErrCodeRequestNotFound        = "REQUEST_NOT_FOUND"
	ErrCodeInvalidTransition      = "INVALID_TRANSITION"
	ErrCodeStatusConflict         = "STATUS_CONFLICT"
	ErrCodeStoreUnavailable       = "STORE_UNAVAILABLE"
	ErrCodeUserNotFound           = "USER_NOT_FOUND"
	ErrCodeInvalidCredentials     = "INVALID_CREDENTIALS"
	ErrCodeDuplicateUser          = "DUPLICATE_USER"
	ErrCodeInvalidRole            = "INVALID_ROLE"
)

// NewAuthenticationRequiredError は認証エラーを生成する。
func NewAuthenticationRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthenticationRequired,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "Bearerトークンを付与してリクエストしてください。",
	}
}

// NewValidationError はバリデーションエラーを生成する。
// reasonには違反したフィールドと制約を含める。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を修正してから再度送信してください。",
	}
}

// NewAuthorizationError は役割不足による認可エラーを生成する。
func NewAuthorizationError(required Role) *APIError {
	return &APIError{
		Code:     ErrCodeAuthorization,
		Message:  fmt.Sprintf("この操作には%s役割が必要です。", required),
		Category: "auth",
		Action:   "有効役割を切り替えてから再度お試しください。",
	}
}

// NewRequestNotFoundError はリクエスト未検出エラーを生成する。
func NewRequestNotFoundError(requestID string) *APIError {
	return &APIError{
		Code:     ErrCodeRequestNotFound,
		Message:  fmt.Sprintf("指定されたリクエストが見つかりません: %s", requestID),
		Category: "request",
		Action:   "リクエストIDを確認してください。既に削除されている可能性があります。",
	}
}

// NewInvalidTransitionError は許可されない状態遷移エラーを生成する。
func NewInvalidTransitionError(from, to RequestStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("%sから%sへの状態遷移は許可されていません。", from, to),
		Category: "validation",
		Action:   "現在の状態を確認してから再度お試しください。",
	}
}

// NewStatusConflictError は期待状態と保存状態の不一致エラーを生成する。
// 同時クレームの競合をクライアントに明示的に通知するために使用する。
func NewStatusConflictError(expected, actual RequestStatus) *APIError {
	return &APIError{
		Code:     ErrCodeStatusConflict,
		Message:  fmt.Sprintf("リクエストの状態が変更されています（期待: %s、現在: %s）。", expected, actual),
		Category: "request",
		Action:   "最新の状態を取得してから再度お試しください。",
	}
}

// NewStoreUnavailableError は永続化層の障害エラーを生成する。
func NewStoreUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "データストアに接続できません。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "認証情報を確認してから再度お試しください。",
	}
}

// NewDuplicateUserError はメールアドレス重複エラーを生成する。
func NewDuplicateUserError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUser,
		Message:  fmt.Sprintf("このメールアドレスは既に登録されています: %s", email),
		Category: "validation",
		Action:   "ログインするか、別のメールアドレスを使用してください。",
	}
}

// NewInvalidRoleError は保持していない役割への切り替えエラーを生成する。
func NewInvalidRoleError(role Role) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("切り替え先の役割を保持していません: %s", role),
		Category: "validation",
		Action:   "保持している役割（seller/runner）を指定してください。",
	}
}
