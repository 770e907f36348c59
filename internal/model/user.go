// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの役割を表す。
type Role string

const (
	// RoleSeller はリクエストを起票する販売員の役割。
	RoleSeller Role = "seller"
	// RoleRunner はリクエストを取り寄せ・完了させるランナーの役割。
	RoleRunner Role = "runner"
)

// Valid は役割が定義済みの値かを返す。
func (r Role) Valid() bool {
	return r == RoleSeller || r == RoleRunner
}

// UserProfile は認証済みユーザーのプロフィールを表す。
// 初回サインアップ時に作成され、ログインごとにLastLoginが更新される。
type UserProfile struct {
	UID          string
	DisplayName  string
	Email        string
	PasswordHash string
	Roles        []Role
	ActiveRole   Role // Rolesに含まれる値でなければならない
	StoreID      string
	CreatedAt    time.Time
	LastLogin    time.Time
}

// HasRole はプロフィールが指定の役割を保持しているかを返す。
func (u *UserProfile) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Principal は検証済みトークンから構築される認証主体を表す。
// 認可判定はすべてこの値を明示的な関数入力として行い、グローバル状態には持たない。
type Principal struct {
	UID         string
	DisplayName string
	Email       string
	Roles       []Role
	ActiveRole  Role
	StoreID     string
}

// IsRunner は現在の有効役割がランナーかを返す。
// 状態遷移の認可判定に使用する。
func (p *Principal) IsRunner() bool {
	return p.ActiveRole == RoleRunner
}

// UserRef はリクエストに記録する参照情報へ変換する。
func (p *Principal) UserRef() UserRef {
	return UserRef{
		UID:         p.UID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
	}
}
