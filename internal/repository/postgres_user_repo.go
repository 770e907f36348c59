package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/runboard/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `uid, display_name, email, password_hash, roles, active_role,
	store_id, created_at, last_login`

// FindByUID は指定UIDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUID(ctx context.Context, uid string) (*model.UserProfile, error) {
	user, err := r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE uid = $1`, uid,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでプロフィールを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.UserProfile, error) {
	user, err := r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("メールアドレスによるユーザーの検索に失敗しました: %w", err)
	}
	return user, nil
}

// Create はプロフィールを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.UserProfile) error {
	roles := make([]string, 0, len(user.Roles))
	for _, role := range user.Roles {
		roles = append(roles, string(role))
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (uid, display_name, email, password_hash, roles,
		                    active_role, store_id, created_at, last_login)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.UID, user.DisplayName, user.Email, user.PasswordHash,
		pq.Array(roles), user.ActiveRole, user.StoreID,
		user.CreatedAt, user.LastLogin,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateActiveRole は有効役割を更新する。
func (r *PostgresUserRepo) UpdateActiveRole(ctx context.Context, uid string, role model.Role) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET active_role = $2 WHERE uid = $1`,
		uid, role,
	)
	if err != nil {
		return fmt.Errorf("有効役割の更新に失敗しました: %w", err)
	}
	return nil
}

// TouchLastLogin は最終ログイン日時を更新する。
func (r *PostgresUserRepo) TouchLastLogin(ctx context.Context, uid string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login = $2 WHERE uid = $1`,
		uid, at,
	)
	if err != nil {
		return fmt.Errorf("最終ログイン日時の更新に失敗しました: %w", err)
	}
	return nil
}

// scanUser は1行分のプロフィールを読み取る。
func (r *PostgresUserRepo) scanUser(row rowScanner) (*model.UserProfile, error) {
	user := &model.UserProfile{}
	var roles pq.StringArray

	err := row.Scan(
		&user.UID, &user.DisplayName, &user.Email, &user.PasswordHash,
		&roles, &user.ActiveRole, &user.StoreID,
		&user.CreatedAt, &user.LastLogin,
	)
	if err != nil {
		return nil, err
	}

	user.Roles = make([]model.Role, 0, len(roles))
	for _, role := range roles {
		user.Roles = append(user.Roles, model.Role(role))
	}
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
