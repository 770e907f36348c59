package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/runboard/internal/model"
)

// requestColumns はrequestsテーブルのSELECT対象カラム。
const requestColumns = `id, store_id, ticket_no, category, type_of_shoe, brand, model,
	colour_code, size, quantity, customer_tag, notes, barcode, status,
	created_by_uid, created_by_name, created_by_email,
	claimed_by_uid, claimed_by_name, created_at, claimed_at, completed_at`

// PostgresRequestRepo はPostgreSQLを使用したリクエストリポジトリ。
type PostgresRequestRepo struct {
	db *sql.DB
}

// NewPostgresRequestRepo はPostgresRequestRepoを生成する。
func NewPostgresRequestRepo(db *sql.DB) *PostgresRequestRepo {
	return &PostgresRequestRepo{db: db}
}

// CreateBatch はバッチ内の全リクエストを単一トランザクションで作成する。
// いずれか1件でも失敗した場合は全件ロールバックされる。
func (r *PostgresRequestRepo) CreateBatch(ctx context.Context, requests []*model.Request) error {
	if len(requests) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	for _, req := range requests {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO requests (id, store_id, ticket_no, category, type_of_shoe,
			                       brand, model, colour_code, size, quantity,
			                       customer_tag, notes, barcode, status,
			                       created_by_uid, created_by_name, created_by_email, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			         $11, $12, $13, $14, $15, $16, $17, $18)`,
			req.ID, req.StoreID, req.TicketNo, req.Category, req.TypeOfShoe,
			req.Brand, req.Model, req.ColourCode, req.Size, req.Quantity,
			nullString(req.CustomerTag), nullString(req.Notes), nullString(req.Barcode),
			req.Status,
			req.CreatedBy.UID, req.CreatedBy.DisplayName, req.CreatedBy.Email,
			req.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("リクエストの作成に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("リクエストバッチのコミットに失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定パーティション内のリクエストを取得する。見つからない場合はnilを返す。
func (r *PostgresRequestRepo) FindByID(ctx context.Context, storeID, id string) (*model.Request, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE store_id = $1 AND id = $2`,
		storeID, id,
	)

	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("リクエストの取得に失敗しました: %w", err)
	}
	return req, nil
}

// buildListQuery はRequestListQueryからSQLとバインド引数を組み立てる。
// 範囲フィルタとカーソルはcreated_atのみを対象とし、ソートフィールドと一致させる。
func buildListQuery(q RequestListQuery) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + requestColumns + ` FROM requests WHERE store_id = $1`)

	args := []interface{}{q.StoreID}
	argIndex := 2

	if n := len(q.Statuses); n > 0 {
		placeholders := make([]string, 0, n)
		for _, s := range q.Statuses {
			placeholders = append(placeholders, fmt.Sprintf("$%d", argIndex))
			args = append(args, s)
			argIndex++
		}
		sb.WriteString(" AND status IN (" + strings.Join(placeholders, ", ") + ")")
	}

	if q.CustomerTag != "" {
		sb.WriteString(fmt.Sprintf(" AND customer_tag = $%d", argIndex))
		args = append(args, q.CustomerTag)
		argIndex++
	}
	if q.CreatedByUID != "" {
		sb.WriteString(fmt.Sprintf(" AND created_by_uid = $%d", argIndex))
		args = append(args, q.CreatedByUID)
		argIndex++
	}
	if q.ClaimedByUID != "" {
		sb.WriteString(fmt.Sprintf(" AND claimed_by_uid = $%d", argIndex))
		args = append(args, q.ClaimedByUID)
		argIndex++
	}

	if q.Since != nil {
		sb.WriteString(fmt.Sprintf(" AND created_at >= $%d", argIndex))
		args = append(args, *q.Since)
		argIndex++
	}
	if q.Until != nil {
		sb.WriteString(fmt.Sprintf(" AND created_at <= $%d", argIndex))
		args = append(args, *q.Until)
		argIndex++
	}

	// カーソル: ソート方向に応じて前ページ最終要素のcreated_atの先を取得する
	if q.After != nil {
		if q.Order == SortAsc {
			sb.WriteString(fmt.Sprintf(" AND created_at > $%d", argIndex))
		} else {
			sb.WriteString(fmt.Sprintf(" AND created_at < $%d", argIndex))
		}
		args = append(args, *q.After)
		argIndex++
	}

	if q.Order == SortAsc {
		sb.WriteString(" ORDER BY created_at ASC")
	} else {
		sb.WriteString(" ORDER BY created_at DESC")
	}

	sb.WriteString(fmt.Sprintf(" LIMIT $%d", argIndex))
	args = append(args, q.Limit)

	return sb.String(), args
}

// List は条件に一致するリクエストをcreated_at順で取得する。
func (r *PostgresRequestRepo) List(ctx context.Context, q RequestListQuery) ([]*model.Request, error) {
	query, args := buildListQuery(q)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("リクエスト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var requests []*model.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("リクエスト行の読み取りに失敗しました: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リクエスト一覧の走査に失敗しました: %w", err)
	}

	return requests, nil
}

// UpdateStatusIf は保存されているstatusがexpectedと一致する場合のみtoへ更新する。
// 条件付きUPDATEにより、同時クレームの勝敗をストア側で直列化する。
func (r *PostgresRequestRepo) UpdateStatusIf(
	ctx context.Context,
	storeID, id string,
	expected, to model.RequestStatus,
	claimedBy *model.UserRef,
	claimedAt, completedAt *time.Time,
) (int64, error) {
	var claimedByUID, claimedByName sql.NullString
	if claimedBy != nil {
		claimedByUID = sql.NullString{String: claimedBy.UID, Valid: true}
		claimedByName = sql.NullString{String: claimedBy.DisplayName, Valid: true}
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE requests SET
		    status = $4,
		    claimed_by_uid = COALESCE($5, claimed_by_uid),
		    claimed_by_name = COALESCE($6, claimed_by_name),
		    claimed_at = COALESCE($7, claimed_at),
		    completed_at = COALESCE($8, completed_at)
		 WHERE store_id = $1 AND id = $2 AND status = $3`,
		storeID, id, expected, to,
		claimedByUID, claimedByName, claimedAt, completedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("リクエスト状態の更新に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	return affected, nil
}

// DeleteOlderThan はcreated_atがcutoffより古いリクエストを単一のDELETEで削除する。
func (r *PostgresRequestRepo) DeleteOlderThan(ctx context.Context, storeID string, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM requests WHERE store_id = $1 AND created_at < $2`,
		storeID, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("期限切れリクエストの削除に失敗しました: %w", err)
	}
	return result.RowsAffected()
}

// DeleteOlderThanAllStores は全パーティションを対象にcutoffより古いリクエストを削除する。
func (r *PostgresRequestRepo) DeleteOlderThanAllStores(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM requests WHERE created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("期限切れリクエストの全体削除に失敗しました: %w", err)
	}
	return result.RowsAffected()
}

// rowScanner は*sql.Rowと*sql.Rowsの双方からのスキャンを抽象化する。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRequest は1行分のリクエストを読み取る。
func scanRequest(row rowScanner) (*model.Request, error) {
	req := &model.Request{}
	var customerTag, notes, barcode sql.NullString
	var claimedByUID, claimedByName sql.NullString
	var claimedAt, completedAt sql.NullTime

	err := row.Scan(
		&req.ID, &req.StoreID, &req.TicketNo, &req.Category, &req.TypeOfShoe,
		&req.Brand, &req.Model, &req.ColourCode, &req.Size, &req.Quantity,
		&customerTag, &notes, &barcode, &req.Status,
		&req.CreatedBy.UID, &req.CreatedBy.DisplayName, &req.CreatedBy.Email,
		&claimedByUID, &claimedByName, &req.CreatedAt, &claimedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	req.CustomerTag = nullStringValue(customerTag)
	req.Notes = nullStringValue(notes)
	req.Barcode = nullStringValue(barcode)
	if claimedByUID.Valid {
		req.ClaimedBy = &model.UserRef{
			UID:         claimedByUID.String,
			DisplayName: nullStringValue(claimedByName),
		}
	}
	if claimedAt.Valid {
		req.ClaimedAt = &claimedAt.Time
	}
	if completedAt.Valid {
		req.CompletedAt = &completedAt.Time
	}

	return req, nil
}

// nullString は空文字列をNULLへ変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はNULL許容カラムの値を取り出す。NULLは空文字列になる。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ RequestRepository = (*PostgresRequestRepo)(nil)
