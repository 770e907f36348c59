// Package reap は期限切れリクエストの定期スイープジョブを提供する。
// 読み取り駆動の遅延削除を補完するもので、読み取りが発生しない
// パーティションに残ったリクエストも保持期間超過後に削除する。
package reap

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Deleter はカットオフより古いリクエストの一括削除を抽象化するインターフェース。
// repository.RequestRepositoryが満たす。
type Deleter interface {
	DeleteOlderThanAllStores(ctx context.Context, cutoff time.Time) (int64, error)
}

// Metrics は削除件数を記録するインターフェース。
type Metrics interface {
	RecordRequestsReaped(count int64)
}

// SweepJob は全パーティションを対象とした期限切れリクエストの削除ジョブ。
// 冪等な削除処理を保証する。
type SweepJob struct {
	deleter         Deleter
	metrics         Metrics
	logger          *slog.Logger
	RetentionWindow time.Duration // リクエストの保持期間（デフォルト: 24時間）

	now func() time.Time
}

// NewSweepJob は新しいSweepJobを生成する。metricsはnilを許容する。
// デフォルトの保持期間は24時間。
func NewSweepJob(deleter Deleter, metrics Metrics, logger *slog.Logger) *SweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepJob{
		deleter:         deleter,
		metrics:         metrics,
		logger:          logger,
		RetentionWindow: 24 * time.Hour,
		now:             time.Now,
	}
}

// Run は保持期間を超過したリクエストを全パーティションから削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *SweepJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := j.now().UTC().Add(-j.RetentionWindow)

	deletedCount, err := j.deleter.DeleteOlderThanAllStores(ctx, cutoff)
	if err != nil {
		j.logger.Error("スイープジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Duration("retention_window", j.RetentionWindow),
		)
		return fmt.Errorf("期限切れリクエストの削除に失敗: %w", err)
	}

	if deletedCount > 0 && j.metrics != nil {
		j.metrics.RecordRequestsReaped(deletedCount)
	}

	duration := time.Since(start)
	j.logger.Info("スイープジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Duration("retention_window", j.RetentionWindow),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// RunPeriodic は指定間隔でRunを繰り返し実行する。
// 起動直後に1回実行し、以後はinterval間隔で実行する。
// ctxのキャンセルで停止する。
func (j *SweepJob) RunPeriodic(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Warn("初回スイープに失敗しました", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("スイープジョブを停止します")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Warn("スイープに失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}
