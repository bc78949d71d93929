package history

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"btcforecast/pkg/contracts/domain"
)

// SQLiteRecorder persists run records to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *slog.Logger
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *slog.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger.With(slog.String("component", "history"))}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.logger.Info("Run history opened", slog.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id            TEXT PRIMARY KEY,
			started_at        INTEGER NOT NULL,
			duration_ms       INTEGER NOT NULL,
			series_name       TEXT,
			input_path        TEXT,
			output_path       TEXT,
			status            TEXT NOT NULL,
			error_kind        TEXT,
			error             TEXT,
			input_points      INTEGER,
			order_p           INTEGER,
			order_d           INTEGER,
			order_q           INTEGER,
			horizon           INTEGER,
			aic               REAL,
			bic               REAL,
			ljung_box_p_value REAL,
			rmse              REAL,
			mae               REAL,
			mape              REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS run_stages (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL REFERENCES runs(run_id),
			position    INTEGER NOT NULL,
			stage_id    TEXT NOT NULL,
			status      TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_stages_run ON run_stages(run_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun stores rec and its stages in one transaction. Recording the
// same run ID twice replaces the earlier record.
func (r *SQLiteRecorder) RecordRun(rec *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var (
		p, d, q, horizon sql.NullInt64
		aic, bic, lb     sql.NullFloat64
		rmse, mae, mape  sql.NullFloat64
	)
	if res := rec.Result; res != nil {
		p = sql.NullInt64{Int64: int64(res.Order.P), Valid: true}
		d = sql.NullInt64{Int64: int64(res.Order.D), Valid: true}
		q = sql.NullInt64{Int64: int64(res.Order.Q), Valid: true}
		horizon = sql.NullInt64{Int64: int64(res.Horizon()), Valid: true}
		aic = sql.NullFloat64{Float64: res.AIC, Valid: true}
		bic = sql.NullFloat64{Float64: res.BIC, Valid: true}
		lb = sql.NullFloat64{Float64: res.LjungBoxPValue, Valid: true}
		if ev := res.Evaluation; ev != nil {
			rmse = sql.NullFloat64{Float64: ev.RMSE, Valid: true}
			mae = sql.NullFloat64{Float64: ev.MAE, Valid: true}
			mape = sql.NullFloat64{Float64: ev.MAPE, Valid: true}
		}
	}

	if _, err := tx.Exec(`DELETE FROM run_stages WHERE run_id = ?`, rec.RunID); err != nil {
		return fmt.Errorf("clear stages: %w", err)
	}

	_, err = tx.Exec(`INSERT OR REPLACE INTO runs
		(run_id, started_at, duration_ms, series_name, input_path, output_path,
		 status, error_kind, error, input_points,
		 order_p, order_d, order_q, horizon, aic, bic, ljung_box_p_value,
		 rmse, mae, mape)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.StartedAt.UnixMilli(), rec.Duration.Milliseconds(),
		rec.SeriesName, rec.InputPath, rec.OutputPath,
		rec.Status, rec.ErrorKind, rec.Error, rec.InputPoints,
		p, d, q, horizon, aic, bic, lb,
		rmse, mae, mape)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, st := range rec.Stages {
		_, err := tx.Exec(`INSERT INTO run_stages
			(run_id, position, stage_id, status, duration_ms, error)
			VALUES (?, ?, ?, ?, ?, ?)`,
			rec.RunID, i, st.StageID, st.Status, st.Duration.Milliseconds(), st.Error)
		if err != nil {
			return fmt.Errorf("insert stage %s: %w", st.StageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first. Forecast points are not
// stored, so Result carries only the order and diagnostics.
func (r *SQLiteRecorder) RecentRuns(limit int) ([]RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT run_id, started_at, duration_ms, series_name,
		input_path, output_path, status, error_kind, error, input_points,
		order_p, order_d, order_q, aic, bic, ljung_box_p_value, rmse, mae, mape
		FROM runs ORDER BY started_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			rec                     RunRecord
			startedMs, durationMs   int64
			p, d, q                 sql.NullInt64
			aic, bic, lb            sql.NullFloat64
			rmse, mae, mape         sql.NullFloat64
			inputPath, outputPath   sql.NullString
			seriesName              sql.NullString
			errorKind, errorMessage sql.NullString
			inputPoints             sql.NullInt64
		)
		if err := rows.Scan(&rec.RunID, &startedMs, &durationMs, &seriesName,
			&inputPath, &outputPath, &rec.Status, &errorKind, &errorMessage, &inputPoints,
			&p, &d, &q, &aic, &bic, &lb, &rmse, &mae, &mape); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		rec.StartedAt = time.UnixMilli(startedMs).UTC()
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		rec.SeriesName = seriesName.String
		rec.InputPath = inputPath.String
		rec.OutputPath = outputPath.String
		rec.ErrorKind = errorKind.String
		rec.Error = errorMessage.String
		rec.InputPoints = int(inputPoints.Int64)

		if p.Valid {
			rec.Result = &domain.ForecastResult{
				RunID:          rec.RunID,
				SeriesName:     rec.SeriesName,
				Order:          domain.Order{P: int(p.Int64), D: int(d.Int64), Q: int(q.Int64)},
				AIC:            aic.Float64,
				BIC:            bic.Float64,
				LjungBoxPValue: lb.Float64,
			}
			if rmse.Valid {
				rec.Result.Evaluation = &domain.Evaluation{RMSE: rmse.Float64, MAE: mae.Float64, MAPE: mape.Float64}
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		stages, err := r.stages(out[i].RunID)
		if err != nil {
			return nil, err
		}
		out[i].Stages = stages
	}
	return out, nil
}

func (r *SQLiteRecorder) stages(runID string) ([]StageRecord, error) {
	rows, err := r.db.Query(`SELECT stage_id, status, duration_ms, error
		FROM run_stages WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()

	var out []StageRecord
	for rows.Next() {
		var (
			st         StageRecord
			durationMs int64
			errMsg     sql.NullString
		)
		if err := rows.Scan(&st.StageID, &st.Status, &durationMs, &errMsg); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		st.Duration = time.Duration(durationMs) * time.Millisecond
		st.Error = errMsg.String
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
