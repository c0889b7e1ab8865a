// Package storage archives collection runs and rendered reports in a
// local SQLite database so later runs can compare against history.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/driftwatch/driftwatch/pkg/report"
)

// ErrNotFound is returned when a lookup matches nothing in the archive.
var ErrNotFound = errors.New("not found in archive")

const timestampLayout = "2006-01-02 15:04:05"

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
  id             INTEGER PRIMARY KEY,
  topic          TEXT NOT NULL,
  topic_key      TEXT NOT NULL,
  started_at     DATETIME NOT NULL,
  finished_at    DATETIME NOT NULL,
  sources_ok     TEXT,
  sources_failed TEXT,
  success_rate   REAL NOT NULL DEFAULT 0,
  item_count     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_topic ON runs(topic_key, finished_at);
CREATE TABLE IF NOT EXISTS reports (
  id           INTEGER PRIMARY KEY,
  run_id       INTEGER NOT NULL DEFAULT 0,
  topic        TEXT NOT NULL,
  topic_key    TEXT NOT NULL,
  generated_at DATETIME NOT NULL,
  model        TEXT,
  sentiment    TEXT,
  compound     REAL NOT NULL DEFAULT 0,
  item_count   INTEGER NOT NULL DEFAULT 0,
  path         TEXT,
  content      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_topic ON reports(topic_key, generated_at);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// SaveRun archives one collection run and returns its id.
func (d *DB) SaveRun(ctx context.Context, run RunRecord) (int64, error) {
	if strings.TrimSpace(run.Topic) == "" {
		return 0, errors.New("run topic is empty")
	}
	res, err := d.sql.ExecContext(ctx,
		`INSERT INTO runs(topic, topic_key, started_at, finished_at, sources_ok, sources_failed, success_rate, item_count) VALUES(?,?,?,?,?,?,?,?)`,
		run.Topic,
		report.NormalizeName(run.Topic),
		run.StartedAt.UTC().Format(timestampLayout),
		run.FinishedAt.UTC().Format(timestampLayout),
		nullIfEmpty(strings.Join(run.SourcesOK, ",")),
		nullIfEmpty(strings.Join(run.SourcesFailed, ",")),
		run.SuccessRate,
		run.ItemCount,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SaveReport archives one rendered report and returns its id.
func (d *DB) SaveReport(ctx context.Context, rec ReportRecord) (int64, error) {
	if strings.TrimSpace(rec.Topic) == "" {
		return 0, errors.New("report topic is empty")
	}
	if rec.GeneratedAt.IsZero() {
		rec.GeneratedAt = time.Now().UTC()
	}
	res, err := d.sql.ExecContext(ctx,
		`INSERT INTO reports(run_id, topic, topic_key, generated_at, model, sentiment, compound, item_count, path, content) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		rec.RunID,
		rec.Topic,
		report.NormalizeName(rec.Topic),
		rec.GeneratedAt.UTC().Format(timestampLayout),
		nullIfEmpty(rec.Model),
		nullIfEmpty(rec.Sentiment),
		rec.Compound,
		rec.ItemCount,
		nullIfEmpty(rec.Path),
		rec.Content,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LatestReport returns the newest archived report for a topic, optionally
// restricted to reports generated strictly before a cutoff. Topic identity
// is the normalized name, so "Uniswap  V4" finds reports saved as
// "uniswap v4". Returns ErrNotFound when the topic has no history.
func (d *DB) LatestReport(ctx context.Context, topic string, before time.Time) (*ReportRecord, error) {
	q := `SELECT id, run_id, topic, generated_at, model, sentiment, compound, item_count, path, content FROM reports WHERE topic_key = ?`
	args := []interface{}{report.NormalizeName(topic)}
	if !before.IsZero() {
		q += ` AND generated_at < ?`
		args = append(args, before.UTC().Format(timestampLayout))
	}
	q += ` ORDER BY generated_at DESC, id DESC LIMIT 1`

	row := d.sql.QueryRowContext(ctx, q, args...)

	var rec ReportRecord
	var generatedAt string
	var model, sentiment, path sql.NullString
	err := row.Scan(&rec.ID, &rec.RunID, &rec.Topic, &generatedAt, &model, &sentiment, &rec.Compound, &rec.ItemCount, &path, &rec.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.GeneratedAt = parseTimestamp(generatedAt)
	rec.Model = model.String
	rec.Sentiment = sentiment.String
	rec.Path = path.String
	return &rec, nil
}

// ListRuns returns archived runs, newest first. An empty topic matches all
// topics; limit <= 0 defaults to 50.
func (d *DB) ListRuns(ctx context.Context, topic string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id, topic, started_at, finished_at, sources_ok, sources_failed, success_rate, item_count FROM runs`
	args := []interface{}{}
	if topic != "" {
		q += ` WHERE topic_key = ?`
		args = append(args, report.NormalizeName(topic))
	}
	q += ` ORDER BY finished_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var run RunRecord
		var started, finished string
		var ok, failed sql.NullString
		if err := rows.Scan(&run.ID, &run.Topic, &started, &finished, &ok, &failed, &run.SuccessRate, &run.ItemCount); err != nil {
			return nil, err
		}
		run.StartedAt = parseTimestamp(started)
		run.FinishedAt = parseTimestamp(finished)
		run.SourcesOK = splitList(ok.String)
		run.SourcesFailed = splitList(failed.String)
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) Stats(ctx context.Context) ([]TopicStats, error) {
	query := `
		SELECT
			topic,
			COUNT(*),
			COALESCE(SUM(item_count), 0),
			MAX(finished_at)
		FROM
			runs
		GROUP BY
			topic_key
		ORDER BY
			topic;
	`
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []TopicStats
	for rows.Next() {
		var s TopicStats
		var last string
		if err := rows.Scan(&s.Topic, &s.Runs, &s.Items, &last); err != nil {
			return nil, err
		}
		s.LastRun = parseTimestamp(last)
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

// parseTimestamp reads the SQLite CURRENT_TIMESTAMP format, then RFC3339.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(timestampLayout, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
