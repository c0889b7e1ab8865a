package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "archive.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndListRuns(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := db.SaveRun(ctx, RunRecord{
			Topic:         "uniswap v4",
			StartedAt:     base.Add(time.Duration(i) * time.Hour),
			FinishedAt:    base.Add(time.Duration(i)*time.Hour + time.Minute),
			SourcesOK:     []string{"hackernews", "web"},
			SourcesFailed: []string{"twitter"},
			SuccessRate:   0.67,
			ItemCount:     10 + i,
		})
		if err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}
	if _, err := db.SaveRun(ctx, RunRecord{
		Topic:      "rollups",
		StartedAt:  base,
		FinishedAt: base.Add(time.Minute),
		ItemCount:  5,
	}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	runs, err := db.ListRuns(ctx, "uniswap v4", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	// Newest first.
	if runs[0].ItemCount != 12 || runs[2].ItemCount != 10 {
		t.Errorf("ordering wrong: %+v", runs)
	}
	if !reflect.DeepEqual(runs[0].SourcesOK, []string{"hackernews", "web"}) {
		t.Errorf("sources ok = %v", runs[0].SourcesOK)
	}
	if !reflect.DeepEqual(runs[0].SourcesFailed, []string{"twitter"}) {
		t.Errorf("sources failed = %v", runs[0].SourcesFailed)
	}
	if !runs[0].FinishedAt.Equal(base.Add(2*time.Hour + time.Minute)) {
		t.Errorf("finished at = %v", runs[0].FinishedAt)
	}

	all, err := db.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListRuns all: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("got %d runs across topics, want 4", len(all))
	}

	limited, err := db.ListRuns(ctx, "uniswap v4", 2)
	if err != nil {
		t.Fatalf("ListRuns limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d runs with limit 2", len(limited))
	}
}

func TestListRunsMatchesNormalizedTopic(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if _, err := db.SaveRun(ctx, RunRecord{Topic: "Uniswap  V4", StartedAt: now, FinishedAt: now}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	runs, err := db.ListRuns(ctx, "uniswap v4", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want the differently-cased one", len(runs))
	}
	// Display form is preserved as saved.
	if runs[0].Topic != "Uniswap  V4" {
		t.Errorf("topic = %q", runs[0].Topic)
	}
}

func TestLatestReportSelection(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	for i, content := range []string{"first", "second", "third"} {
		_, err := db.SaveReport(ctx, ReportRecord{
			Topic:       "uniswap v4",
			GeneratedAt: base.AddDate(0, 0, i),
			Model:       "gpt-4o-mini",
			Sentiment:   "Positive",
			Compound:    0.3,
			ItemCount:   20,
			Content:     content,
		})
		if err != nil {
			t.Fatalf("SaveReport: %v", err)
		}
	}

	latest, err := db.LatestReport(ctx, "Uniswap V4", time.Time{})
	if err != nil {
		t.Fatalf("LatestReport: %v", err)
	}
	if latest.Content != "third" {
		t.Errorf("latest content = %q, want third", latest.Content)
	}
	if latest.Model != "gpt-4o-mini" || latest.Sentiment != "Positive" {
		t.Errorf("metadata lost: %+v", latest)
	}
	if !latest.GeneratedAt.Equal(base.AddDate(0, 0, 2)) {
		t.Errorf("generated at = %v", latest.GeneratedAt)
	}

	// A cutoff excludes reports generated at or after it.
	earlier, err := db.LatestReport(ctx, "uniswap v4", base.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("LatestReport before cutoff: %v", err)
	}
	if earlier.Content != "second" {
		t.Errorf("cutoff content = %q, want second", earlier.Content)
	}

	_, err = db.LatestReport(ctx, "no such topic", time.Time{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	seed := []RunRecord{
		{Topic: "rollups", StartedAt: now, FinishedAt: now, ItemCount: 5},
		{Topic: "rollups", StartedAt: now.Add(time.Hour), FinishedAt: now.Add(time.Hour), ItemCount: 7},
		{Topic: "uniswap v4", StartedAt: now, FinishedAt: now, ItemCount: 20},
	}
	for _, run := range seed {
		if _, err := db.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d topics, want 2: %+v", len(stats), stats)
	}
	if stats[0].Topic != "rollups" || stats[0].Runs != 2 || stats[0].Items != 12 {
		t.Errorf("rollups stats = %+v", stats[0])
	}
	if !stats[0].LastRun.Equal(now.Add(time.Hour)) {
		t.Errorf("rollups last run = %v", stats[0].LastRun)
	}
	if stats[1].Topic != "uniswap v4" || stats[1].Runs != 1 || stats[1].Items != 20 {
		t.Errorf("uniswap stats = %+v", stats[1])
	}
}

func TestSaveRejectsEmptyTopic(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if _, err := db.SaveRun(ctx, RunRecord{Topic: "  "}); err == nil {
		t.Error("SaveRun accepted empty topic")
	}
	if _, err := db.SaveReport(ctx, ReportRecord{Topic: "", Content: "x"}); err == nil {
		t.Error("SaveReport accepted empty topic")
	}
}
