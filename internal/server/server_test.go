package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/driftwatch/driftwatch/pkg/report"
	"github.com/driftwatch/driftwatch/pkg/storage"
)

func testServer(t *testing.T) (*storage.DB, *httptest.Server) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "archive.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	srv := httptest.NewServer(New(db, "", "").Handler())
	t.Cleanup(func() {
		srv.Close()
		db.Close()
	})
	return db, srv
}

func renderedReport(t *testing.T, topic string, generated time.Time, topics []report.Topic, sentiment report.Sentiment) string {
	t.Helper()
	return report.Render(&report.Document{
		Topic: topic,
		Meta:  report.Meta{GeneratedAt: generated, TotalItems: 10},
		Snapshot: report.Snapshot{
			Topics:    topics,
			Sentiment: sentiment,
			ItemCount: 10,
		},
	})
}

func seedComparableReports(t *testing.T, db *storage.DB) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	historical := renderedReport(t, "uniswap v4",
		base,
		[]report.Topic{{Name: "uniswap v3", Importance: 0.8, Label: report.LabelNeutral}},
		report.Sentiment{Label: report.LabelNeutral, Compound: 0.0},
	)
	current := renderedReport(t, "uniswap v4",
		base.AddDate(0, 0, 1),
		[]report.Topic{{Name: "uniswap v4 hooks", Importance: 0.9, Label: report.LabelPositive}},
		report.Sentiment{Label: report.LabelPositive, Compound: 0.3},
	)

	for i, rec := range []storage.ReportRecord{
		{Topic: "uniswap v4", GeneratedAt: base, ItemCount: 10, Content: historical},
		{Topic: "uniswap v4", GeneratedAt: base.AddDate(0, 0, 1), ItemCount: 10, Content: current},
	} {
		if _, err := db.SaveReport(ctx, rec); err != nil {
			t.Fatalf("SaveReport %d: %v", i, err)
		}
	}
}

func getJSON(t *testing.T, url string, into interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if into != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealthEndpoint(t *testing.T) {
	_, srv := testServer(t)

	var body map[string]string
	if code := getJSON(t, srv.URL+"/api/health", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestRunsEndpoint(t *testing.T) {
	db, srv := testServer(t)
	ctx := context.Background()

	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		if _, err := db.SaveRun(ctx, storage.RunRecord{
			Topic:      "rollups",
			StartedAt:  now.Add(time.Duration(i) * time.Hour),
			FinishedAt: now.Add(time.Duration(i) * time.Hour),
			ItemCount:  3,
		}); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	var runs []storage.RunRecord
	if code := getJSON(t, srv.URL+"/api/runs?topic=rollups", &runs); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(runs) != 2 {
		t.Errorf("got %d runs", len(runs))
	}

	var limited []storage.RunRecord
	if code := getJSON(t, srv.URL+"/api/runs?topic=rollups&limit=1", &limited); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(limited) != 1 {
		t.Errorf("limit ignored, got %d runs", len(limited))
	}
}

func TestLatestReportEndpoint(t *testing.T) {
	db, srv := testServer(t)
	seedComparableReports(t, db)

	var rec storage.ReportRecord
	if code := getJSON(t, srv.URL+"/api/reports/latest?topic=uniswap+v4", &rec); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if rec.Topic != "uniswap v4" || rec.Content == "" {
		t.Errorf("record = %+v", rec)
	}

	if code := getJSON(t, srv.URL+"/api/reports/latest", nil); code != http.StatusBadRequest {
		t.Errorf("missing topic status = %d", code)
	}
	if code := getJSON(t, srv.URL+"/api/reports/latest?topic=nothing", nil); code != http.StatusNotFound {
		t.Errorf("unknown topic status = %d", code)
	}
}

func TestCompareEndpoint(t *testing.T) {
	db, srv := testServer(t)
	seedComparableReports(t, db)

	var body compareResponse
	if code := getJSON(t, srv.URL+"/api/compare?topic=uniswap+v4", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body.Result.Trend != "Improving" {
		t.Errorf("trend = %q", body.Result.Trend)
	}
	if len(body.Result.NewTopics) != 1 || body.Result.NewTopics[0].Name != "uniswap v4 hooks" {
		t.Errorf("new topics = %+v", body.Result.NewTopics)
	}
	if !body.Current.GeneratedAt.After(body.Historical.GeneratedAt) {
		t.Errorf("report order wrong: %+v", body)
	}
}

func TestCompareNeedsTwoReports(t *testing.T) {
	db, srv := testServer(t)
	ctx := context.Background()

	only := renderedReport(t, "solo", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), nil, report.Sentiment{Label: report.LabelUnknown})
	if _, err := db.SaveReport(ctx, storage.ReportRecord{Topic: "solo", Content: only}); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	if code := getJSON(t, srv.URL+"/api/compare?topic=solo", nil); code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 with a single report", code)
	}
}

func TestBasicAuthGuardsRoutes(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "archive.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	srv := httptest.NewServer(New(db, "admin", "hunter2").Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without creds = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/health", nil)
	req.SetBasicAuth("admin", "hunter2")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET with creds: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status with creds = %d", resp.StatusCode)
	}
}
