package storage

import "time"

// RunRecord is one archived collection run for a topic.
type RunRecord struct {
	ID         int64
	Topic      string
	StartedAt  time.Time
	FinishedAt time.Time

	SourcesOK     []string
	SourcesFailed []string
	SuccessRate   float64
	ItemCount     int
}

// ReportRecord is one archived rendered report.
type ReportRecord struct {
	ID          int64
	RunID       int64
	Topic       string
	GeneratedAt time.Time
	Model       string
	Sentiment   string
	Compound    float64
	ItemCount   int
	Path        string
	Content     string
}

// TopicStats summarizes archive contents per topic.
type TopicStats struct {
	Topic   string
	Runs    int
	Items   int
	LastRun time.Time
}
