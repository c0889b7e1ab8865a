package collect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/driftwatch/driftwatch/pkg/sources"
)

// Config holds everything All needs for one collection run.
type Config struct {
	Sources  []sources.Source
	Query    string
	MaxItems int

	// AllowPartial accepts a run in which at least one source succeeded.
	// When false, any source failure fails the run.
	AllowPartial bool

	// Concurrency bounds parallel source collection; defaults to the
	// number of requested sources.
	Concurrency int

	Policy           Policy
	BreakerThreshold int

	Log  Logger      // optional; nil = no logging
	Sink AttemptSink // optional; nil = attempts are not recorded

	// OnSourceDone is called per source as its outcome finalizes (from
	// worker goroutines). Enables the CLI to stream progress. Nil = no
	// callback.
	OnSourceDone func(Outcome)
}

// Report aggregates a whole run. Succeeded and Outcomes preserve the
// order sources were requested in; Failed is keyed by source name with
// FailedNames carrying the same request order.
type Report struct {
	Query       string
	Succeeded   []string
	Failed      map[string]*FetchError
	FailedNames []string
	SuccessRate float64
	Items       []sources.Item
	Outcomes    []Outcome
	Started     time.Time
	Elapsed     time.Duration
}

// All collects every requested source concurrently and joins on all
// outcomes before aggregating; it never returns early on a first success,
// and one source's failure never aborts another's collection.
//
// The returned Report is populated even when err is non-nil so callers can
// still inspect partial results. err is ErrNoDataCollected when nothing
// succeeded, or ErrAllSourcesRequired under the strict partial policy.
func All(ctx context.Context, cfg Config) (*Report, error) {
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("no sources requested")
	}
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 || concurrency > len(cfg.Sources) {
		concurrency = len(cfg.Sources)
	}

	started := time.Now()
	outcomes := make([]Outcome, len(cfg.Sources))

	jobs := make(chan int, len(cfg.Sources))
	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				src := cfg.Sources[idx]
				log.Infof("Collecting %s...", src.Name())
				c := NewCollector(src, cfg.Policy, cfg.BreakerThreshold, cfg.Sink, log)
				out := c.Collect(ctx, cfg.Query, cfg.MaxItems)
				outcomes[idx] = out
				if out.Status == StatusSuccess {
					log.Infof("%s: %d items in %d attempt(s)", out.Source, len(out.Items), out.Attempts)
				} else {
					log.Warnf("%s: failed after %d attempt(s): %v", out.Source, out.Attempts, out.Err)
				}
				if cfg.OnSourceDone != nil {
					cfg.OnSourceDone(out)
				}
			}
		}()
	}
	for idx := range cfg.Sources {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	rep := aggregate(cfg.Query, outcomes)
	rep.Started = started
	rep.Elapsed = time.Since(started)

	if len(rep.Succeeded) == 0 {
		return rep, fmt.Errorf("%d source(s) failed: %w", len(rep.FailedNames), ErrNoDataCollected)
	}
	if !cfg.AllowPartial && len(rep.FailedNames) > 0 {
		return rep, fmt.Errorf("%d of %d sources failed: %w", len(rep.FailedNames), len(outcomes), ErrAllSourcesRequired)
	}
	return rep, nil
}

// aggregate folds per-source outcomes into a Report in request order.
func aggregate(query string, outcomes []Outcome) *Report {
	rep := &Report{
		Query:    query,
		Failed:   make(map[string]*FetchError),
		Outcomes: outcomes,
	}
	for _, out := range outcomes {
		if out.Status == StatusSuccess {
			rep.Succeeded = append(rep.Succeeded, out.Source)
			rep.Items = append(rep.Items, out.Items...)
		} else {
			rep.FailedNames = append(rep.FailedNames, out.Source)
			rep.Failed[out.Source] = out.Err
		}
	}
	total := len(rep.Succeeded) + len(rep.FailedNames)
	if total > 0 {
		rep.SuccessRate = float64(len(rep.Succeeded)) / float64(total)
	}
	return rep
}
