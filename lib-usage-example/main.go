package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/driftwatch/driftwatch/pkg/analyze"
	"github.com/driftwatch/driftwatch/pkg/collect"
	"github.com/driftwatch/driftwatch/pkg/sources"
	"github.com/driftwatch/driftwatch/pkg/sources/hackernews"
)

func main() {
	// Usage: go run *.go -topic "rust async runtimes"

	topicFlag := flag.String("topic", "", "Topic to research")
	maxFlag := flag.Int("max-items", 30, "Items to collect per source")

	// Parse the command-line flags
	flag.Parse()

	if *topicFlag == "" {
		fmt.Println("Topic is required. Please provide the topic using -topic flag.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// All sources are supported, syntax is similar
	rep, err := collect.All(ctx, collect.Config{
		Sources:          []sources.Source{hackernews.New(1, 2)},
		Query:            *topicFlag,
		MaxItems:         *maxFlag,
		AllowPartial:     true,
		Policy:           collect.DefaultPolicy(),
		BreakerThreshold: collect.DefaultBreakerThreshold,
	})
	if err != nil {
		fmt.Println("Collection failed:", err)
		return
	}

	summary := analyze.Summarize(rep.Items, 10)
	fmt.Printf("%d items, sentiment %s (%+.3f)\n", len(rep.Items), summary.Snapshot.Sentiment.Label, summary.Snapshot.Sentiment.Compound)
	for _, t := range summary.Snapshot.Topics {
		fmt.Println(t.Name, t.Importance)
	}
}
