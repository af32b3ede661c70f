package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/yungbote/readiness-backend/internal/app"
	"github.com/yungbote/readiness-backend/internal/platform/shutdown"
)

func main() {
	var (
		olderThan time.Duration
		dryRun    bool
		limit     int
	)
	flag.DurationVar(&olderThan, "older-than", 0, "archive SCORED assessments not updated within this window (default RETENTION_PERIOD)")
	flag.BoolVar(&dryRun, "dry-run", false, "list the assessments that would be archived without changing them")
	flag.IntVar(&limit, "limit", 0, "maximum number of assessments to process (0 = no limit)")
	flag.Parse()

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	application, err := app.NewWorker(ctx)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	if application.Cfg.Store.Driver == app.StoreMemory {
		application.Log.Warn("STORE_DRIVER=memory: nothing persisted to sweep")
	}
	if olderThan <= 0 {
		olderThan = application.Cfg.RetentionPeriod
	}
	cutoff := time.Now().UTC().Add(-olderThan)

	report, err := application.Sessions.ArchiveScoredBefore(ctx, cutoff, limit, dryRun)
	if err != nil {
		application.Log.Error("retention sweep failed", "error", err, "archived", report.Archived)
		application.Close()
		os.Exit(1)
	}
	for _, id := range report.IDs {
		fmt.Println(id.String())
	}
	verb := "archived"
	if dryRun {
		verb = "would archive"
	}
	fmt.Printf("%s %d of %d scored assessments older than %s (skipped %d)\n",
		verb, len(report.IDs), report.Candidates, cutoff.Format(time.RFC3339), report.Skipped)
}
