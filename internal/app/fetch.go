package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/newsroom/internal/cli"
	"horse.fit/newsroom/internal/enrich"
	"horse.fit/newsroom/internal/ingest"
)

// previewResult is what a dry run prints: the fetch counts and the
// enrichment the fetched articles would receive.
type previewResult struct {
	Fetch  ingest.FetchResult `json:"fetch"`
	Enrich enrich.BatchResult `json:"enrich"`
}

func runFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	category := fs.String("category", "", "Fetch a single category instead of every configured one")
	dryRun := fs.Bool("dry-run", false, "Fetch and enrich in memory without touching the database")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "fetch does not accept positional arguments")
		return 2
	}

	ctx, cancel, p, closeFn, code := openPipeline(envLoader, *timeout, *dryRun)
	if code != 0 {
		return code
	}
	defer cancel()
	defer closeFn()

	var res ingest.FetchResult
	if *category != "" {
		one, err := p.ingest.FetchCategory(ctx, *category)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
			return 1
		}
		res = ingest.FetchResult{Categories: []ingest.CategoryResult{one}, New: one.New, Skipped: one.Skipped}
	} else {
		var err error
		res, err = p.ingest.FetchAll(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
			return 1
		}
	}

	var out any = res
	if *dryRun {
		preview, err := previewEnrichment(ctx, res, p.enrich)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Processing failed: %v\n", err)
			return 1
		}
		out = preview
	}
	if err := printJSON(out); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		return 1
	}
	return 0
}

// previewEnrichment runs one batch over the articles a dry-run fetch stored in memory.
func previewEnrichment(ctx context.Context, fetched ingest.FetchResult, enr enricher) (previewResult, error) {
	out := previewResult{Fetch: fetched}
	if fetched.New == 0 {
		return out, nil
	}
	batch, err := enr.ProcessBatch(ctx)
	if err != nil {
		return previewResult{}, err
	}
	out.Enrich = batch
	return out, nil
}
