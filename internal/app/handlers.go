package app

import (
	"context"
	"encoding/json"
	"fmt"

	"horse.fit/newsroom/internal/enrich"
	"horse.fit/newsroom/internal/ingest"
	"horse.fit/newsroom/internal/tasks"
)

type fetcher interface {
	FetchAll(ctx context.Context) (ingest.FetchResult, error)
}

type enricher interface {
	ProcessBatch(ctx context.Context) (enrich.BatchResult, error)
	ProcessArticle(ctx context.Context, id int64) (enrich.ArticleResult, error)
}

type batchSummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Selected  int `json:"selected"`
}

// registerHandlers binds the three pipeline tasks to w.
func registerHandlers(w *tasks.Worker, feed fetcher, enr enricher, opts tasks.TaskOptions) {
	w.Register(tasks.FetchNews, fetchNewsHandler(feed), &opts)
	w.Register(tasks.ProcessNewArticles, processNewArticlesHandler(enr), &opts)
	w.Register(tasks.ProcessArticle, processArticleHandler(enr), &opts)
}

func fetchNewsHandler(feed fetcher) tasks.Handler {
	return func(ctx context.Context, _ json.RawMessage) (any, error) {
		res, err := feed.FetchAll(ctx)
		if err != nil {
			return nil, err
		}
		return res, nil
	}
}

func processNewArticlesHandler(enr enricher) tasks.Handler {
	return func(ctx context.Context, _ json.RawMessage) (any, error) {
		res, err := enr.ProcessBatch(ctx)
		if err != nil {
			return nil, retryOrGiveUp(err)
		}
		return batchSummary{Processed: res.Processed, Skipped: res.Skipped, Selected: res.Selected}, nil
	}
}

func processArticleHandler(enr enricher) tasks.Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args tasks.ArticleArgs
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, tasks.Permanent(fmt.Errorf("decode %s args: %w", tasks.ProcessArticle, err))
			}
		}
		if args.ArticleID <= 0 {
			return nil, tasks.Permanent(fmt.Errorf("%s requires a positive article_id", tasks.ProcessArticle))
		}

		res, err := enr.ProcessArticle(ctx, args.ArticleID)
		if err != nil {
			return nil, retryOrGiveUp(err)
		}
		return res, nil
	}
}

func retryOrGiveUp(err error) error {
	if enrich.IsRetryable(err) {
		return err
	}
	return tasks.Permanent(err)
}
