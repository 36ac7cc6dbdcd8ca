package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "fetch":
		return runFetch(args[1:])
	case "process":
		return runProcess(args[1:])
	case "process-article":
		return runProcessArticle(args[1:])
	case "enqueue":
		return runEnqueue(args[1:])
	case "status":
		return runStatus(args[1:])
	case "worker":
		return runWorker(args[1:])
	case "beat":
		return runBeat(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "newsroom CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  newsroom <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health           Verify database and queue connectivity")
	fmt.Fprintln(os.Stderr, "  fetch            Pull headlines for every configured category")
	fmt.Fprintln(os.Stderr, "  process          Summarize and tag one batch of unprocessed articles")
	fmt.Fprintln(os.Stderr, "  process-article  Summarize and tag a single article by id")
	fmt.Fprintln(os.Stderr, "  enqueue          Queue fetch_news, process_new_articles or process_article")
	fmt.Fprintln(os.Stderr, "  status           Show the status of a queued task")
	fmt.Fprintln(os.Stderr, "  worker           Run queued tasks")
	fmt.Fprintln(os.Stderr, "  beat             Enqueue periodic tasks on their schedule")
	fmt.Fprintln(os.Stderr, "  serve            Start the ops HTTP API")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"newsroom <command> -h\" for command-specific flags.")
}
