package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		printUsage(stdout)
		return nil
	}
	rest := args[1:]
	switch args[0] {
	case "normalize":
		return runNormalize(rest, stdout)
	case "index":
		return runIndex(ctx, rest, stdout)
	case "search":
		return runSearch(ctx, rest, stdout)
	case "extract":
		return runExtract(rest, stdout)
	case "serve":
		return runServe(ctx, rest)
	case "browse":
		return runBrowse(ctx, rest)
	case "help", "--help", "-h":
		printUsage(stdout)
		return nil
	default:
		return fmt.Errorf("unknown command: %s\nRun 'qbank help' for usage", args[0])
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `qbank: academic question bank indexing and retrieval

Usage:
  qbank <command> [options]

Commands:
  normalize -in bank.json [-out clean.json]     Reduce noisy subtopic labels to short names
  index -in bank.json [-overwrite] [-normalize]  Embed and store every question of a bank
  search -q <topic> [-marks 3] [-difficulty medium] [-cognitive applying]
         [-k 15] [-fallback-cap 0] [-out selected_questions.json]
                                                Retrieve questions matching a profile
  extract -keywords topics.json [-out passages.json] files...
                                                Split .txt/.pdf documents into topic-tagged passages
  serve [-addr :8080] [-in bank.json]           Start the HTTP API
  browse [-in bank.json]                        Interactive search
  help                                          Show this help

Every command accepts -config <path>; otherwise ./qbank.yaml or ~/.config/qbank/config.yaml is used.
`)
}
