// Command hrgraph ingests résumé documents into the candidate knowledge
// graph and answers questions over it.
//
// Usage:
//
//	hrgraph init-index
//	hrgraph ingest --file ./resumes/maria-silva.pdf
//	hrgraph ingest --dir ./resumes --force
//	hrgraph ask --q "Quem tem mais de 3 anos de Python?" --mode hybrid --k 5
//	hrgraph documents
//
// Configuration comes from --config (YAML), a local .env file, and
// environment variables, in increasing order of precedence.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/talentbase/hrgraph"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "ingest":
		err = runIngest(args)
	case "ask":
		err = runAsk(args)
	case "init-index":
		err = runInitIndex(args)
	case "documents":
		err = runDocuments(args)
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: hrgraph <command> [flags]

Commands:
  init-index   create the vector and full-text indexes in Neo4j
  ingest       ingest one file (--file) or a directory (--dir)
  ask          answer a question over the candidate graph
  documents    list ingested documents and their status`)
}

// newEngine loads configuration, sets up logging, and connects.
func newEngine(ctx context.Context, configPath string, verbose bool) (hrgraph.Engine, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	cfg, err := hrgraph.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return hrgraph.New(ctx, cfg)
}

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	file := fs.String("file", "", "Path to a single document")
	dir := fs.String("dir", "", "Path to a directory of documents")
	force := fs.Bool("force", false, "Re-ingest even if the document is unchanged")
	verbose := fs.Bool("v", false, "Debug logging")
	fs.Parse(args)

	if (*file == "") == (*dir == "") {
		return fmt.Errorf("exactly one of --file or --dir is required")
	}

	ctx := context.Background()
	engine, err := newEngine(ctx, *configPath, *verbose)
	if err != nil {
		return err
	}
	defer engine.Close(ctx)

	var opts []hrgraph.IngestOption
	if *force {
		opts = append(opts, hrgraph.WithForce())
	}

	if *file != "" {
		if err := engine.Ingest(ctx, *file, opts...); err != nil {
			return err
		}
		fmt.Printf("ingested %s\n", *file)
		return nil
	}

	result, err := engine.IngestDir(ctx, *dir, opts...)
	if err != nil {
		return err
	}
	fmt.Printf("run %s: %d succeeded, %d failed\n", result.RunID, result.Succeeded, result.Failed)
	for path, ferr := range result.Errors {
		fmt.Printf("  failed: %s: %v\n", path, ferr)
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d document(s) failed", result.Failed)
	}
	return nil
}

func runAsk(args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	question := fs.String("q", "", "Question to answer")
	mode := fs.String("mode", "hybrid", "Retrieval mode: vector or hybrid")
	topK := fs.Int("k", 0, "Number of chunks to retrieve (0 = configured default)")
	showSources := fs.Bool("sources", false, "Print retrieved sources after the answer")
	verbose := fs.Bool("v", false, "Debug logging")
	fs.Parse(args)

	if *question == "" {
		return fmt.Errorf("--q is required")
	}

	ctx := context.Background()
	engine, err := newEngine(ctx, *configPath, *verbose)
	if err != nil {
		return err
	}
	defer engine.Close(ctx)

	opts := []hrgraph.AskOption{hrgraph.WithMode(hrgraph.Mode(*mode))}
	if *topK > 0 {
		opts = append(opts, hrgraph.WithTopK(*topK))
	}

	answer, err := engine.Ask(ctx, *question, opts...)
	if err != nil {
		return err
	}

	fmt.Println(answer.Text)
	if *showSources {
		fmt.Println()
		for i, src := range answer.Sources {
			name := src.Candidate
			if name == "" {
				name = "(no candidate)"
			}
			fmt.Printf("[%d] %s (score %.4f)\n", i+1, name, src.Score)
		}
	}
	return nil
}

func runInitIndex(args []string) error {
	fs := flag.NewFlagSet("init-index", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	verbose := fs.Bool("v", false, "Debug logging")
	fs.Parse(args)

	ctx := context.Background()
	engine, err := newEngine(ctx, *configPath, *verbose)
	if err != nil {
		return err
	}
	defer engine.Close(ctx)

	if err := engine.InitIndexes(ctx); err != nil {
		return err
	}
	fmt.Println("indexes ready")
	return nil
}

func runDocuments(args []string) error {
	fs := flag.NewFlagSet("documents", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	asJSON := fs.Bool("json", false, "Emit JSON instead of a table")
	verbose := fs.Bool("v", false, "Debug logging")
	fs.Parse(args)

	ctx := context.Background()
	engine, err := newEngine(ctx, *configPath, *verbose)
	if err != nil {
		return err
	}
	defer engine.Close(ctx)

	docs, err := engine.ListDocuments(ctx)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(docs)
	}

	for _, doc := range docs {
		line := fmt.Sprintf("%-10s %4d chunks  %s", doc.Status, doc.ChunkCount, doc.Filename)
		if doc.Status == "error" && doc.Error != "" {
			line += "  (" + doc.Error + ")"
		}
		fmt.Println(line)
	}
	return nil
}
