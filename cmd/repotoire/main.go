// Command repotoire is a thin CLI over the engine: hybrid search, grounded
// Q&A, graph traversal, and fix generation against an indexed code graph.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/repotoire/repotoire"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		usage()
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := repotoire.New(repotoire.WithLogger(logger))
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer func() { _ = client.Close(context.Background()) }()

	if err := dispatch(ctx, client, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		return 1
	}
	return 0
}

func dispatch(ctx context.Context, client *repotoire.Client, command string, args []string) error {
	switch command {
	case "search":
		return runSearch(ctx, client, args)
	case "ask":
		return runAsk(ctx, client, args)
	case "traverse":
		return runTraverse(ctx, client, args)
	case "fix":
		return runFix(ctx, client, args)
	case "stats":
		return printJSONResult(client.Stats(ctx))
	case "health":
		if err := client.Healthy(ctx); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func runSearch(ctx context.Context, client *repotoire.Client, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	topK := fs.Int("top-k", 10, "number of results")
	kinds := fs.String("kinds", "", "comma-separated entity kinds (function,class,file)")
	related := fs.Bool("related", true, "attach one-hop graph relationships")
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("search: query required")
	}

	results, err := client.Search(ctx, strings.Join(fs.Args(), " "), *topK, splitList(*kinds), *related)
	if err != nil {
		return err
	}
	return printJSON(results)
}

func runAsk(ctx context.Context, client *repotoire.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("ask: question required")
	}
	answer, err := client.Ask(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Println(answer.Answer)
	for _, f := range answer.FollowUps {
		fmt.Println("  ?", f)
	}
	for _, src := range answer.Sources {
		fmt.Printf("  - %s (%s:%d-%d)\n", src.QualifiedName, src.FilePath, src.LineStart, src.LineEnd)
	}
	return nil
}

func runTraverse(ctx context.Context, client *repotoire.Client, args []string) error {
	fs := flag.NewFlagSet("traverse", flag.ExitOnError)
	edges := fs.String("edges", "", "comma-separated edge types (CALLS,USES,...)")
	maxHops := fs.Int("max-hops", 2, "traversal depth")
	limit := fs.Int("limit", 50, "maximum results")
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("traverse: start qualified name required")
	}

	results, err := client.Traverse(ctx, fs.Arg(0), splitList(*edges), *maxHops, *limit)
	if err != nil {
		return err
	}
	return printJSON(results)
}

func runFix(ctx context.Context, client *repotoire.Client, args []string) error {
	fs := flag.NewFlagSet("fix", flag.ExitOnError)
	fixType := fs.String("type", "refactor", "fix type (security, simplify, refactor, ...)")
	file := fs.String("file", "", "affected file path")
	repo := fs.String("repo", "", "repository name for decision-history scoping")
	customer := fs.String("customer", "local", "customer ID for entitlement lookup")
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("fix: finding description required")
	}

	fix, err := client.GenerateFix(ctx, repotoire.Finding{
		Description: strings.Join(fs.Args(), " "),
		FixType:     *fixType,
		FilePath:    *file,
		Repository:  *repo,
	}, *customer)
	if err != nil {
		return err
	}
	return printJSON(fix)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printJSONResult[T any](v T, err error) error {
	if err != nil {
		return err
	}
	return printJSON(v)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: repotoire <command> [flags] [args]

commands:
  search   [-top-k N] [-kinds k1,k2] [-related=false] <query>
                                                  hybrid code search
  ask      <question>                             grounded Q&A over the graph
  traverse [-edges E1,E2] [-max-hops N] <qname>   graph traversal from an entity
  fix      [-type T] [-file F] <finding>          generate a verified fix
  stats                                           graph and cache statistics
  health                                          probe the graph backend`)
}
