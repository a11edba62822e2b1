// braingraph is the command-line front end of the memory engine.
//
// Subcommands:
//
//	init-db     create or migrate the configured store schema
//	ingest      read a JSON event batch from a file or stdin and store it
//	ask         answer a question grounded on stored memory
//	retrieve    assemble a context pack for a query
//	housekeep   recompute lifecycle scores, optionally consolidate
//	plan        check a proposed plan against negative signals
//	export      print a bounded graph snapshot as JSON
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/braingraph/braingraph/pkg/brain"
	"github.com/braingraph/braingraph/pkg/config"
	"github.com/braingraph/braingraph/pkg/enrich"
	"github.com/braingraph/braingraph/pkg/retrieve"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "braingraph:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: braingraph <init-db|ingest|ask|retrieve|housekeep|plan|export> [flags]")
}

func run(command string, args []string) error {
	settings, err := config.Load()
	if err != nil {
		return err
	}
	logger := config.NewLogger(settings)

	ctx := context.Background()
	graph, err := config.NewStore(ctx, settings)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer graph.Close()

	client, err := config.NewLLM(settings)
	if err != nil {
		return err
	}

	b, err := brain.New(brain.Config{
		Store:   graph,
		LLM:     client,
		Logger:  logger,
		Metrics: config.NewCollector(settings),
		Models: retrieve.ModelTable{
			Cheap:   settings.ModelCheap,
			Default: settings.ModelDefault,
			Premium: settings.ModelPremium,
		},
	})
	if err != nil {
		return err
	}

	switch command {
	case "init-db":
		return runInitDB(ctx, b)
	case "ingest":
		return runIngest(ctx, b, args)
	case "ask":
		return runAsk(ctx, b, args)
	case "retrieve":
		return runRetrieve(ctx, b, args)
	case "housekeep":
		return runHousekeep(ctx, b, args)
	case "plan":
		return runPlan(ctx, b, args)
	case "export":
		return runExport(ctx, b, args, settings.ExportNodeLimit)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func runInitDB(ctx context.Context, b *brain.Brain) error {
	if err := b.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	fmt.Println("schema ready")
	return nil
}

func runIngest(ctx context.Context, b *brain.Brain, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	file := fs.String("file", "-", "JSON event batch file, - for stdin")
	fs.Parse(args)

	data, err := readInput(*file)
	if err != nil {
		return err
	}
	var events []enrich.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return fmt.Errorf("failed to parse event batch: %w", err)
	}

	report, err := b.Ingest(ctx, events)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runAsk(ctx context.Context, b *brain.Brain, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	fs.Parse(args)
	question := joinArgs(fs.Args())
	if question == "" {
		return fmt.Errorf("usage: braingraph ask <question>")
	}

	result, err := b.Ask(ctx, question)
	if err != nil {
		return err
	}
	fmt.Println(result.Answer)
	fmt.Println()
	fmt.Println("Judge:", result.Judgement)
	return nil
}

func runRetrieve(ctx context.Context, b *brain.Brain, args []string) error {
	fs := flag.NewFlagSet("retrieve", flag.ExitOnError)
	currentFile := fs.String("current-file", "", "anchor file for import-graph traversal")
	mode := fs.String("mode", "", "fast, balanced, or thorough")
	priority := fs.String("priority", "", "quality or cheap")
	fs.Parse(args)
	query := joinArgs(fs.Args())
	if query == "" {
		return fmt.Errorf("usage: braingraph retrieve [flags] <query>")
	}

	result, err := b.Retrieve(ctx, retrieve.Request{
		Query:       query,
		CurrentFile: *currentFile,
		Mode:        retrieve.Mode(*mode),
		Priority:    retrieve.Priority(*priority),
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runHousekeep(ctx context.Context, b *brain.Brain, args []string) error {
	fs := flag.NewFlagSet("housekeep", flag.ExitOnError)
	consolidate := fs.Bool("consolidate", false, "merge archived clusters into summaries")
	fs.Parse(args)

	report, err := b.Housekeep(ctx, *consolidate)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runPlan(ctx context.Context, b *brain.Brain, args []string) error {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	file := fs.String("file", "", "plan text file, - for stdin")
	fs.Parse(args)

	var plan string
	if *file != "" {
		data, err := readInput(*file)
		if err != nil {
			return err
		}
		plan = string(data)
	} else {
		plan = joinArgs(fs.Args())
	}
	if plan == "" {
		return fmt.Errorf("usage: braingraph plan [-file plan.txt] <plan text>")
	}

	warnings, err := b.CheckPlan(ctx, plan)
	if err != nil {
		return err
	}
	if len(warnings) == 0 {
		fmt.Println("no warnings")
		return nil
	}
	return printJSON(warnings)
}

func runExport(ctx context.Context, b *brain.Brain, args []string, defaultLimit int) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	limit := fs.Int("limit", defaultLimit, "maximum nodes to export")
	fs.Parse(args)

	export, err := b.Export(ctx, *limit)
	if err != nil {
		return err
	}
	return printJSON(export)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
