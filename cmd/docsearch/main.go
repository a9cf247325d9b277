// Command docsearch builds and queries hybrid document search indexes.
//
// A build ingests documents (text, Markdown, HTML, PDF, Office formats, RTF)
// into either a portable .swsearch SQLite file or a pgvector collection.
// Searches fuse vector similarity with keyword relevance over that index.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"docsearch/internal/builder"
	"docsearch/internal/capability"
	"docsearch/internal/config"
	"docsearch/internal/embedding"
	"docsearch/internal/errlog"
	"docsearch/internal/search"
	"docsearch/internal/store"
	"docsearch/internal/watcher"
)

func main() {
	// .env is optional; environment wins for secrets.
	godotenv.Load()

	logDir := os.Getenv("DOCSEARCH_LOG_DIR")
	if logDir == "" {
		logDir = "."
	}
	if err := errlog.Init(logDir); err != nil {
		log.Printf("[WARN] error log unavailable: %v", err)
	}
	defer errlog.Close()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "build":
		runBuild(os.Args[2:], false)
	case "watch":
		runBuild(os.Args[2:], true)
	case "search":
		runSearch(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "stats":
		runStats(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func fatal(err error) {
	errlog.Logf("%v", err)
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

// buildFlags parses the flags shared by build and watch.
func buildFlags(name string, args []string) config.BuildConfig {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", "", "build config file (JSON or YAML)")
	output := fs.String("output", "", ".swsearch path (sqlite) or collection name (pgvector)")
	backend := fs.String("backend", "", "storage backend: sqlite or pgvector")
	conn := fs.String("conn", "", "Postgres connection string (pgvector)")
	overwrite := fs.Bool("overwrite", false, "rebuild the index from scratch")
	strategy := fs.String("strategy", "", "chunking strategy: sentence, sliding, paragraph, page, semantic, topic, qa")
	fileTypes := fs.String("types", "", "comma-separated file types to ingest")
	exclude := fs.String("exclude", "", "comma-separated filename patterns to skip")
	tags := fs.String("tags", "", "comma-separated tags attached to every chunk")
	validate := fs.Bool("validate", false, "validate the index after building")
	verbose := fs.Bool("verbose", false, "log per-file progress")
	fs.Parse(args)

	var cfg config.BuildConfig
	var err error
	if *configPath != "" {
		cfg, err = config.LoadBuildConfig(*configPath)
		if err != nil {
			fatal(err)
		}
	} else {
		cfg = config.DefaultBuildConfig()
	}

	cfg.Sources = append(cfg.Sources, fs.Args()...)
	if *output != "" {
		cfg.Output = *output
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *conn != "" {
		cfg.ConnString = *conn
	}
	if *strategy != "" {
		cfg.Chunking.Strategy = *strategy
	}
	if *fileTypes != "" {
		cfg.FileTypes = splitList(*fileTypes)
	}
	if *exclude != "" {
		cfg.Exclude = splitList(*exclude)
	}
	if *tags != "" {
		cfg.Tags = splitList(*tags)
	}
	cfg.Overwrite = cfg.Overwrite || *overwrite
	cfg.Validate = cfg.Validate || *validate
	cfg.Verbose = cfg.Verbose || *verbose

	if cfg.Output == "" {
		fatal(fmt.Errorf("no output target (use -output or a config file)"))
	}
	if len(cfg.Sources) == 0 {
		fatal(builder.ErrNoSources)
	}
	return cfg
}

func runBuild(args []string, watch bool) {
	cfg := buildFlags("build", args)

	// Rebuilds construct a fresh Builder so watch mode picks up the forced
	// overwrite below.
	rebuild := func() {
		b, err := builder.New(cfg)
		if err == nil {
			var summary *builder.Summary
			summary, err = b.Build()
			if err == nil {
				log.Printf("[BUILD] %d files (%d skipped), %d chunks, %d stored in %s",
					summary.Files, summary.SkippedFiles, summary.Chunks, summary.Inserted,
					summary.Duration.Round(1e6))
				if summary.Validation != nil && !summary.Validation.OK() {
					for _, f := range summary.Validation.Findings {
						fmt.Fprintln(os.Stderr, "validation:", f)
					}
				}
				return
			}
		}
		errlog.Logf("build failed: %v", err)
		fmt.Fprintln(os.Stderr, "build failed:", err)
		if !watch {
			os.Exit(1)
		}
	}
	// The first build honors the requested overwrite; rebuilds always replace.
	rebuild()
	if !watch {
		return
	}
	cfg.Overwrite = true

	w, err := watcher.New(cfg.FileTypes)
	if err != nil {
		fatal(err)
	}
	defer w.Close()
	for _, src := range cfg.Sources {
		if err := w.Add(src); err != nil {
			fatal(fmt.Errorf("watch %s: %w", src, err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Printf("[WATCH] monitoring %s", strings.Join(cfg.Sources, ", "))
	w.Run(ctx, rebuild)
}

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", "", "search config file (JSON or YAML)")
	index := fs.String("index", "", ".swsearch path (sqlite) or collection name (pgvector)")
	backend := fs.String("backend", "", "storage backend: sqlite or pgvector")
	conn := fs.String("conn", "", "Postgres connection string (pgvector)")
	count := fs.Int("count", 0, "number of results")
	threshold := fs.Float64("threshold", 0, "minimum fused score a result must reach")
	tags := fs.String("tags", "", "comma-separated tag filter (match any)")
	lang := fs.String("lang", "", "query language (auto, en, es)")
	asJSON := fs.Bool("json", false, "emit results as JSON")
	fs.Parse(args)

	var cfg config.SearchConfig
	var err error
	if *configPath != "" {
		cfg, err = config.LoadSearchConfig(*configPath)
		if err != nil {
			fatal(err)
		}
	} else {
		cfg = config.DefaultSearchConfig()
	}
	if *index != "" {
		cfg.Target = *index
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *conn != "" {
		cfg.ConnString = *conn
	}
	if *count > 0 {
		cfg.Count = *count
	}
	if *threshold > 0 {
		cfg.DistanceThreshold = *threshold
	}
	if *tags != "" {
		cfg.Tags = splitList(*tags)
	}
	if *lang != "" {
		cfg.Language = *lang
	}

	queryText := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if cfg.Target == "" || queryText == "" {
		fatal(fmt.Errorf("usage: docsearch search -index <target> <query>"))
	}

	st, err := store.Open(cfg.Backend, cfg.Target, cfg.ConnString)
	if err != nil {
		fatal(err)
	}
	defer st.Close()

	// Lazy so keyword-only searches need no embedding credentials.
	emb := embedding.NewLazy(func() (embedding.Embedder, error) {
		return embedding.ForConfig(cfg.Embedding)
	})

	engine := search.New(st, emb, capability.Detect())
	results, err := engine.Search(search.Query{
		Text:              queryText,
		Count:             cfg.Count,
		DistanceThreshold: cfg.DistanceThreshold,
		Tags:              cfg.Tags,
		Language:          cfg.Language,
	})
	if err != nil {
		fatal(err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			fatal(err)
		}
		return
	}
	if len(results) == 0 {
		fmt.Println("no results")
		return
	}
	for i, r := range results {
		fmt.Printf("%d. [%.4f] %s", i+1, r.Score, r.Filename)
		if r.Section != "" {
			fmt.Printf(" (%s)", r.Section)
		}
		fmt.Println()
		fmt.Println(indent(snippet(r.Content, 300), "   "))
	}
}

func runValidate(args []string) {
	backend, target, conn := targetFlags("validate", args)
	report, err := builder.Validate(backend, target, conn)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("chunks: %d\n", report.ChunkCount)
	if report.OK() {
		fmt.Println("index is valid")
		return
	}
	for _, f := range report.Findings {
		fmt.Println(f)
	}
	os.Exit(1)
}

func runStats(args []string) {
	backend, target, conn := targetFlags("stats", args)
	st, err := store.Open(backend, target, conn)
	if err != nil {
		fatal(err)
	}
	defer st.Close()
	stats, err := st.Stats()
	if err != nil {
		fatal(err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		fatal(err)
	}
}

// targetFlags parses the flags shared by validate and stats; the target may
// be given positionally or with -index.
func targetFlags(name string, args []string) (backend, target, conn string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	index := fs.String("index", "", ".swsearch path (sqlite) or collection name (pgvector)")
	backendFlag := fs.String("backend", config.BackendSQLite, "storage backend: sqlite or pgvector")
	connFlag := fs.String("conn", "", "Postgres connection string (pgvector)")
	fs.Parse(args)
	target = *index
	if target == "" && fs.NArg() > 0 {
		target = fs.Arg(0)
	}
	if target == "" {
		fatal(fmt.Errorf("usage: docsearch %s <target>", name))
	}
	return *backendFlag, target, *connFlag
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func snippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}

func printUsage() {
	fmt.Println(`usage:
  docsearch build [flags] <source> [...]     build an index from documents
  docsearch watch [flags] <source> [...]     build, then rebuild on changes
  docsearch search [flags] <query>           query an index
  docsearch validate [flags] <target>        check index integrity
  docsearch stats [flags] <target>           show index statistics
  docsearch help                             show this help

build flags:
  -output <path|name>   .swsearch file (sqlite) or collection name (pgvector)
  -backend <name>       sqlite (default) or pgvector
  -conn <string>        Postgres connection string (or DOCSEARCH_PG_CONN)
  -config <file>        JSON or YAML build config
  -strategy <name>      sentence, sliding, paragraph, page, semantic, topic, qa
  -types <list>         file types to ingest (default txt,md,pdf,docx,html,rtf,xlsx,pptx)
  -exclude <list>       filename patterns to skip
  -tags <list>          tags attached to every chunk
  -overwrite            replace an existing index
  -validate             validate after building
  -verbose              log per-file progress

search flags:
  -index <path|name>    index to query
  -count <n>            number of results (default 5)
  -threshold <d>        minimum fused score a result must reach
  -tags <list>          only return chunks carrying one of these tags
  -lang <code>          query language (default auto)
  -json                 emit JSON

examples:
  docsearch build -output docs.swsearch ./docs
  docsearch build -backend pgvector -output manuals -tags v2 ./manuals
  docsearch search -index docs.swsearch how do I install the agent
  docsearch watch -output docs.swsearch ./docs`)
}
