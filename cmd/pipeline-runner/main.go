// cmd/pipeline-runner/main.go
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rag-pipelines/internal/common/config"
	"rag-pipelines/internal/common/embeddings"
	"rag-pipelines/internal/common/genai"
	"rag-pipelines/internal/common/logger"
	"rag-pipelines/internal/common/observability"
	"rag-pipelines/internal/common/tracking"
	"rag-pipelines/internal/common/vectorindex"
	"rag-pipelines/internal/kb"
	kbqapipeline "rag-pipelines/internal/pipeline/kbqa"
	sentimentpipeline "rag-pipelines/internal/pipeline/sentiment"
	critiqueanswer "rag-pipelines/internal/stages/kbqa/critique-answer"
	generateanswer "rag-pipelines/internal/stages/kbqa/generate-answer"
	retrievesnippets "rag-pipelines/internal/stages/kbqa/retrieve-snippets"
	analyzesentiment "rag-pipelines/internal/stages/sentiment/analyze-sentiment"
	fetchnews "rag-pipelines/internal/stages/sentiment/fetch-news"
	resolveticker "rag-pipelines/internal/stages/sentiment/resolve-ticker"
)

// Sample queries exercised by the qa battery.
var sampleQueries = []string{
	"What are best practices for caching?",
	"How should I set up CI/CD pipelines?",
	"What are performance tuning tips?",
	"How do I version my APIs?",
	"What should I consider for error handling?",
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	zapLog := logger.New("info", "console")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("pipeline-runner")
	defer obs.Shutdown()

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Address, zapLog)
	}

	app, err := buildApp(cfg, obs, log)
	if err != nil {
		zapLog.Fatal("initialization failed", zap.Error(err))
	}
	defer app.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch os.Args[1] {
	case "qa":
		os.Exit(runQA(ctx, app, os.Args[2:]))
	case "sentiment":
		os.Exit(runSentiment(ctx, app, os.Args[2:]))
	case "index":
		os.Exit(runIndex(ctx, app))
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: pipeline-runner <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  qa         answer the sample query battery, or -query for a single question")
	fmt.Fprintln(os.Stderr, "  sentiment  produce a news sentiment report for a company")
	fmt.Fprintln(os.Stderr, "  index      embed the knowledge base and upsert it into the vector index")
}

// app holds the wired collaborators shared by the subcommands.
type app struct {
	cfg        *config.Config
	log        logger.Logger
	corpus     *kb.Corpus
	embedder   *embeddings.Client
	store      vectorindex.Store
	kbqa       *kbqapipeline.Pipeline
	kbqaRunLog *kbqapipeline.RunLogger
	sentiment  *sentimentpipeline.Pipeline
	closers    []func() error
}

func buildApp(cfg *config.Config, obs *observability.Observability, log logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	corpus, err := kb.Load(cfg.KB.Path)
	if err != nil {
		return nil, err
	}
	a.corpus = corpus

	var cache *redis.Client
	if cfg.Cache.Enabled {
		cache = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Address,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		a.closers = append(a.closers, cache.Close)
	}

	llm := genai.NewClient(cfg.GenAI, log)
	a.embedder = embeddings.NewClient(cfg.GenAI, cache, time.Duration(cfg.Cache.TTL)*time.Second, log)

	switch cfg.VectorIndex.Backend {
	case "postgres":
		db, err := vectorindex.Open(cfg.VectorIndex.Postgres.GetDSN())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.store = vectorindex.NewPostgresStore(db, cfg.VectorIndex.Postgres.Table, log)
	default:
		a.store = vectorindex.NewHTTPStore(cfg.VectorIndex.HTTP, log)
	}

	var tracker *tracking.Client
	if cfg.Tracking.Enabled {
		tracker = tracking.NewClient(cfg.Tracking, log)
	}

	retriever := retrievesnippets.NewHandler(
		&retrievesnippets.Config{TopK: cfg.Pipelines.KBQA.InitialK},
		a.embedder, a.store, corpus, log,
	)
	generator := generateanswer.NewHandler(generateanswer.LoadConfig(), llm, log)
	critic := critiqueanswer.NewHandler(critiqueanswer.LoadConfig(), llm, log)

	a.kbqaRunLog = kbqapipeline.NewRunLogger(trackerOrNil(tracker), log)
	a.kbqa = kbqapipeline.New(
		&kbqapipeline.Config{
			InitialK: cfg.Pipelines.KBQA.InitialK,
			ExtraK:   cfg.Pipelines.KBQA.ExtraK,
		},
		retriever, generator, critic,
		a.kbqaRunLog,
		obs, log,
	)

	resolver := resolveticker.NewHandler(resolveticker.LoadConfig(), llm, log)
	fetcher := fetchnews.NewHandler(&fetchnews.Config{
		BaseURL:      cfg.News.BaseURL,
		APIKey:       cfg.News.APIKey,
		MaxResults:   cfg.News.MaxResults,
		LookbackDays: cfg.Pipelines.Sentiment.NewsLookbackDays,
		Timeout:      time.Duration(cfg.News.Timeout) * time.Millisecond,
	}, log)
	analyzer, err := analyzesentiment.NewHandler(analyzesentiment.LoadConfig(), llm, log)
	if err != nil {
		return nil, err
	}

	a.sentiment = sentimentpipeline.New(
		resolver, fetcher, analyzer,
		sentimentpipeline.NewRunLogger(sentimentTrackerOrNil(tracker), log),
		obs, log,
	)

	return a, nil
}

// trackerOrNil keeps the pipeline's Tracker interface nil when tracking
// is disabled, instead of a typed-nil *tracking.Client.
func trackerOrNil(t *tracking.Client) kbqapipeline.Tracker {
	if t == nil {
		return nil
	}
	return t
}

func sentimentTrackerOrNil(t *tracking.Client) sentimentpipeline.Tracker {
	if t == nil {
		return nil
	}
	return t
}

func (a *app) Close() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			a.log.Warn("close failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// ==========================
// qa subcommand
// ==========================

func runQA(ctx context.Context, a *app, args []string) int {
	fs := flag.NewFlagSet("qa", flag.ExitOnError)
	singleQuery := fs.String("query", "", "run one question instead of the sample battery")
	fs.Parse(args)

	queries := sampleQueries
	if *singleQuery != "" {
		queries = []string{*singleQuery}
	}

	var (
		failures    int
		refinements int
		scoreSum    float64
		scoreCount  int
	)

	for i, query := range queries {
		fmt.Printf("\n[%d/%d] %s\n", i+1, len(queries), query)

		result, err := a.kbqa.Run(ctx, query)
		if err != nil {
			failures++
			fmt.Printf("  error: %v\n", err)
			continue
		}

		if result.RefinementNeeded {
			refinements++
		}
		for _, snippet := range result.Snippets {
			scoreSum += snippet.Score
			scoreCount++
		}

		fmt.Printf("  retrieved: %d  critique: %s  trace: %s\n", len(result.Snippets), result.CritiqueVerdict, result.Trace)
		fmt.Printf("  answer: %s\n", preview(result.FinalAnswer, 200))
		for _, annotation := range result.Annotations {
			fmt.Printf("  note: %s\n", annotation)
		}
	}

	// A battery gets a summary run; a single query does not.
	if *singleQuery == "" {
		summary := kbqapipeline.ExperimentSummary{
			TotalQueries:   len(queries),
			SuccessfulRuns: len(queries) - failures,
			RefinementRate: float64(refinements) / float64(len(queries)) * 100,
		}
		if scoreCount > 0 {
			summary.AvgRetrievalScore = scoreSum / float64(scoreCount)
		}
		a.kbqaRunLog.LogExperimentSummary(ctx, summary)

		fmt.Printf("\nprocessed %d queries, %d failed, refinement rate %.1f%%\n",
			len(queries), failures, summary.RefinementRate)
	}

	if failures > 0 {
		return 1
	}
	return 0
}

// ==========================
// sentiment subcommand
// ==========================

func runSentiment(ctx context.Context, a *app, args []string) int {
	company := strings.TrimSpace(strings.Join(args, " "))
	if company == "" {
		fmt.Print("Company name: ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			company = strings.TrimSpace(scanner.Text())
		}
	}
	if company == "" {
		fmt.Fprintln(os.Stderr, "a company name is required")
		return 2
	}

	result, err := a.sentiment.Run(ctx, company)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentiment run failed: %v\n", err)
		return 1
	}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
		return 1
	}
	fmt.Println(string(payload))
	return 0
}

// ==========================
// index subcommand
// ==========================

func runIndex(ctx context.Context, a *app) int {
	entries := a.corpus.Entries

	texts := make([]string, 0, len(entries))
	for _, entry := range entries {
		texts = append(texts, entry.EmbeddingText())
	}

	embedded, err := a.embedder.Embed(ctx, texts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "embed corpus: %v\n", err)
		return 1
	}

	vectors := make([]vectorindex.Vector, 0, len(entries))
	for i, entry := range entries {
		vectors = append(vectors, vectorindex.Vector{
			ID:     entry.DocID,
			Values: embedded[i],
			Metadata: map[string]string{
				"question":             entry.Question,
				"answer_snippet":       entry.AnswerSnippet,
				"source":               entry.Source,
				"confidence_indicator": entry.ConfidenceIndicator,
				"last_updated":         entry.LastUpdated,
			},
		})
	}

	if err := a.store.Upsert(ctx, vectors); err != nil {
		fmt.Fprintf(os.Stderr, "upsert vectors: %v\n", err)
		return 1
	}

	fmt.Printf("indexed %d knowledge base entries\n", len(vectors))
	return 0
}

func serveMetrics(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	log.Info("metrics server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server failed", zap.Error(err))
	}
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
