package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"smartxerox/internal/analytics"
	"smartxerox/internal/chat"
	"smartxerox/internal/config"
	"smartxerox/internal/dataset"
	"smartxerox/internal/embedding"
	"smartxerox/internal/explain"
	"smartxerox/internal/index"
	"smartxerox/internal/llm"
	"smartxerox/internal/logging"
	"smartxerox/internal/router"
	"smartxerox/internal/tui"
	"smartxerox/internal/vectorstore"
)

type options struct {
	configPath string
	dataPath   string
	question   string
	reindex    bool
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/smartxerox/config.yaml if not provided)")
	flag.StringVar(&opts.dataPath, "data", "", "Orders CSV file (overrides dataset.path and SMARTXEROX_DATA)")
	flag.StringVar(&opts.question, "q", "", "Answer a single question and exit")
	flag.BoolVar(&opts.reindex, "reindex", false, "Rebuild the vector index even if it is up to date")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, opts options) error {
	var cfg *config.AppConfig
	var err error
	if opts.configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(opts.configPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if p := os.Getenv("SMARTXEROX_DATA"); p != "" {
		cfg.Dataset.Path = p
	}
	if opts.dataPath != "" {
		cfg.Dataset.Path = opts.dataPath
	}

	// The TUI owns the terminal, so logs go to a file there.
	oneShot := strings.TrimSpace(opts.question) != ""
	var logOut io.Writer = os.Stderr
	if !oneShot {
		f, err := logging.OpenFile(cfg.Logger)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := logging.NewLogger(cfg.Logger, logOut)
	slog.SetDefault(logger)

	ds, err := dataset.LoadFile(cfg.Dataset.Path, logger)
	if err != nil {
		return err
	}
	engine := analytics.NewEngine(ds)
	ov := engine.Overview()
	logger.Info("dataset loaded",
		"path", ds.Source,
		"records", ov.Records,
		"first", ov.First.Format("2006-01-02"),
		"last", ov.Last.Format("2006-01-02"),
		"years", ov.Years)

	emb, err := embedding.New(cfg.Embedder)
	if err != nil {
		return fmt.Errorf("embedder init failed: %w", err)
	}
	store, err := vectorstore.New(cfg.VectorStore)
	if err != nil {
		return fmt.Errorf("vector store init failed: %w", err)
	}
	defer store.Close()

	idx := index.New(ds, emb, store, index.Options{
		Workers:  cfg.Retrieval.IngestWorkers,
		CacheTTL: time.Duration(cfg.Retrieval.CacheTTLMinutes) * time.Minute,
		Logger:   logger,
	})
	if _, err := idx.Build(ctx, opts.reindex); err != nil {
		return err
	}

	gen := llm.NewService(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	})
	orch := chat.New(router.NewClassifier(cfg.Years), engine, idx, explain.New(gen), chat.Options{
		TopK:     cfg.Retrieval.TopK,
		TopUsers: cfg.Chat.TopUsers,
		Currency: cfg.Chat.CurrencySymbol,
		Logger:   logger,
	})

	if oneShot {
		reply, err := orch.Handle(ctx, opts.question)
		fmt.Println(reply)
		return err
	}

	settings := tui.Settings{
		Model:       gen.Model(),
		Temperature: gen.Temperature(),
		Embedder:    emb.Name(),
		Store:       storeName(cfg.VectorStore.Type),
		Summary: fmt.Sprintf("%d orders from %s to %s · total revenue %s",
			ov.Records, ov.First.Format("2006-01-02"), ov.Last.Format("2006-01-02"),
			analytics.FormatMoney(cfg.Chat.CurrencySymbol, ov.TotalRevenue)),
	}
	m := tui.New(ctx, orch, settings)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func storeName(t string) string {
	if t == "" {
		return "memory"
	}
	return t
}
