package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zombor/invoice-checker/internal/checker"
	"github.com/zombor/invoice-checker/internal/metrics"
	"github.com/zombor/invoice-checker/internal/scanning"
	"github.com/zombor/invoice-checker/internal/source"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// config holds the server settings from flags and INVOICE_CHECKER_* env vars
type config struct {
	port            int
	dbPath          string
	scannerType     string
	geminiKey       string
	geminiModel     string
	ollamaURL       string
	ollamaModel     string
	cloudURL        string
	einvoiceURL     string
	einvoiceAppID   string
	refreshInterval time.Duration
	authUser        string
	authPass        string
	showVersion     bool
}

// parseConfig parses args, the usage text is returned alongside a parse error
func parseConfig(args []string) (*config, string, error) {
	fs := ff.NewFlagSet("invoice-checker")
	var (
		port            = fs.IntLong("port", 8080, "HTTP server port")
		dbPath          = fs.StringLong("db", "invoice-checker.db", "Database file path")
		scannerType     = fs.StringLong("scanner", "none", "Invoice scanner: 'gemini', 'ollama' or 'none'")
		geminiKey       = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel     = fs.StringLong("gemini-model", scanning.DefaultGeminiModel, "Google Gemini model name")
		ollamaURL       = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel     = fs.StringLong("ollama-model", "llava", "Ollama vision model name")
		cloudURL        = fs.StringLong("cloud-url", source.DefaultCloudURL, "Published winning-number list URL")
		einvoiceURL     = fs.StringLong("einvoice-url", source.DefaultEInvoiceURL, "Official e-invoice API URL")
		einvoiceAppID   = fs.StringLong("einvoice-app-id", "", "e-invoice platform app ID, enables the official API fallback")
		refreshInterval = fs.DurationLong("refresh-interval", 6*time.Hour, "How often to refresh winning numbers (0 disables)")
		authUser        = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass        = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion     = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix("INVOICE_CHECKER"),
	); err != nil {
		return nil, ffhelp.Flags(fs).String(), err
	}

	return &config{
		port:            *port,
		dbPath:          *dbPath,
		scannerType:     *scannerType,
		geminiKey:       *geminiKey,
		geminiModel:     *geminiModel,
		ollamaURL:       *ollamaURL,
		ollamaModel:     *ollamaModel,
		cloudURL:        *cloudURL,
		einvoiceURL:     *einvoiceURL,
		einvoiceAppID:   *einvoiceAppID,
		refreshInterval: *refreshInterval,
		authUser:        *authUser,
		authPass:        *authPass,
		showVersion:     *showVersion,
	}, "", nil
}

func main() {
	cfg, usage, err := parseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", usage)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if cfg.showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	slog.Info("Initializing database...")
	db, err := checker.NewBoltDB(cfg.dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	scanner, err := newScanner(cfg.scannerType, cfg.geminiKey, cfg.geminiModel, cfg.ollamaURL, cfg.ollamaModel)
	if err != nil {
		slog.Error("Failed to initialize scanner", "type", cfg.scannerType, "error", err)
		os.Exit(1)
	}
	if scanner != nil {
		defer scanner.Close()
	}

	sources := checker.Sources{Cloud: source.NewCloudClient(cfg.cloudURL)}
	if cfg.einvoiceAppID != "" {
		official, err := source.NewEInvoiceClient(cfg.einvoiceURL, cfg.einvoiceAppID)
		if err != nil {
			slog.Error("Failed to initialize e-invoice client", "error", err)
			os.Exit(1)
		}
		sources.Official = official
	}

	service := checker.NewService(db, scanner, sources, checker.LogNotifier{})
	if err := service.Load(); err != nil {
		slog.Error("Failed to load winning numbers", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.refreshInterval > 0 {
		go refreshLoop(ctx, service, cfg.refreshInterval)
	}

	server := checker.NewServer(service, checker.BasicAuth{
		Username: cfg.authUser,
		Password: cfg.authPass,
	})
	addr := fmt.Sprintf(":%d", cfg.port)
	httpServer := &http.Server{Addr: addr, Handler: server.Handler()}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if cfg.authUser != "" || cfg.authPass != "" {
		slog.Info("Basic auth enabled", "user", cfg.authUser)
	}

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}
}

// newScanner returns nil for "none" so the service reports OCR as unavailable
func newScanner(kind, geminiKey, geminiModel, ollamaURL, ollamaModel string) (scanning.Scanner, error) {
	switch kind {
	case "none", "":
		return nil, nil
	case "gemini":
		if geminiKey == "" {
			geminiKey = os.Getenv("GEMINI_API_KEY")
		}
		if geminiKey == "" {
			return nil, errors.New("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", geminiModel)
		return scanning.NewGemini(geminiKey, geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", ollamaURL, "model", ollamaModel)
		return scanning.NewOllama(ollamaURL, ollamaModel)
	default:
		return nil, fmt.Errorf("invalid scanner type %q (valid: gemini, ollama, none)", kind)
	}
}

// refreshLoop pulls winning numbers at startup and then on every tick
func refreshLoop(ctx context.Context, service *checker.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if outcome, err := service.Refresh(ctx); err != nil {
			slog.Warn("Background refresh failed", "error", err)
		} else {
			slog.Info("Background refresh done", "source", outcome.Source, "latest", outcome.Latest, "updated", outcome.Updated)
			if winners, err := service.PendingAlerts(); err == nil && len(winners) > 0 {
				slog.Info("Pending receipts need attention", "count", len(winners))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
