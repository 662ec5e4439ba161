package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/answergrader/internal/config"
	"github.com/pavelanni/answergrader/internal/evaluate"
	"github.com/pavelanni/answergrader/internal/handler"
	appI18n "github.com/pavelanni/answergrader/internal/i18n"
	"github.com/pavelanni/answergrader/internal/ingest"
	"github.com/pavelanni/answergrader/internal/llm"
	"github.com/pavelanni/answergrader/internal/llm/prompts"
	"github.com/pavelanni/answergrader/internal/model"
	"github.com/pavelanni/answergrader/internal/observability"
	"github.com/pavelanni/answergrader/internal/ocr"
	"github.com/pavelanni/answergrader/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "answergrader",
		Short: "Score exam answers against an answer key",
	}

	serve := serveCmd()
	root.AddCommand(serve, gradeCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `answergrader --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// addEvaluatorFlags registers the flags shared by serve and grade.
func addEvaluatorFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("evaluator", "statistical", "Answer evaluator (statistical, llm)")
	f.String("llm-provider", llm.ProviderOpenAI, "LLM provider (openai, gemini, ollama)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.Duration("llm-timeout", llm.DefaultTimeout, "Timeout for a single LLM call")
	f.Bool("llm-fallback", false, "Fall back to the statistical evaluator when the LLM is unavailable")
	f.String("prompt-variant", string(prompts.VariantStandard), "Grading prompt variant (strict, standard, lenient)")
	f.StringP("lang", "l", "en", "Report language (en, ru)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP grading server",
		RunE:  runServe,
	}
	addEvaluatorFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "answergrader.db", "SQLite database path")
	f.StringP("questions", "q", "", "Question paper JSON file imported at startup")
	f.StringP("answer-key", "k", "", "Answer key JSON file imported at startup")
	f.String("exam-id", "", "Exam identifier recorded for exports")
	f.String("subject", "", "Subject name recorded for exports")
	f.String("date", "", "Exam date (YYYY-MM-DD) recorded for exports")
	f.String("ocr", "tesseract", "OCR engine for scanned answer sheets (tesseract, gemini, none)")
	f.String("ocr-lang", "eng", "Tesseract language")
	f.String("ocr-key", "", "Gemini API key for OCR")
	f.String("ocr-model", "gemini-1.5-flash", "Gemini model for OCR")
	f.String("admin-password", "", "Admin password (or set ANSWERGRADER_ADMIN_PASSWORD)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export evaluation history as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "answergrader.db", "SQLite database path")
	f.String("exam-id", "", "Exam identifier for output (defaults to the stored value)")
	f.String("subject", "", "Subject name for output (defaults to the stored value)")
	f.String("date", "", "Exam date in YYYY-MM-DD format (defaults to the stored value)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("ANSWERGRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("answergrader")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/answergrader")
	v.AddConfigPath("/etc/answergrader")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// buildEvaluator creates the evaluator selected by --evaluator. An LLM
// evaluator is pinged before use.
func buildEvaluator(ctx context.Context, v *viper.Viper, g config.Grading) (evaluate.Evaluator, func(), error) {
	noop := func() {}
	statistical := evaluate.NewStatistical(g)

	switch strings.ToLower(v.GetString("evaluator")) {
	case "", "statistical":
		return statistical, noop, nil
	case "llm":
	default:
		return nil, noop, fmt.Errorf("unknown evaluator %q (want statistical or llm)", v.GetString("evaluator"))
	}

	variant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(variant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", variant)
		variant = string(prompts.VariantStandard)
	}

	completer, err := llm.NewCompleter(ctx,
		strings.ToLower(v.GetString("llm-provider")),
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
	)
	if err != nil {
		return nil, noop, fmt.Errorf("create LLM client: %w", err)
	}
	cleanup := noop
	if c, ok := completer.(io.Closer); ok {
		cleanup = func() { _ = c.Close() }
	}

	llmEval, err := llm.New(completer, prompts.Variant(variant), v.GetDuration("llm-timeout"))
	if err != nil {
		cleanup()
		return nil, noop, err
	}

	fallback := v.GetBool("llm-fallback")
	if err := llmEval.Ping(ctx); err != nil {
		if !fallback {
			cleanup()
			return nil, noop, fmt.Errorf("LLM health check: %w", err)
		}
		slog.Warn("LLM health check failed, answers will fall back to statistical scoring", "error", err)
	} else {
		slog.Info("LLM endpoint OK", "evaluator", llmEval.Name())
	}

	if fallback {
		return &evaluate.FallbackEvaluator{Primary: llmEval, Secondary: statistical}, cleanup, nil
	}
	return llmEval, cleanup, nil
}

// buildOCR creates the OCR engine selected by --ocr. It returns nil when OCR
// is disabled.
func buildOCR(ctx context.Context, v *viper.Viper) (ocr.Engine, error) {
	switch strings.ToLower(v.GetString("ocr")) {
	case "", "none":
		return nil, nil
	case "tesseract":
		t := ocr.NewTesseract()
		t.Lang = v.GetString("ocr-lang")
		if !t.Available() {
			slog.Warn("tesseract not found, scanned answer sheets are disabled", "binary", t.Binary)
		}
		return t, nil
	case "gemini":
		return ocr.NewGemini(ctx, v.GetString("ocr-key"), v.GetString("ocr-model"))
	default:
		return nil, fmt.Errorf("unknown OCR engine %q (want tesseract, gemini or none)", v.GetString("ocr"))
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open database.
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := saveExamInfo(db, v); err != nil {
		return fmt.Errorf("save exam info: %w", err)
	}

	if err := importFile(db, v.GetString("questions"), importQuestions); err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	if err := importFile(db, v.GetString("answer-key"), importAnswerKey); err != nil {
		return fmt.Errorf("load answer key: %w", err)
	}

	// Initialize i18n.
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	grading, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("load grading config: %w", err)
	}

	evaluator, cleanup, err := buildEvaluator(ctx, v, grading)
	if err != nil {
		return err
	}
	defer cleanup()

	engine, err := buildOCR(ctx, v)
	if err != nil {
		return fmt.Errorf("create OCR engine: %w", err)
	}
	if engine != nil {
		defer engine.Close()
	}

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	aligner := evaluate.NewAligner(evaluator, grading, evaluate.WithObserver(metrics))
	h := handler.New(db, aligner, engine, metrics)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	r.Handle("/metrics", promhttp.Handler())
	r.Group(func(r chi.Router) {
		r.Use(metrics.Middleware)
		h.Routes(r)
	})

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	ocrName := "none"
	if engine != nil {
		ocrName = engine.Name()
	}
	slog.Info("starting server",
		"addr", addr,
		"evaluator", aligner.EvaluatorName(),
		"ocr", ocrName,
		"lang", lang,
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.Export(model.ExamInfo{
		ExamID:  v.GetString("exam-id"),
		Subject: v.GetString("subject"),
		Date:    v.GetString("date"),
	})
	if err != nil {
		return fmt.Errorf("export evaluations: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	w, closeOut, err := openOutput(v.GetString("output"))
	if err != nil {
		return err
	}
	defer closeOut()

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	slog.Info("exported evaluations", "count", len(export.Results))
	return nil
}

// openOutput returns stdout for "" or "-", otherwise a created file.
func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func importQuestions(db *store.Store, data []byte) (int, error) {
	qs, err := ingest.LoadQuestions(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	return len(qs), db.ReplaceQuestions(qs)
}

func importAnswerKey(db *store.Store, data []byte) (int, error) {
	key, err := ingest.LoadAnswerKey(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	return len(key), db.ReplaceAnswerKey(key)
}

// importFile loads path into the store unless the same content was already
// imported from it.
func importFile(db *store.Store, path string, load func(*store.Store, []byte) (int, error)) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	hash := sha256sum(data)
	storedHash, err := db.GetImportedFileHash(path)
	if err != nil {
		return fmt.Errorf("check import status for %s: %w", path, err)
	}
	if storedHash == hash {
		slog.Info("file unchanged, skipping", "path", path)
		return nil
	}
	if storedHash != "" {
		slog.Info("file changed since last import, replacing", "path", path)
	}

	n, err := load(db, data)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	if err := db.SetImportedFileHash(path, hash); err != nil {
		return fmt.Errorf("record import for %s: %w", path, err)
	}
	slog.Info("imported file", "path", path, "count", n)
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// seedAdmin stores the admin password hash on first start. A password given
// later replaces the stored one.
func seedAdmin(db *store.Store, password string) error {
	existing, err := db.AdminPasswordHash()
	if err != nil {
		return err
	}
	if password == "" {
		if existing == "" {
			slog.Warn("no admin password set, upload and reset endpoints are disabled; set --admin-password or ANSWERGRADER_ADMIN_PASSWORD")
		}
		return nil
	}
	if existing != "" && bcrypt.CompareHashAndPassword([]byte(existing), []byte(password)) == nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if err := db.SetAdminPasswordHash(string(hash)); err != nil {
		return fmt.Errorf("store admin password: %w", err)
	}
	slog.Info("admin password set", "username", handler.AdminUser)
	return nil
}

func saveExamInfo(db *store.Store, v *viper.Viper) error {
	info := model.ExamInfo{
		ExamID:  v.GetString("exam-id"),
		Subject: v.GetString("subject"),
		Date:    v.GetString("date"),
	}
	if info == (model.ExamInfo{}) {
		return nil
	}
	return db.SetExamInfo(info)
}
