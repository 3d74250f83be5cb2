// Command livevoice runs a live voice conversation from the terminal:
// microphone in, synthesised speech out, and for interview flows a
// post-session feedback report.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/herowayua/livevoice/internal/config"
	"github.com/herowayua/livevoice/internal/feedback"
	"github.com/herowayua/livevoice/internal/observe"
	"github.com/herowayua/livevoice/internal/session"
	"github.com/herowayua/livevoice/pkg/audio"
	"github.com/herowayua/livevoice/pkg/audio/capture"
	"github.com/herowayua/livevoice/pkg/provider/live"
	geminilive "github.com/herowayua/livevoice/pkg/provider/live/gemini"
	"github.com/herowayua/livevoice/pkg/provider/llm"
	"github.com/herowayua/livevoice/pkg/provider/llm/anyllm"
	openaillm "github.com/herowayua/livevoice/pkg/provider/llm/openai"
)

// version is stamped by the release build.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flowName := flag.String("flow", "", "name of the conversation flow to run (defaults to the only configured flow)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "livevoice: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "livevoice: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	flow, ok := pickFlow(cfg, *flowName)
	if !ok {
		fmt.Fprintf(os.Stderr, "livevoice: unknown flow %q — configured flows: %s\n",
			*flowName, strings.Join(flowNames(cfg), ", "))
		return 1
	}

	slog.Info("livevoice starting",
		"config", *configPath,
		"flow", flow.Name,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	liveProvider, err := buildLiveProvider(cfg.Providers.Live)
	if err != nil {
		slog.Error("failed to build live provider", "err", err)
		return 1
	}

	llmProvider, err := buildLLMProvider(cfg.Providers.LLM)
	if err != nil {
		slog.Error("failed to build llm provider", "err", err)
		return 1
	}

	printStartupSummary(cfg, flow)

	// ── Controller ────────────────────────────────────────────────────────────
	opts := []session.Option{
		session.WithCaptureFactory(func() *capture.Pipeline {
			var capOpts []capture.Option
			if cfg.Audio.BlockSize > 0 {
				capOpts = append(capOpts, capture.WithBlockSize(cfg.Audio.BlockSize))
			}
			if cfg.Audio.FrameBuffer > 0 {
				capOpts = append(capOpts, capture.WithFrameBuffer(cfg.Audio.FrameBuffer))
			}
			return capture.NewPipeline(capOpts...)
		}),
	}
	if llmProvider != nil {
		opts = append(opts, session.WithCoach(feedback.NewCoach(llmProvider)))
	}
	ctrl := session.New(liveProvider, flow, opts...)

	// ── Run ───────────────────────────────────────────────────────────────────
	g, ctx := errgroup.WithContext(ctx)

	if addr := cfg.Server.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			slog.Info("metrics endpoint listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer stop()
		return runSession(ctx, ctrl)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// runSession drives one conversation: start, wait for the user (or the
// agent's closing phrase) to end it, then print the transcript and any
// generated feedback.
func runSession(ctx context.Context, ctrl *session.Controller) error {
	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	defer ctrl.Cancel()

	fmt.Println()
	fmt.Println("Session live — speak into your microphone. Press Enter to end the session.")
	fmt.Println()

	enter := make(chan struct{})
	go func() {
		// Blocks until the user hits Enter; abandoned on shutdown.
		_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
		close(enter)
	}()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for ctrl.State().Active() {
		select {
		case <-ctx.Done():
			ctrl.Cancel()
			return ctx.Err()
		case <-enter:
			if err := ctrl.Stop(ctx); err != nil {
				printTranscript(ctrl)
				return err
			}
		case <-ticker.C:
		}
	}

	// The session may also have ended on its own: closing phrase,
	// transport failure, or a stop that is still analysing.
	for ctrl.State() == session.StateAnalyzing {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	printTranscript(ctrl)

	switch ctrl.State() {
	case session.StateFeedback:
		fmt.Println()
		fmt.Println("── Feedback ──────────────────────────────")
		fmt.Println(ctrl.Feedback())
	case session.StateError:
		return ctrl.Err()
	}
	return nil
}

func printTranscript(ctrl *session.Controller) {
	msgs := ctrl.Transcript()
	if len(msgs) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("── Transcript ────────────────────────────")
	for _, m := range msgs {
		label := "agent"
		if m.Speaker == audio.SpeakerLocal {
			label = "you"
		}
		fmt.Printf("%6s: %s\n", label, strings.TrimSpace(m.Text))
	}
}

// ── Provider wiring ───────────────────────────────────────────────────────────

func buildLiveProvider(entry config.ProviderEntry) (live.Provider, error) {
	switch entry.Name {
	case "gemini-live":
		var opts []geminilive.Option
		if entry.Model != "" {
			opts = append(opts, geminilive.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, geminilive.WithBaseURL(entry.BaseURL))
		}
		return geminilive.New(entry.APIKey, opts...), nil
	default:
		return nil, fmt.Errorf("unknown live provider %q", entry.Name)
	}
}

// buildLLMProvider returns nil without error when no LLM provider is
// configured; feedback is simply disabled then.
func buildLLMProvider(entry config.ProviderEntry) (llm.Provider, error) {
	switch entry.Name {
	case "":
		return nil, nil
	case "openai":
		var opts []openaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, openaillm.WithBaseURL(entry.BaseURL))
		}
		return openaillm.New(entry.APIKey, entry.Model, opts...)
	case "ollama":
		// Local server: BaseURL is the address, no API key.
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	default:
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New(entry.Name, entry.Model, opts...)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, flow config.FlowConfig) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        livevoice — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Live", cfg.Providers.Live.Name, cfg.Providers.Live.Model)
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printField("Flow", flow.Name)
	printField("Voice", flow.Voice)
	if flow.Feedback {
		printField("Feedback", "enabled")
	} else {
		printField("Feedback", "(disabled)")
	}
	if cfg.Server.MetricsAddr != "" {
		printField("Metrics addr", cfg.Server.MetricsAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	printField(kind, value)
}

func printField(kind, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", kind, value)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// pickFlow resolves the requested flow name; with no name given it falls back
// to a single configured flow.
func pickFlow(cfg *config.Config, name string) (config.FlowConfig, bool) {
	if name == "" {
		if len(cfg.Flows) == 1 {
			return cfg.Flows[0], true
		}
		return config.FlowConfig{}, false
	}
	return cfg.Flow(name)
}

func flowNames(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Flows))
	for _, f := range cfg.Flows {
		names = append(names, f.Name)
	}
	return names
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
