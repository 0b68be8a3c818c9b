package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/intervu/live-interview/internal/audio"
	"github.com/intervu/live-interview/internal/config"
	"github.com/intervu/live-interview/internal/live"
	"github.com/intervu/live-interview/internal/observability"
	"github.com/intervu/live-interview/internal/report"
	"github.com/intervu/live-interview/internal/resilience"
	"github.com/intervu/live-interview/internal/session"
	"github.com/intervu/live-interview/internal/store"
	"github.com/intervu/live-interview/internal/video"
)

type options struct {
	userID     string
	name       string
	email      string
	experience string
	resumePath string
	company    string
	role       string
	noCamera   bool
	noStore    bool
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.userID, "user", "", "profile id to load from the store")
	flag.StringVar(&o.name, "name", "", "candidate name (overrides the stored profile)")
	flag.StringVar(&o.email, "email", "", "candidate email")
	flag.StringVar(&o.experience, "experience", "", "experience summary")
	flag.StringVar(&o.resumePath, "resume", "", "path to a PDF resume to analyze before the interview")
	flag.StringVar(&o.company, "company", "", "company the interviewer represents (required)")
	flag.StringVar(&o.role, "role", "", "role being interviewed for; recommended from the resume when empty")
	flag.BoolVar(&o.noCamera, "no-camera", false, "run an audio-only interview")
	flag.BoolVar(&o.noStore, "no-store", false, "keep profile and report in memory only")
	flag.Parse()
	return o
}

func main() {
	os.Exit(run(parseFlags()))
}

// run returns the process exit code so deferred cleanup always executes
func run(opts options) int {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	if opts.company == "" {
		fmt.Fprintln(os.Stderr, "-company is required")
		return 2
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("live_model", cfg.GeminiLiveModel).
		Str("report_model", cfg.GeminiReportModel).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Interview runner starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := openStore(ctx, cfg, opts.noStore, logger)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		db.Close(closeCtx)
	}()

	server := startOpsServer(cfg, db, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Ops server forced to shutdown")
		}
	}()

	model, err := report.NewGeminiModel(ctx, cfg.GeminiAPIKey, cfg.GeminiReportModel)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create report model")
		return 1
	}
	generator := report.NewGenerator(model, resilience.NewPolicy("gemini_report", cfg))

	profile, err := loadProfile(ctx, db, generator, opts)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load candidate profile")
		return 1
	}
	persona := live.Persona{CompanyName: opts.company, Role: opts.role}
	if persona.Role == "" {
		roles := generator.RecommendRoles(ctx, profile.ResumeText)
		persona.Role = roles[0]
		logger.Info().Strs("recommended", roles).Msg("Role picked from resume")
	}

	client := live.NewClient(cfg,
		live.NewGeminiTransport(cfg),
		audio.FFmpegMicrophone{Path: cfg.FFmpegPath, InputFormat: cfg.MicInputFormat, InputDevice: cfg.MicInputDevice},
		audio.FFplayOpener{Path: cfg.FFplayPath},
	)

	var camera video.Opener
	if !opts.noCamera {
		camera = video.FFmpegCamera{
			Path:        cfg.FFmpegPath,
			InputFormat: cfg.CameraInputFormat,
			InputDevice: cfg.CameraInputDevice,
			Width:       cfg.CameraWidth,
			Height:      cfg.CameraHeight,
			FPS:         cfg.CameraFPS,
		}
	}
	host := session.NewHost(client, camera, *profile, persona)

	fmt.Printf("Interview with %s for %s. %s\n", persona.CompanyName, persona.Role, commandHelp)
	go readCommands(os.Stdin, os.Stderr, host)
	go renderStatus(host)

	outcome := host.Run(ctx)
	logger.Info().
		Str("reason", string(outcome.Reason)).
		Str("end_reason", outcome.EndReason).
		Dur("duration", outcome.Duration).
		Int("transcript_items", len(outcome.Transcript)).
		Msg("Interview finished")

	if outcome.Err != nil {
		fmt.Fprintf(os.Stderr, "\nSession failed: %v\n", outcome.Err)
	}
	if !outcome.GenerateReport {
		if outcome.Err != nil {
			return 1
		}
		return 0
	}

	reportCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rep, err := generator.Generate(reportCtx, outcome.Transcript, persona.CompanyName, persona.Role)
	if err != nil {
		logger.Warn().Err(err).Msg("Report generated from fallback")
	}
	rep.UserID = profile.ID
	if err := db.SaveReport(reportCtx, rep); err != nil {
		logger.Error().Err(err).Msg("Failed to save report")
	}

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode report")
		return 1
	}
	fmt.Println()
	fmt.Println(string(out))
	return 0
}

func openStore(ctx context.Context, cfg *config.Config, memoryOnly bool, logger zerolog.Logger) store.Store {
	if memoryOnly {
		return store.NewMemoryStore()
	}
	db, err := store.Connect(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("MongoDB unavailable, keeping data in memory")
		return store.NewMemoryStore()
	}
	return db
}

func startOpsServer(cfg *config.Config, db store.Store, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness endpoint - check functions are built here to avoid import cycles
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"gemini": func(ctx context.Context) (bool, error) {
			if cfg.GeminiAPIKey == "" {
				return false, errors.New("GEMINI_API_KEY is not set")
			}
			return true, nil
		},
		"mongodb": func(ctx context.Context) (bool, error) {
			if err := db.Ping(ctx); err != nil {
				return false, err
			}
			return true, nil
		},
	}))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Ops server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Ops server failed")
		}
	}()
	return server
}

func loadProfile(ctx context.Context, db store.Store, generator *report.Generator, opts options) (*live.Profile, error) {
	profile := &live.Profile{ID: opts.userID}
	if opts.userID != "" {
		stored, err := db.GetProfile(ctx, opts.userID)
		switch {
		case err == nil:
			profile = stored
		case errors.Is(err, store.ErrNotFound):
		default:
			return nil, err
		}
	}

	if opts.name != "" {
		profile.Name = opts.name
	}
	if opts.email != "" {
		profile.Email = opts.email
	}
	if opts.experience != "" {
		profile.Experience = opts.experience
	}
	if profile.Name == "" {
		return nil, errors.New("candidate name is required (-name or a stored profile)")
	}

	if opts.resumePath != "" {
		pdf, err := os.ReadFile(opts.resumePath)
		if err != nil {
			return nil, fmt.Errorf("read resume: %w", err)
		}
		text, score, err := generator.AnalyzeResume(ctx, pdf)
		if err != nil {
			return nil, err
		}
		profile.ResumeText = text
		profile.ResumeScore = &score
	}

	if profile.ID != "" {
		if err := db.UpdateProfile(ctx, profile); err != nil {
			return nil, fmt.Errorf("save profile: %w", err)
		}
	}
	return profile, nil
}

const commandHelp = "Press Enter on an empty line to end the interview, m toggles the microphone, c toggles the camera."

// sessionControls is the part of *session.Host the keyboard drives
type sessionControls interface {
	SetMicMuted(muted bool)
	SetCameraEnabled(enabled bool)
	End()
}

// readCommands applies one command per input line. Only an empty line ends
// the interview; unknown input prints the help text.
func readCommands(in io.Reader, out io.Writer, host sessionControls) {
	scanner := bufio.NewScanner(in)
	var micMuted bool
	cameraOn := true
	for scanner.Scan() {
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "":
			host.End()
			return
		case "m":
			micMuted = !micMuted
			host.SetMicMuted(micMuted)
		case "c":
			cameraOn = !cameraOn
			host.SetCameraEnabled(cameraOn)
		default:
			fmt.Fprintf(out, "\nUnknown command. %s\n", commandHelp)
		}
	}
}

func renderStatus(host *session.Host) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-host.Done():
			return
		case <-ticker.C:
			st := host.Status()
			bars := strings.Repeat("#", int(st.Volume*40))
			line := fmt.Sprintf("\r[%s] %s  mic:%s cam:%s  %-20s", st.Connection, st.Elapsed,
				onOff(!st.MicMuted), onOff(st.CameraOn), bars)
			if st.Warning != "" {
				line += "  " + st.Warning
			}
			fmt.Fprint(os.Stderr, line)
		}
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
