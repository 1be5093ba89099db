// Command narratordemo drives the narration engine interactively: type a
// fault message, watch it get classified, humanized, policy-checked, and
// delivered to a sink, with live status in a Bubble Tea dashboard.
//
// Usage:
//
//	narratordemo [-verbose] [-quiet] [-sink=osvoice|httpvoice|noop]
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/narrator-dev/narrator/internal/audio"
	"github.com/narrator-dev/narrator/internal/domain"
	"github.com/narrator-dev/narrator/internal/engine"
	"github.com/narrator-dev/narrator/internal/hooks"
	"github.com/narrator-dev/narrator/internal/logger"
	"github.com/narrator-dev/narrator/internal/sink/httpvoice"
	"github.com/narrator-dev/narrator/internal/sink/noop"
	"github.com/narrator-dev/narrator/internal/sink/osvoice"
	"github.com/narrator-dev/narrator/internal/trace"
)

// Env var names. AZURE_SPEECH_KEY/REGION follow Azure Cognitive Services'
// own convention; the rest are prefixed for this module's own config.
const (
	envAzureSpeechKey    = "AZURE_SPEECH_KEY"
	envAzureSpeechRegion = "AZURE_SPEECH_REGION"
	envNarratorVoice     = "NARRATOR_VOICE"
	envNarratorCooldown  = "NARRATOR_COOLDOWN_MS"
	envNarratorOSCommand = "NARRATOR_OS_COMMAND"
)

func main() {
	_ = godotenv.Load()

	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", ".narrator-logs/narrator.log", "file to write logs to (use \"stderr\" to log to console)")
	sinkKind := flag.String("sink", "auto", "sink backend: auto, osvoice, httpvoice, or noop")
	autoSetup := flag.Bool("auto-setup", false, "install process-wide runtime fault hooks on construction")
	flag.Parse()

	logLevel := logger.LevelNormal
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	var logOut io.Writer = os.Stderr
	if *logFile != "" && *logFile != "stderr" {
		dir := filepath.Dir(*logFile)
		if dir != "" && dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", *logFile, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}
	log := logger.New(logLevel, logOut)

	cfg := domain.NewDefaultConfig()
	cfg.AutoSetup = *autoSetup
	cfg.Debug = *verbose
	if v := os.Getenv(envNarratorVoice); v != "" {
		cfg.Voice = v
	}
	if v := os.Getenv(envNarratorCooldown); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.CooldownMs = ms
		}
	}

	sink, cleanup := buildSink(*sinkKind, log)
	defer cleanup()

	tracer := trace.New(nil)
	eng := engine.Construct(cfg, sink, log, engine.WithTrace(tracer))
	defer eng.Shutdown()

	if cfg.AutoSetup {
		log.Info("autoSetup: process-wide hooks installed (installed=%v)", hooks.Installed() != nil)
	}

	m := newModel(eng, sinkDescription(*sinkKind, sink))
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		log.Error("display: %v", err)
	}
}

// buildSink selects a concrete sink.Sink per the -sink flag (or "auto",
// which prefers httpvoice when Azure-style credentials are present, then
// osvoice when a command-line TTS binary is resolvable, falling back to
// noop). cleanup releases any resources the chosen sink holds (e.g. the
// audio player).
func buildSink(kind string, log *logger.Logger) (domain.Sink, func()) {
	noCleanup := func() {}

	switch kind {
	case "noop":
		return noop.New(log), noCleanup
	case "osvoice":
		return osvoice.New(log, osvoiceCommandOption(log)...), noCleanup
	case "httpvoice":
		s, cleanup := buildHTTPVoice(log)
		if s != nil {
			return s, cleanup
		}
		return noop.New(log), noCleanup
	}

	// "auto": prefer httpvoice when credentials are configured.
	if s, cleanup := buildHTTPVoice(log); s != nil {
		return s, cleanup
	}
	osSink := osvoice.New(log, osvoiceCommandOption(log)...)
	if osSink.Ready() {
		return osSink, noCleanup
	}
	log.Info("no TTS backend available (set %s/%s or install an OS speech command); using noop sink", envAzureSpeechKey, envAzureSpeechRegion)
	return noop.New(log), noCleanup
}

func osvoiceCommandOption(log *logger.Logger) []osvoice.Option {
	if cmd := os.Getenv(envNarratorOSCommand); cmd != "" {
		parts := strings.Fields(cmd)
		return []osvoice.Option{osvoice.WithCommand(parts[0], parts[1:]...)}
	}
	return nil
}

func buildHTTPVoice(log *logger.Logger) (domain.Sink, func()) {
	key := os.Getenv(envAzureSpeechKey)
	region := os.Getenv(envAzureSpeechRegion)
	if key == "" || region == "" {
		return nil, func() {}
	}

	endpoint := fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region)

	player, err := audio.NewPlayer(log)
	cleanup := func() {}
	if err != nil {
		log.Error("audio player init failed, httpvoice will synthesize without local playback: %v", err)
		player = nil
	} else {
		cleanup = player.Stop
	}

	cache := audio.NewCache("default", ".narrator-cache", true, log)
	s := httpvoice.New(endpoint, key, player, log, httpvoice.WithCache(cache))
	return s, cleanup
}

func sinkDescription(kind string, sink domain.Sink) string {
	name := kind
	if name == "" || name == "auto" {
		switch sink.(type) {
		case *httpvoice.Sink:
			name = "httpvoice"
		case *osvoice.Sink:
			name = "osvoice"
		default:
			name = "noop"
		}
	}
	return name
}
