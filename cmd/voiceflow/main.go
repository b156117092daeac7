// Command voiceflow is a small CLI around the voice agent runtime.
//
// Usage:
//
//	voiceflow detect --audio utterance.pcm     # run speech detection on raw PCM16LE
//	voiceflow history --config config.yaml     # list recent conversation turns
//	voiceflow version                          # show version info
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/voiceflow/config"
	"github.com/BaSui01/voiceflow/history"
	"github.com/BaSui01/voiceflow/registry"
	"github.com/BaSui01/voiceflow/vad"
)

// Version info, injected at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "detect":
		runDetect(os.Args[2:])
	case "history":
		runHistory(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runDetect(args []string) {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	audioPath := fs.String("audio", "", "Path to raw PCM16LE mono audio")
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	if *audioPath == "" {
		fmt.Fprintln(os.Stderr, "detect requires --audio")
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	logger := buildLogger(cfg.Log)
	defer logger.Sync()

	pcm, err := os.ReadFile(*audioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read audio: %v\n", err)
		os.Exit(1)
	}

	reg := registry.New(logger)
	if err := reg.Register(vad.EnergyProvider()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to register detector: %v\n", err)
		os.Exit(1)
	}

	detector := vad.NewComponent(reg, logger, nil)
	vadCfg := vad.DefaultConfig()
	if cfg.VAD.SampleRate > 0 {
		vadCfg.SampleRate = cfg.VAD.SampleRate
	}
	if cfg.VAD.FrameDuration > 0 {
		vadCfg.FrameDuration = cfg.VAD.FrameDuration.Std()
	}
	if cfg.VAD.EnergyThreshold > 0 {
		vadCfg.EnergyThreshold = cfg.VAD.EnergyThreshold
	}
	if cfg.VAD.VoiceStartFrames > 0 {
		vadCfg.VoiceStartFrames = cfg.VAD.VoiceStartFrames
	}
	if cfg.VAD.VoiceEndFrames > 0 {
		vadCfg.VoiceEndFrames = cfg.VAD.VoiceEndFrames
	}
	if err := detector.Configure(vadCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid VAD config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := detector.LoadDefault(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load detector: %v\n", err)
		os.Exit(1)
	}
	defer detector.Destroy()

	res, err := detector.Detect(ctx, pcm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Detection failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("speech detected: %v\n", res.SpeechDetected)
	fmt.Printf("voiced frames:   %d / %d\n", res.VoicedFrames, res.TotalFrames)
	fmt.Printf("peak energy:     %.4f\n", res.PeakEnergy)
	fmt.Printf("processing time: %s\n", res.ProcessingTime)
}

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	limit := fs.Int("limit", 10, "Number of turns to show")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	if !cfg.History.Enabled {
		fmt.Fprintln(os.Stderr, "Turn history is disabled in the config")
		os.Exit(1)
	}

	logger := buildLogger(cfg.Log)
	defer logger.Sync()

	store, err := history.Open(cfg.History.Path, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := store.Recent(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read history: %v\n", err)
		os.Exit(1)
	}
	if len(rows) == 0 {
		fmt.Println("No turns recorded yet")
		return
	}

	for _, row := range rows {
		fmt.Printf("%s  %-20s  %4dms  %q -> %q\n",
			row.CreatedAt.Format(time.RFC3339),
			row.Status,
			row.TotalMillis,
			row.Transcription,
			row.Response,
		)
	}
}

func loadConfig(path string) *config.Config {
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func buildLogger(cfg config.LogConfig) *zap.Logger {
	logger, err := config.BuildLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func printVersion() {
	fmt.Printf("voiceflow %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
}

func printUsage() {
	fmt.Println(`voiceflow - on-device voice agent runtime

Usage:
  voiceflow detect --audio file.pcm [--config config.yaml]
  voiceflow history [--config config.yaml] [--limit N]
  voiceflow version
  voiceflow help`)
}
