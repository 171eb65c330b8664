package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	vision "github.com/rtorresf4/vision-iot-pi5"
	"github.com/rtorresf4/vision-iot-pi5/internal/adapters/camera"
	"github.com/rtorresf4/vision-iot-pi5/internal/app/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "probe":
		err = probeCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("pi-detector %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./config.yaml", "Path to detector configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := vision.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := vision.NewRuntime(cfg)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return rt.Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := vision.LoadConfig(*cfgPath); err != nil {
		return err
	}
	fmt.Printf("config %s looks good\n", *cfgPath)
	return nil
}

// probeCommand opens the camera, grabs a handful of frames, and reports
// resolution and frame interval so a bad cable or wrong device index is
// caught before a full run.
func probeCommand(args []string) error {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	cfgPath := fs.String("config", "./config.yaml", "Path to detector configuration file")
	frames := fs.Int("frames", 10, "Number of frames to grab")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	src := camera.NewSource(camera.Config{
		Device: cfg.Video.Device,
		Width:  cfg.Video.Width,
		Height: cfg.Video.Height,
		FPS:    cfg.Video.FPS,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := src.Open(ctx); err != nil {
		return fmt.Errorf("open camera %d: %w", cfg.Video.Device, err)
	}
	defer src.Close()

	start := time.Now()
	var width, height int
	for i := 0; i < *frames; i++ {
		frame, err := src.Read(ctx)
		if err != nil {
			return fmt.Errorf("read frame %d: %w", i+1, err)
		}
		width, height = frame.Width, frame.Height
	}
	elapsed := time.Since(start)

	fmt.Printf("camera %d OK: %dx%d, %d frames in %s (%.1f fps)\n",
		cfg.Video.Device, width, height, *frames, elapsed.Round(time.Millisecond),
		float64(*frames)/elapsed.Seconds())
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	targets := map[string]float64{
		"edge_frames_captured_total":   0,
		"edge_frames_dropped_total":    0,
		"edge_batches_published_total": 0,
		"edge_pipeline_fps":            0,
		"edge_bus_messages_sent_total": 0,
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for key := range targets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %f", &value); err == nil {
					targets[key] = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("[%s] captured=%.0f dropped=%.0f published=%.0f sent=%.0f fps=%.1f\n",
		time.Now().Format(time.RFC3339),
		targets["edge_frames_captured_total"],
		targets["edge_frames_dropped_total"],
		targets["edge_batches_published_total"],
		targets["edge_bus_messages_sent_total"],
		targets["edge_pipeline_fps"],
	)
	return nil
}

func printUsage() {
	fmt.Printf(`pi-detector CLI

Usage:
  pi-detector <command> [flags]

Commands:
  run        Start the detector pipeline using the provided config
  validate   Load and validate a config file without starting the pipeline
  probe      Open the camera, grab a few frames, and report resolution/fps
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  pi-detector run -config ./config.yaml
  pi-detector validate -config ./config.yaml
  pi-detector probe -config ./config.yaml -frames 30
  pi-detector stats -url http://localhost:9100/metrics -interval 1s
`)
}
