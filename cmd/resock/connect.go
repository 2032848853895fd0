package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/resock-sdk/resock-sdk-go/resock"
)

const (
	ConnectCmdLiteral = "connect"
	ConnectCmdExample = `# Connect to the public echo server
resock connect --url ws://echo.websocket.org

# Give up after 5 failed reconnects, retrying every second
resock connect --url wss://example.com/ws --max-retries 5 --interval 1s

# Load settings from a file and expose Prometheus metrics
resock connect --config resock.toml --metrics-addr :9100`

	defaultURL = "ws://echo.websocket.org"
)

var (
	flagURL         string
	flagMaxRetries  int
	flagInterval    time.Duration
	flagDebug       bool
	flagConfig      string
	flagTransport   string
	flagMetricsAddr string
	flagLogLevel    string
	flagLogFormat   string
)

var connectCmd = &cobra.Command{
	Use:     ConnectCmdLiteral,
	Short:   "Open a reconnecting WebSocket session",
	Long:    "Connects to a WebSocket endpoint and sends every stdin line as a text frame. Type /status, /reconnect or /quit for session control.",
	Example: ConnectCmdExample,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConnectCommand(cmd)
	},
}

func init() {
	f := connectCmd.Flags()
	f.StringVar(&flagURL, "url", defaultURL, "WebSocket URL to connect to")
	f.IntVar(&flagMaxRetries, "max-retries", resock.UnlimitedReconnects, "maximum consecutive reconnect attempts, negative for unlimited")
	f.DurationVar(&flagInterval, "interval", resock.DefaultReconnectInterval, "delay between reconnect attempts")
	f.BoolVar(&flagDebug, "debug", false, "log connection lifecycle details")
	f.StringVar(&flagConfig, "config", "", "path to a TOML config file")
	f.StringVar(&flagTransport, "transport", resock.TransportCoder, "WebSocket implementation: coder or gorilla")
	f.StringVar(&flagMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	f.StringVar(&flagLogFormat, "log-format", "text", "log format: json or text")
}

func runConnectCommand(cmd *cobra.Command) error {
	cfg, err := resock.LoadConfig(flagConfig)
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)

	level := flagLogLevel
	if cfg.Debug && !cmd.Flags().Changed("log-level") {
		level = "debug"
	}
	logger, zl, err := resock.NewLogger(resock.LogConfig{Level: level, Format: flagLogFormat})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	opts := []resock.Option{resock.WithLogger(logger)}
	if flagMetricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, resock.WithMetrics(resock.NewMetrics(reg)))
		srv := serveMetrics(flagMetricsAddr, reg, logger)
		defer func() { _ = srv.Close() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := resock.NewManager(cfg, opts...)
	m.OnStateChanged(printStateEvent)
	defer m.Disconnect()

	if err := m.Connect(); err != nil {
		return err
	}

	lines := readLines(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nClosing...")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(m, line); quit {
				return nil
			}
		}
	}
}

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *resock.Config) {
	f := cmd.Flags()
	if f.Changed("url") || cfg.URL == "" {
		cfg.URL = flagURL
	}
	if f.Changed("max-retries") {
		cfg.MaxReconnectAttempts = flagMaxRetries
	}
	if f.Changed("interval") {
		cfg.ReconnectInterval = flagInterval
	}
	if f.Changed("debug") {
		cfg.Debug = flagDebug
	}
	if f.Changed("transport") {
		cfg.Transport = flagTransport
	}
}

func handleLine(m *resock.Manager, line string) bool {
	switch strings.TrimSpace(line) {
	case "":
		return false
	case "/quit":
		return true
	case "/reconnect":
		m.Disconnect()
		if err := m.Connect(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return false
	case "/status":
		printSnapshot(m.Snapshot())
		return false
	}
	if err := m.Send(resock.Text(line)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", m.ErrorMessage())
	}
	return false
}

func readLines(f *os.File) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			out <- scanner.Text()
		}
	}()
	return out
}

func serveMetrics(addr string, reg *prometheus.Registry, logger resock.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", map[string]any{"addr": addr, "error": err})
		}
	}()
	return srv
}

func printStateEvent(ev resock.StateEvent) {
	timestamp := ev.Snapshot.UpdatedAt.Format("15:04:05")
	switch ev.Cause {
	case resock.CauseMessage:
		if msg := ev.Snapshot.LastMessage; msg != nil {
			fmt.Printf("[%s] < %s\n", timestamp, msg)
		}
		return
	case resock.CauseSend:
		return
	}
	if ev.OldState != ev.NewState {
		fmt.Printf("[%s] STATE: %s -> %s\n", timestamp, ev.OldState.Text(), ev.NewState.Text())
	}
	if ev.Snapshot.ErrorMessage != "" && ev.NewState == resock.StateError {
		fmt.Printf("           %s\n", ev.Snapshot.ErrorMessage)
	}
}

func printSnapshot(s resock.Snapshot) {
	fmt.Printf("URL:                %s\n", s.URL)
	fmt.Printf("Status:             %s\n", s.StatusText)
	fmt.Printf("Reconnect attempts: %d\n", s.ReconnectAttempts)
	if s.ErrorMessage != "" {
		fmt.Printf("Error:              %s\n", s.ErrorMessage)
	}
	if s.LastMessage != nil {
		fmt.Printf("Last message:       %s\n", s.LastMessage)
	}
}
