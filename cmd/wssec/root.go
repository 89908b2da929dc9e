package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-wssec/internal/config"
	"github.com/sirosfoundation/go-wssec/internal/keystore"
	"github.com/sirosfoundation/go-wssec/internal/metrics"
	"github.com/sirosfoundation/go-wssec/pkg/wss"
)

// global flags
var (
	configPath string
	inPath     string
	outPath    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "wssec",
	Short: "Secure and verify SOAP messages with WS-Security",
	Long: `wssec runs the streaming WS-Security pipeline over SOAP messages in files.
The outbound section of the configuration drives 'secure', the inbound
section and its policy drive 'verify'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var level slog.Level
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "wssec.yaml", "Configuration file")
	rootCmd.PersistentFlags().StringVar(&inPath, "in", "-", "Input message file, - for stdin")
	rootCmd.PersistentFlags().StringVar(&outPath, "out", "-", "Output message file, - for stdout")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(secureCmd, verifyCmd)
}

// environment holds what both commands build from the configuration.
type environment struct {
	cfg      *config.Config
	crypto   keystore.Provider
	registry *prometheus.Registry
	opts     []wss.Option
}

func setup() (*environment, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	crypto, err := keystore.NewProvider(&cfg.Keystore)
	if err != nil {
		return nil, fmt.Errorf("opening keystore: %w", err)
	}
	env := &environment{cfg: cfg, crypto: crypto}
	if cfg.Metrics.Enabled {
		env.registry = prometheus.NewRegistry()
		m, err := metrics.New(env.registry, cfg.Metrics.Namespace)
		if err != nil {
			return nil, err
		}
		env.opts = append(env.opts, wss.WithMetrics(m))
	}
	return env, nil
}

// close logs the collected counters and releases the keystore.
func (env *environment) close() {
	if env.registry != nil {
		families, err := env.registry.Gather()
		if err != nil {
			slog.Warn("failed to gather metrics", "error", err)
		}
		for _, mf := range families {
			for _, m := range mf.GetMetric() {
				attrs := []any{"metric", mf.GetName(), "value", m.GetCounter().GetValue()}
				for _, l := range m.GetLabel() {
					attrs = append(attrs, l.GetName(), l.GetValue())
				}
				slog.Info("metric", attrs...)
			}
		}
	}
	if err := env.crypto.Close(); err != nil {
		slog.Warn("failed to close keystore", "error", err)
	}
}

func openInput(cmd *cobra.Command) (io.ReadCloser, error) {
	if inPath == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(inPath)
}

// writeOutput writes data to the output file or stdout.
func writeOutput(cmd *cobra.Command, data []byte) error {
	if outPath == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(outPath, data, 0o644)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
