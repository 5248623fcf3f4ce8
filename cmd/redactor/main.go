// Command redactor is the PII redaction and pseudonymization service.
//
// It detects personal data in text with an ensemble of detectors, masks it
// with typed placeholders and, for reasoning requests, swaps person and
// company names for consistent fictional ones.
//
// Usage:
//
//	# Serve the HTTP API
//	./redactor serve
//
//	# One-off redaction
//	./redactor redact "Why did John Smith at Acme Corp email jane@example.com?"
//	./redactor redact --file notes.docx
//	echo "call 555-123-4567" | ./redactor redact
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"pii-redaction-pipeline/internal/app"
	"pii-redaction-pipeline/internal/config"
	"pii-redaction-pipeline/internal/extract"
	"pii-redaction-pipeline/internal/logger"
	"pii-redaction-pipeline/internal/server"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:          "redactor",
		Short:        "PII redaction and pseudonymization service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultPath, "config file (YAML or JSON)")

	root.AddCommand(
		newServeCmd(&cfgPath),
		newRedactCmd(&cfgPath),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "redactor %s\n", version)
			},
		},
	)
	return root
}

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the redaction HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load(*cfgPath)
			log := logger.New("REDACTOR", cfg.LogLevel)
			defer log.Sync() //nolint:errcheck // stderr sync fails on some terminals

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck // shutdown path

			printBanner(cmd.OutOrStdout(), cfg, a.Engines)

			go func() {
				err := config.Watch(ctx, *cfgPath, func(next *config.Config) {
					log.SetLevel(next.LogLevel)
					log.Infof("config", "Reloaded %s; log level %s", *cfgPath, next.LogLevel)
				})
				if err != nil {
					log.Warnf("config", "Config watch disabled: %v", err)
				}
			}()

			srv := server.New(cfg, a.Pipeline, a.Audit, a.Metrics, log.With("SERVER"), a.Engines)
			return srv.ListenAndServe(ctx)
		},
	}
}

func newRedactCmd(cfgPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "redact [text...]",
		Short: "Redact text from arguments, a file or stdin and print the JSON result",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" && len(args) > 0 {
				return errors.New("pass either text arguments or --file, not both")
			}
			cfg := config.Load(*cfgPath)
			log := logger.New("REDACTOR", cfg.LogLevel)

			text, err := readInput(cmd.InOrStdin(), file, args, cfg.MaxUploadBytes)
			if err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" {
				return errors.New("no text to redact")
			}

			a, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck // one-shot command

			res, err := a.Pipeline.Run(cmd.Context(), text)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read input from a .txt, .md or .docx file")
	return cmd
}

func readInput(stdin io.Reader, file string, args []string, maxBytes int64) (string, error) {
	switch {
	case file != "":
		f, err := os.Open(filepath.Clean(file))
		if err != nil {
			return "", err
		}
		defer f.Close() //nolint:errcheck // read-only
		return extract.Text(filepath.Base(file), f, maxBytes)
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		return extract.Text("stdin.txt", stdin, maxBytes)
	}
}

func printBanner(w io.Writer, cfg *config.Config, e server.Engines) {
	auth := "disabled"
	if cfg.APIToken != "" {
		auth = "bearer token"
	}
	fmt.Fprintf(w, `
  PII Redactor %s
  Listening       : %s:%d
  Authentication  : %s
  Coreference     : %s
  Detectors       : %s
  Intent          : %s
  Audit backend   : %s

  Try it:
    curl -X POST -F 'text=Why did John Smith leave?' http://%s:%d/anonymize/text
`, version, cfg.BindAddress, cfg.Port, auth,
		e.Coref, strings.Join(e.Detectors, ", "), strings.Join(e.Strategies, ", "), e.Audit,
		cfg.BindAddress, cfg.Port)
}
