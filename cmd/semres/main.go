// Package main provides the semres binary entry point.
// Semres caches semantic desktop resources, resolves identifiers to
// canonical URIs and keeps local edits in sync with a triple store.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/semres/api"
	"github.com/c360studio/semres/config"
	"github.com/c360studio/semres/export"
	"github.com/c360studio/semres/resource"
	"github.com/c360studio/semres/storage"
	"github.com/c360studio/semres/variant"
	"github.com/c360studio/semres/vocabulary/nao"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semres"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globals holds the persistent flags shared by every command.
type globals struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Semantic resource cache",
		Long: `Semres resolves resource identifiers to canonical URIs, caches resource
properties and merges local edits with a triple store.

Statements are stored in a NATS KV bucket, Redis, or in memory. Synced
resources are published to the knowledge graph over JetStream.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(g),
		getCmd(g),
		setCmd(g),
		tagCmd(g),
		rateCmd(g),
		removeCmd(g),
		exportCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

// setup loads the configuration and configures logging.
func (g *globals) setup() (*config.Config, *slog.Logger, error) {
	bootstrap := newLogger(g.logLevel)
	loader := config.NewLoader(bootstrap)

	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = loader.LoadFile(g.configPath)
	} else {
		cfg, err = loader.Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Log.Level
	if g.logLevel != "" {
		level = g.logLevel
	}
	logger := newLogger(level)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// withApp starts the application for a one-shot command and shuts it down
// afterwards.
func (g *globals) withApp(cmd *cobra.Command, fn func(ctx context.Context, m *resource.Manager) error) (err error) {
	cfg, logger, err := g.setup()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app := NewApp(cfg, logger)
	defer func() {
		err = errors.Join(err, app.Shutdown())
	}()
	if err := app.Start(ctx, false); err != nil {
		return err
	}
	return fn(ctx, app.Manager())
}

func serveCmd(g *globals) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			return serve(cfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides http.addr)")
	return cmd
}

func serve(cfg *config.Config, logger *slog.Logger) error {
	// Setup signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := NewApp(cfg, logger)
	if err := app.Start(ctx, true); err != nil {
		_ = app.Shutdown()
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewServer(app.Manager(), logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Semres ready", "version", Version, "addr", cfg.HTTP.Addr, "backend", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case serveErr = <-errCh:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", "error", err)
	}
	if err := app.Shutdown(); err != nil {
		logger.Error("Error during shutdown", "error", err)
	}

	logger.Info("Semres shutdown complete")
	return serveErr
}

func getCmd(g *globals) *cobra.Command {
	var typ string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Resolve a resource and print its properties",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, m *resource.Manager) error {
				r := m.Resource(args[0], typ)
				defer r.Release()
				return printResource(ctx, cmd, r)
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "Expected resource type")
	return cmd
}

func printResource(ctx context.Context, cmd *cobra.Command, r *resource.Resource) error {
	uri, err := r.URI(ctx)
	if err != nil {
		return err
	}
	types, err := r.Types(ctx)
	if err != nil {
		return err
	}
	props, err := r.Properties(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(api.ResourceView{
		URI:        uri,
		Kickoff:    r.KickoffURIOrID(),
		Type:       r.Type(),
		Types:      types,
		Modified:   r.Modified(),
		Properties: props,
	})
}

func setCmd(g *globals) *cobra.Command {
	var (
		kind        string
		appendValue bool
	)

	cmd := &cobra.Command{
		Use:   "set <id> <predicate> <value>",
		Short: "Set a property and sync the resource",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseValue(kind, args[2])
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, m *resource.Manager) error {
				r := m.Resource(args[0], "")
				defer r.Release()

				predicate := nao.IRIForPredicate(args[1])
				if appendValue {
					err = r.AddProperty(ctx, predicate, v)
				} else {
					err = r.SetProperty(predicate, v)
				}
				if err != nil {
					return err
				}
				if err := r.Sync(ctx); err != nil {
					return err
				}
				return printResource(ctx, cmd, r)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "string", "Value kind (int, double, bool, string, datetime, resource)")
	cmd.Flags().BoolVar(&appendValue, "append", false, "Append to the existing values")
	return cmd
}

// parseValue converts a command line value to a variant of the given kind.
func parseValue(kindName, raw string) (variant.Variant, error) {
	kind, err := variant.ParseKind(kindName)
	if err != nil {
		return variant.Variant{}, err
	}
	if kind == variant.Resource {
		return variant.NewResource(raw), nil
	}
	v := variant.FromNode(storage.NewLiteral(raw, variant.Datatype(kind)))
	if v.Kind() != kind {
		return variant.Variant{}, fmt.Errorf("%w: %q is not a valid %s", variant.ErrKindMismatch, raw, kind)
	}
	return v, nil
}

func tagCmd(g *globals) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "tag <id> <tag>...",
		Short: "Tag a resource",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, m *resource.Manager) error {
				r := m.Resource(args[0], "")
				defer r.Release()

				if replace {
					if err := r.SetTags(ctx, args[1:]); err != nil {
						return err
					}
				} else {
					for _, name := range args[1:] {
						if err := r.AddTag(ctx, name); err != nil {
							return err
						}
					}
				}
				if err := r.Sync(ctx); err != nil {
					return err
				}
				names, err := r.TagNames(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, ", "))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace all existing tags")
	return cmd
}

func rateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "rate <id> <0-10>",
		Short: "Rate a resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid rating %q: %w", args[1], err)
			}
			return g.withApp(cmd, func(ctx context.Context, m *resource.Manager) error {
				r := m.Resource(args[0], "")
				defer r.Release()
				if err := r.SetRating(rating); err != nil {
					return err
				}
				return r.Sync(ctx)
			})
		},
	}
}

func removeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a resource and every statement referencing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, m *resource.Manager) error {
				r := m.Resource(args[0], "")
				defer r.Release()
				return r.Remove(ctx)
			})
		},
	}
}

func exportCmd(g *globals) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all resources as RDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, m *resource.Manager) error {
				exporter, err := export.FromStore(ctx, m.Store(), m.Graph())
				if err != nil {
					return err
				}
				out, err := exporter.Export(f)
				if err != nil {
					return err
				}
				if output == "" {
					_, err = fmt.Fprint(cmd.OutOrStdout(), out)
					return err
				}
				if err := os.WriteFile(output, []byte(out), 0644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				slog.Info("Exported resources", "path", output, "format", f, "subjects", exporter.Len())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatTurtle), "Output format (turtle, ntriples, jsonld)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}
