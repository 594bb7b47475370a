package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/semres/config"
	"github.com/c360studio/semres/graph"
	"github.com/c360studio/semres/ontology"
	"github.com/c360studio/semres/resource"
	"github.com/c360studio/semres/storage"
)

// App is the main application that wires together all components.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	// NATS
	embeddedServer *server.Server
	natsConn       *nats.Conn
	js             jetstream.JetStream

	// Storage
	store storage.Store

	// Resources
	onto      *ontology.Model
	watcher   *ontology.Watcher
	publisher *graph.Publisher
	manager   *resource.Manager
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{cfg: cfg, logger: logger}
}

// Start initializes and starts all components. The auto-sync loop only runs
// when background is set.
func (a *App) Start(ctx context.Context, background bool) error {
	if a.cfg.NeedsNATS() {
		if err := a.startNATS(ctx); err != nil {
			return fmt.Errorf("start NATS: %w", err)
		}
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	a.store = store

	if err := a.loadOntology(ctx, background); err != nil {
		return fmt.Errorf("load ontology: %w", err)
	}

	opts := []resource.Option{
		resource.WithLogger(a.logger),
		resource.WithOntology(a.onto),
		resource.WithURIPrefix(a.cfg.Resources.URIPrefix),
		resource.WithContext(a.cfg.Resources.Graph),
		resource.WithAutoSync(a.cfg.Resources.AutoSync && background),
	}
	if a.cfg.Graph.Publish && a.js != nil {
		if err := a.ensureGraphStream(ctx); err != nil {
			return fmt.Errorf("ensure graph stream: %w", err)
		}
		a.publisher = graph.NewPublisher(a.js, a.cfg.Graph.Subject, a.logger)
		opts = append(opts, resource.WithSyncObserver(a.publisher))
	}
	a.manager = resource.NewManager(a.store, opts...)
	a.manager.OnError(func(uri string, code resource.ErrorCode) {
		a.logger.Debug("Resource error reported", "uri", uri, "code", code.String())
	})

	if a.cfg.Resources.AutoSync && background {
		a.manager.StartAutoSync(ctx, a.cfg.Resources.SyncInterval)
	}

	a.logger.Debug("Components initialized",
		"backend", a.cfg.Store.Backend,
		"graph", a.cfg.Resources.Graph,
		"publish", a.publisher != nil)
	return nil
}

// Manager returns the resource manager. Valid after Start.
func (a *App) Manager() *resource.Manager {
	return a.manager
}

// retry runs op with exponential backoff bounded by the configured connect
// timeout.
func (a *App) retry(ctx context.Context, what string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = a.cfg.NATS.ConnectTimeout
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		a.logger.Warn("Connection attempt failed", "target", what, "error", err, "retry_in", next)
	})
}

func (a *App) startNATS(ctx context.Context) error {
	if a.cfg.NATS.URL != "" && !a.cfg.NATS.Embedded {
		// Connect to external NATS
		a.logger.Info("Connecting to NATS", "url", a.cfg.NATS.URL)
		err := a.retry(ctx, a.cfg.NATS.URL, func() error {
			conn, err := nats.Connect(a.cfg.NATS.URL)
			if err != nil {
				return err
			}
			a.natsConn = conn
			return nil
		})
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
	} else {
		// Start embedded NATS server
		a.logger.Info("Starting embedded NATS server", "store_dir", a.cfg.NATS.StoreDir)
		opts := &server.Options{
			Port:      -1, // Random available port
			JetStream: true,
			StoreDir:  a.cfg.NATS.StoreDir,
			NoLog:     true,
			NoSigs:    true,
		}

		ns, err := server.NewServer(opts)
		if err != nil {
			return fmt.Errorf("create embedded NATS server: %w", err)
		}

		go ns.Start()

		// Wait for server to be ready
		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return fmt.Errorf("embedded NATS server failed to start")
		}

		a.embeddedServer = ns

		// Connect to embedded server
		conn, err := nats.Connect(ns.ClientURL())
		if err != nil {
			ns.Shutdown()
			return fmt.Errorf("connect to embedded NATS: %w", err)
		}
		a.natsConn = conn
	}

	// Get JetStream context
	js, err := jetstream.New(a.natsConn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	a.js = js

	return nil
}

func (a *App) openStore(ctx context.Context) (storage.Store, error) {
	switch a.cfg.Store.Backend {
	case config.BackendMemory:
		return storage.NewMemStore()
	case config.BackendNATS:
		return storage.NewKVStore(ctx, a.js, a.cfg.NATS.Bucket)
	case config.BackendRedis:
		rs := storage.NewRedisStore("tcp", a.cfg.Redis.Addr, a.cfg.Redis.Prefix, a.cfg.Redis.MaxActive)
		if err := a.retry(ctx, a.cfg.Redis.Addr, rs.Ping); err != nil {
			_ = rs.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", a.cfg.Store.Backend)
	}
}

// loadOntology builds the class hierarchy from the configured file and the
// subclass statements in the store. With watch enabled the file is reloaded
// on change and the store hierarchy reapplied after each reload.
func (a *App) loadOntology(ctx context.Context, watch bool) error {
	a.onto = ontology.Default()

	fromStore := func() {
		n, err := ontology.FromStore(ctx, a.store, a.onto)
		if err != nil {
			a.logger.Warn("Failed to read class hierarchy from store", "error", err)
			return
		}
		a.logger.Debug("Loaded class hierarchy from store", "statements", n)
	}

	path := a.cfg.Ontology.File
	switch {
	case path == "":
	case watch && a.cfg.Ontology.Watch:
		w, err := ontology.NewWatcher(path, a.onto, a.logger)
		if err != nil {
			return err
		}
		w.OnReload = func(classes int, err error) {
			if err == nil {
				fromStore()
				a.logger.Info("Ontology reloaded", "path", path, "classes", classes)
			}
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		a.watcher = w
		return nil
	default:
		hierarchy, err := ontology.LoadFile(path)
		if err != nil {
			return err
		}
		a.onto.Replace(hierarchy)
	}

	fromStore()
	return nil
}

func (a *App) ensureGraphStream(ctx context.Context) error {
	_, err := a.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     a.cfg.Graph.Stream,
		Subjects: []string{a.cfg.Graph.Subject},
	})
	return err
}

// Shutdown gracefully stops all components. Pending edits are flushed first.
func (a *App) Shutdown() error {
	var errs []error

	if a.manager != nil {
		if err := a.manager.Close(); err != nil {
			errs = append(errs, fmt.Errorf("flush resources: %w", err))
		}
	}
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop ontology watcher: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}

	// Close NATS connection
	if a.natsConn != nil {
		_ = a.natsConn.Drain()
		a.natsConn.Close()
	}

	// Shutdown embedded server
	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
	}

	return errors.Join(errs...)
}
