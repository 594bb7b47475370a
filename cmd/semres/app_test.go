package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semres/config"
	"github.com/c360studio/semres/storage"
	"github.com/c360studio/semres/variant"
	"github.com/c360studio/semres/vocabulary/nao"
)

func TestAppStartStop(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.NATS.StoreDir = t.TempDir()

	app := NewApp(cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, app.Start(ctx, false))

	// Verify components are initialized
	assert.NotNil(t, app.embeddedServer, "embedded NATS server not started")
	assert.NotNil(t, app.natsConn, "NATS connection not initialized")
	assert.NotNil(t, app.js, "JetStream not initialized")
	assert.NotNil(t, app.store, "store not initialized")
	assert.NotNil(t, app.publisher, "graph publisher not initialized")
	require.NotNil(t, app.Manager())

	r := app.Manager().Resource("urn:app", "")
	require.NoError(t, r.SetProperty(nao.PrefLabel, variant.NewString("published")))
	require.NoError(t, r.Sync(ctx))
	r.Release()

	// The statement landed in the KV bucket.
	stmts, err := app.store.Match(ctx, storage.Pattern{Subject: "urn:app", Predicate: nao.PrefLabel})
	require.NoError(t, err)
	require.Len(t, stmts, 1)

	// And the entity was published to the graph stream.
	stream, err := app.js.Stream(ctx, cfg.Graph.Stream)
	require.NoError(t, err)
	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.State.Msgs)

	require.NoError(t, app.Shutdown())
	assert.True(t, app.natsConn.IsClosed(), "NATS connection not closed")
}

func TestAppMemoryBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Backend = config.BackendMemory
	cfg.NATS.Embedded = false
	cfg.Graph.Publish = false

	app := NewApp(cfg, nil)
	ctx := context.Background()
	require.NoError(t, app.Start(ctx, true))
	defer func() { require.NoError(t, app.Shutdown()) }()

	assert.Nil(t, app.natsConn, "memory backend needs no NATS")
	assert.Nil(t, app.publisher)
	assert.True(t, app.Manager().AutoSync())
}

func TestAppLoadsOntologyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "classes.yaml")
	content := `
prefixes:
  ex: http://example.org/ns#
classes:
  ex:Invoice: [ex:Document]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := config.DefaultConfig()
	cfg.Store.Backend = config.BackendMemory
	cfg.NATS.Embedded = false
	cfg.Graph.Publish = false
	cfg.Ontology.File = path

	app := NewApp(cfg, nil)
	ctx := context.Background()
	require.NoError(t, app.Start(ctx, false))
	defer func() { require.NoError(t, app.Shutdown()) }()

	assert.True(t, app.onto.IsSubClassOf("http://example.org/ns#Invoice", "http://example.org/ns#Document"))
	assert.Nil(t, app.watcher, "one-shot start does not watch")
}

func TestAppExternalNATSUnavailable(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.NATS.Embedded = false
	cfg.NATS.URL = "nats://127.0.0.1:1"
	cfg.NATS.ConnectTimeout = 500 * time.Millisecond

	app := NewApp(cfg, nil)
	err := app.Start(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start NATS")
	_ = app.Shutdown()
}
