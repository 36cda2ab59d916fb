package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/existflow/clientpulse/internal/config"
	"github.com/existflow/clientpulse/internal/engine"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Store.DSN = filepath.Join(t.TempDir(), "app.db")
	cfg.Server.Addr = "127.0.0.1:0"
	return cfg
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), config.StoreConfig{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close(ctx)) })

	require.NoError(t, a.Migrate(ctx))
	c, err := a.Engine.CreateClient(ctx, engine.ClientInput{Name: "Acme"}, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", c.Name)
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Reconcile.Enabled = true
	cfg.Reconcile.Interval = time.Hour

	a, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
