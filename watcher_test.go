package goknow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanReloader chan Config

func (c chanReloader) Reload(cfg Config) error {
	c <- cfg
	return nil
}

func TestWatchConfigReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "goknow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("relevance_threshold: 0.6\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloads := make(chanReloader, 8)
	done := make(chan error, 1)
	go func() { done <- WatchConfig(ctx, path, reloads, nil) }()

	// The watcher may not be registered yet; rewrite less often than the
	// debounce until it reacts.
	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(1500 * time.Millisecond)
	defer tick.Stop()
	var got Config
wait:
	for {
		select {
		case got = <-reloads:
			break wait
		case <-tick.C:
			content := fmt.Sprintf("relevance_threshold: 0.9\n# %d\n", time.Now().UnixNano())
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		case <-deadline:
			t.Fatal("configuration was not reloaded")
		}
	}
	assert.Equal(t, 0.9, got.RelevanceThreshold)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchConfigMissingDirectory(t *testing.T) {
	err := WatchConfig(context.Background(), filepath.Join(t.TempDir(), "nope", "goknow.yaml"), make(chanReloader), nil)
	assert.Error(t, err)
}
