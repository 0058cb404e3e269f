package zkwasm

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"mode":          func(c *Config) { c.Mode = ExecutionMode(7) },
		"pool size":     func(c *Config) { c.PoolSize = -2 },
		"timeout":       func(c *Config) { c.NodeTimeout = -time.Second },
		"node scheme":   func(c *Config) { c.NodeURL = "ftp://node" },
		"http3 on http": func(c *Config) { c.NodeURL, c.NodeHTTP3 = "http://node", true },
		"log level":     func(c *Config) { c.LogLevel = "loud" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfig(t *testing.T) {
	testChdir(t, t.TempDir())
	require.NoError(t, os.WriteFile("zkwasm.yaml", []byte(`
mode: serial
pool_size: 3
key_cache_dir: keys
node_url: https://node.example
node_http3: true
node_timeout: 5s
log_level: debug
`), 0o600))

	cfg, err := LoadConfig("zkwasm.yaml")
	require.NoError(t, err)
	require.Equal(t, Config{
		Mode:        Serial,
		PoolSize:    3,
		KeyCacheDir: "keys",
		NodeURL:     "https://node.example",
		NodeHTTP3:   true,
		NodeTimeout: 5 * time.Second,
		LogLevel:    "debug",
	}, cfg)
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	testChdir(t, t.TempDir())
	require.NoError(t, os.WriteFile("empty.yaml", []byte("pool_size: 2\n"), 0o600))
	cfg, err := LoadConfig("empty.yaml")
	require.NoError(t, err)
	want := Defaults()
	want.PoolSize = 2
	require.Equal(t, want, cfg)
}

func TestLoadConfigRejects(t *testing.T) {
	testChdir(t, t.TempDir())
	require.NoError(t, os.WriteFile("bad-mode.yaml", []byte("mode: gpu\n"), 0o600))
	require.NoError(t, os.WriteFile("bad-yaml.yaml", []byte("pool_size: [\n"), 0o600))
	require.NoError(t, os.WriteFile("bad-level.yaml", []byte("log_level: loud\n"), 0o600))

	for _, path := range []string{"bad-mode.yaml", "bad-yaml.yaml", "bad-level.yaml", "missing.yaml", "../escape.yaml"} {
		_, err := LoadConfig(path)
		require.Error(t, err, path)
	}
}

func TestLoadWithKeyCacheDir(t *testing.T) {
	testChdir(t, t.TempDir())
	cfg := Defaults()
	cfg.KeyCacheDir = "keys"
	cfg.NodeURL = "http://127.0.0.1:1"
	b, err := Load(cfg)
	require.NoError(t, err)
	require.NoError(t, b.Close())
	info, err := os.Stat("keys")
	require.NoError(t, err)
	require.True(t, info.IsDir())

	cfg.NodeURL = "ftp://node"
	_, err = Load(cfg)
	requireKind(t, err, KindInvalidInput)
}

// captureStderr runs fn with os.Stderr redirected and returns what it wrote.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	saved := os.Stderr
	os.Stderr = w
	defer func() { os.Stderr = saved }()

	done := make(chan string)
	go func() {
		out, _ := io.ReadAll(r)
		done <- string(out)
	}()
	fn()
	require.NoError(t, w.Close())
	return <-done
}

func TestLoadAppliesLogLevel(t *testing.T) {
	load := func(level string) func() {
		return func() {
			cfg := Defaults()
			cfg.LogLevel = level
			b, err := Load(cfg)
			require.NoError(t, err)
			require.NoError(t, b.Close())
		}
	}
	require.Contains(t, captureStderr(t, load("info")), "zkwasm loaded")
	require.NotContains(t, captureStderr(t, load("warn")), "zkwasm loaded")
	require.Empty(t, captureStderr(t, load("off")))
}

// testChdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func testChdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
