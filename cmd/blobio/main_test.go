package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/blobio"
	"github.com/hupe1980/blobio/backend/memory"
)

type result struct {
	stdout string
	stderr string
	err    error
}

func run(t *testing.T, client blobio.Client, stdin string, args ...string) result {
	t.Helper()

	var stdout, stderr bytes.Buffer
	a := newApp()
	a.stdin = strings.NewReader(stdin)
	a.stdout = &stdout
	a.stderr = &stderr
	if client != nil {
		a.newClient = func(context.Context, *viper.Viper) (blobio.Client, error) { return client, nil }
	}

	cmd := a.rootCmd()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())

	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestPutCatStat(t *testing.T) {
	mem := memory.New()
	path := "azfs://account/container/dir/a.txt"

	res := run(t, mem, "hello blob", "--block-size=4", "put", path)
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "uploaded 10 bytes")

	data, ok := mem.Get(blobio.MustParseLocator(path))
	require.True(t, ok)
	assert.Equal(t, "hello blob", string(data))

	res = run(t, mem, "", "--read-buffer=3", "cat", path)
	require.NoError(t, res.err)
	assert.Equal(t, "hello blob", res.stdout)

	res = run(t, mem, "", "cat", "--offset=6", "--length=3", path)
	require.NoError(t, res.err)
	assert.Equal(t, "blo", res.stdout)

	res = run(t, mem, "", "stat", path)
	require.NoError(t, res.err)
	assert.Equal(t, path+"\t10\n", res.stdout)
}

func TestLsCpRm(t *testing.T) {
	mem := memory.New(memory.WithPageSize(1))
	a := blobio.MustParseLocator("azfs://account/container/logs/a")
	mem.Put(a, []byte("12345"))
	mem.Put(a.WithKey("logs/b"), []byte("1"))
	mem.Put(a.WithKey("other"), []byte("1"))

	res := run(t, mem, "", "cp", a.String(), "azfs://account/container/logs/c")
	require.NoError(t, res.err)

	res = run(t, mem, "", "ls", "azfs://account/container/logs/")
	require.NoError(t, res.err)
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[0], "azfs://account/container/logs/a"))
	assert.Contains(t, lines[2], "5  azfs://account/container/logs/c")

	res = run(t, mem, "", "rm", "azfs://account/container/logs/a", "azfs://account/container/logs/missing", "azfs://account/container/logs/c")
	require.NoError(t, res.err)
	assert.Equal(t, 2, mem.Len())

	res = run(t, mem, "", "rm", "azfs://account/container/logs/b", "azfs://bad")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "1 of 2 deletes failed")
}

func TestExists(t *testing.T) {
	mem := memory.New()
	mem.Put(blobio.MustParseLocator("azfs://account/container/x"), []byte("x"))

	res := run(t, mem, "", "exists", "azfs://account/container/x", "azfs://account/container/y")
	require.NoError(t, res.err)
	assert.Equal(t, "azfs://account/container/x\ttrue\nazfs://account/container/y\tfalse\n", res.stdout)

	res = run(t, mem, "", "exists", "azfs://account/container/x", "azfs://account")
	require.Error(t, res.err)
	assert.True(t, blobio.Classify(res.err) == blobio.KindInvalidPath)
}

func TestMetricsDump(t *testing.T) {
	mem := memory.New()
	res := run(t, mem, "abc", "--metrics", "put", "azfs://account/container/m")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "blobio_operations_total")
	assert.Contains(t, res.stderr, `op="commit"`)
}

func TestConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "blobio.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("backend: objstore\nobjstore-dir: "+dir+"\n"), 0o600))

	res := run(t, nil, "persisted", "--config", cfg, "put", "azfs://account/container/k")
	require.NoError(t, res.err)

	t.Setenv("BLOBIO_BACKEND", "objstore")
	t.Setenv("BLOBIO_OBJSTORE_DIR", dir)

	res = run(t, nil, "", "cat", "azfs://account/container/k")
	require.NoError(t, res.err)
	assert.Equal(t, "persisted", res.stdout)
}

func TestBadInput(t *testing.T) {
	res := run(t, nil, "", "--backend=nope", "ls", "azfs://a/c/")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), `unknown backend "nope"`)

	res = run(t, nil, "", "--log-level=loud", "ls", "azfs://a/c/")
	require.Error(t, res.err)

	res = run(t, nil, "", "--backend=objstore", "ls", "azfs://a/c/")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "--objstore-dir is required")

	res = run(t, memory.New(), "", "cat", "azfs://a/c/missing")
	require.Error(t, res.err)
	assert.True(t, blobio.IsNotFound(res.err))
}
