package main

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/stevemurr/student-manager/config"
	"github.com/stevemurr/student-manager/student"
)

func TestIntersect(t *testing.T) {
	a := []student.Record{{ID: 1}, {ID: 2}, {ID: 3}}
	b := []student.Record{{ID: 3}, {ID: 1}}
	c := []student.Record{{ID: 1}}

	assert.Equal(t, []student.Record{{ID: 1}, {ID: 3}}, intersect([][]student.Record{a, b}))
	assert.Equal(t, []student.Record{{ID: 1}}, intersect([][]student.Record{a, b, c}))
	assert.Equal(t, []student.Record{}, intersect([][]student.Record{a, {}}))
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger(config.LoggingConfig{Level: "info"}, false)
	require.NoError(t, err)
	_, err = newLogger(config.LoggingConfig{Level: "debug", Development: true}, false)
	require.NoError(t, err)
	_, err = newLogger(config.LoggingConfig{Level: "loud"}, false)
	require.Error(t, err)
}

func TestStatsAndListCommands(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "students.json")
	require.NoError(t, os.WriteFile(doc, []byte(`{"students": [
		{"id": 1, "name": "Alice", "age": 20, "grade": "A", "subjects": ["Math"]},
		{"id": 2, "name": "Bob", "age": 22, "grade": "B", "subjects": ["Math", "Art"]}
	]}`), 0o644))
	cfgPath := filepath.Join(dir, "students.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  path: "+doc+"\nlogging:\n  level: error\n"), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", cfgPath, "stats"})
	require.NoError(t, rootCmd.Execute())
	assert.JSONEq(t, `{
		"total_students": 2,
		"average_age": 21,
		"grade_distribution": {"A": 1, "B": 1},
		"unique_subjects": ["Art", "Math"]
	}`, out.String())

	out.Reset()
	rootCmd.SetArgs([]string{"--config", cfgPath, "list", "--min-age", "21", "--name", "o"})
	require.NoError(t, rootCmd.Execute())
	assert.JSONEq(t, `[{"id": 2, "name": "Bob", "age": 22, "grade": "B", "subjects": ["Math", "Art"]}]`, out.String())
}

func TestServeWatcherFailureStartsNothing(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	prevCfg, prevLogger := cfg, logger
	t.Cleanup(func() { cfg, logger = prevCfg, prevLogger })

	cfg = config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = port
	cfg.Store.Backend = "memory"
	cfg.Store.Watch = true
	cfg.Store.Path = filepath.Join(t.TempDir(), "missing", "students.json")
	logger = zap.NewNop()

	require.Error(t, runServe(serveCmd, nil))

	// The listener was never started, so the port is still free.
	l, err = net.Listen("tcp", cfg.Server.Addr())
	require.NoError(t, err)
	require.NoError(t, l.Close())
}
