package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Disabled(t *testing.T) {
	var out bytes.Buffer
	Init(Options{Enabled: false, Writer: &out})
	t.Cleanup(func() { Set(nil) })

	Info("hidden", "k", 1)
	assert.Zero(t, out.Len())
}

func TestInit_TextLevel(t *testing.T) {
	var out bytes.Buffer
	Init(Options{Enabled: true, Writer: &out, Level: slog.LevelWarn})
	t.Cleanup(func() { Set(nil) })

	Info("skipped")
	Warn("pool low", "free", 3)

	assert.NotContains(t, out.String(), "skipped")
	assert.Contains(t, out.String(), "pool low")
	assert.Contains(t, out.String(), "free=3")
}

func TestInit_JSON(t *testing.T) {
	var out bytes.Buffer
	Init(Options{Enabled: true, Writer: &out, JSON: true})
	t.Cleanup(func() { Set(nil) })

	Info("map fetched", "size", 480)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &rec))
	assert.Equal(t, "map fetched", rec["msg"])
	assert.EqualValues(t, 480, rec["size"])
}
