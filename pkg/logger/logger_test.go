package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventdrop/pkg/logger"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json format with static attrs", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := logger.New(
			logger.Config{Level: "info", Format: "json"},
			logger.WithOutput(&buf),
			logger.WithAttr(slog.String("service", "eventdrop")),
		)

		log.Info("hello", slog.String("k", "v"))

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "hello", record["msg"])
		assert.Equal(t, "v", record["k"])
		assert.Equal(t, "eventdrop", record["service"])
	})

	t.Run("level filtering", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := logger.New(logger.Config{Level: "warn", Format: "text"}, logger.WithOutput(&buf))

		log.Info("dropped")
		log.Warn("kept")

		out := buf.String()
		assert.NotContains(t, out, "dropped")
		assert.Contains(t, out, "kept")
	})

	t.Run("unknown level defaults to info", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := logger.New(logger.Config{Level: "bogus", Format: "text"}, logger.WithOutput(&buf))

		log.Debug("dropped")
		log.Info("kept")

		out := buf.String()
		assert.NotContains(t, out, "dropped")
		assert.Contains(t, out, "kept")
	})
}
