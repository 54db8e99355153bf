package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerRenamesCoreKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, slog.LevelInfo)).With(slog.String("service", "marketd"))
	logger.Info("market activated", slog.String("contract", "fuelc1xyz"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "market activated", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "marketd", line["service"])
	require.Equal(t, "fuelc1xyz", line["contract"])
	require.Contains(t, line, "timestamp")
}

func TestHandlerRedactsSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, slog.LevelDebug))
	logger.Debug("unlock", slog.String("passphrase", "hunter2"), slog.String("Signature", "0xabc"), slog.String("owner", "fuel1abc"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, RedactedValue, line["passphrase"])
	require.Equal(t, RedactedValue, line["Signature"])
	require.Equal(t, "fuel1abc", line["owner"])
}

func TestHandlerHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, slog.LevelWarn))
	logger.Info("dropped")
	require.Zero(t, buf.Len())
}

func TestMaskField(t *testing.T) {
	require.Equal(t, "", MaskValue("  "))
	require.Equal(t, RedactedValue, MaskField("token", "abc").Value.String())
	require.True(t, IsSensitive(" Private_Key "))
	require.False(t, IsSensitive("contract"))
}
