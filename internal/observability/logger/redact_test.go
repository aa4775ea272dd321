package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewRedactHandler(slog.NewJSONHandler(&buf, nil)))

	log.With(slog.String("session_token", "abc")).Info("event",
		slog.String("password", "hunter2"),
		slog.String("registration_code", "x1y2z3"),
		slog.Group("request", slog.String("authorization", "Bearer t"), slog.String("path", "/login")),
		slog.String("user_id", "u-1"),
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, redacted, entry["session_token"])
	assert.Equal(t, redacted, entry["password"])
	assert.Equal(t, redacted, entry["registration_code"])
	assert.Equal(t, "u-1", entry["user_id"])

	req := entry["request"].(map[string]any)
	assert.Equal(t, redacted, req["authorization"])
	assert.Equal(t, "/login", req["path"])
}

func TestIsSecret(t *testing.T) {
	for key, want := range map[string]bool{
		"password":     true,
		"new_password": true,
		"Token":        true,
		"code":         true,
		"status_code":  false,
		"email":        false,
		"user_id":      false,
	} {
		assert.Equal(t, want, isSecret(key), key)
	}
}
