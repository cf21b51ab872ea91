package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"long local part", "jane.doe@example.com", "ja***@example.com"},
		{"short local part", "ab@example.com", "***@example.com"},
		{"not an email", "not-an-email", "***@***"},
		{"double at", "a@b@example.com", "***@***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RedactEmail(tt.email))
		})
	}
}

func TestLogRedactsEmailFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, INFO)

	l.Log(INFO, "sent", "email", "jane.doe@example.com", "count", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ja***@example.com", entry["email"])
	assert.Equal(t, "3", entry["count"])
	assert.Equal(t, "sent", entry["msg"])
}

func TestLogRedactsEmbeddedEmails(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, INFO)

	l.Log(ERROR, "batch failed", "error", "smtp rejected jane.doe@example.com: 550")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "smtp rejected ja***@example.com: 550", entry["error"])
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WARN)

	l.Log(INFO, "dropped")
	assert.Zero(t, buf.Len())

	l.Log(ERROR, "kept")
	assert.NotZero(t, buf.Len())
}
