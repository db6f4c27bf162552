package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	nethttp "net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-restclient/logger"
)

func TestTruncatePayload(t *testing.T) {
	t.Run("short payload passes through", func(t *testing.T) {
		payload := []byte("short")
		assert.Equal(t, payload, truncatePayload(payload))
	})

	t.Run("payload at the cap passes through", func(t *testing.T) {
		payload := bytes.Repeat([]byte("a"), maxLoggedPayload)
		assert.Equal(t, payload, truncatePayload(payload))
	})

	t.Run("long payload is clipped and marked", func(t *testing.T) {
		payload := bytes.Repeat([]byte("a"), maxLoggedPayload+500)
		got := truncatePayload(payload)

		assert.True(t, bytes.HasSuffix(got, []byte("... (truncated)")))
		assert.Equal(t, payload[:maxLoggedPayload], got[:maxLoggedPayload])
		assert.Len(t, got, maxLoggedPayload+len("... (truncated)"))
	})

	t.Run("original slice is not mutated", func(t *testing.T) {
		payload := bytes.Repeat([]byte("a"), maxLoggedPayload+10)
		truncatePayload(payload)

		assert.Equal(t, bytes.Repeat([]byte("a"), maxLoggedPayload+10), payload)
	})

	t.Run("binary payload is summarized", func(t *testing.T) {
		payload := []byte{0x89, 0x50, 0x4E, 0x47}
		assert.Equal(t, []byte("<binary payload, 4 bytes>"), truncatePayload(payload))
	})
}

// logLines decodes each JSON line the client logged.
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &line))
		lines = append(lines, line)
	}
	return lines
}

func findLogLine(lines []map[string]any, message string) map[string]any {
	for _, line := range lines {
		if line["message"] == message {
			return line
		}
	}
	return nil
}

func TestClientLogsRequestAndResponse(t *testing.T) {
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.Write([]byte(testDataBody))
	}))
	defer server.Close()

	var buf bytes.Buffer
	client := mustClient(t, NewBuilder(server.URL).
		WithLogger(logger.NewWithOutput("info", false, &buf)))

	_, err := client.Fetch(context.Background(), "/items", nil)
	require.NoError(t, err)

	lines := logLines(t, &buf)

	request := findLogLine(lines, "REST client request")
	require.NotNil(t, request, "request log line missing")
	assert.Equal(t, "outbound", request["direction"])
	assert.Equal(t, "GET", request["method"])
	assert.Contains(t, request["url"], "/items")
	assert.Equal(t, float64(1), request["attempt"])

	response := findLogLine(lines, "REST client response")
	require.NotNil(t, response, "response log line missing")
	assert.Equal(t, "inbound", response["direction"])
	assert.Equal(t, float64(200), response["status"])
	assert.Equal(t, float64(1), response["attempts"])
	assert.Equal(t, float64(1), response["call_count"])
}

func TestClientLogsFailure(t *testing.T) {
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.WriteHeader(nethttp.StatusBadRequest)
	}))
	defer server.Close()

	var buf bytes.Buffer
	client := mustClient(t, NewBuilder(server.URL).
		WithLogger(logger.NewWithOutput("info", false, &buf)))

	_, err := client.Fetch(context.Background(), "/items", nil)
	require.Error(t, err)

	lines := logLines(t, &buf)
	failure := findLogLine(lines, "REST client request failed")
	require.NotNil(t, failure, "failure log line missing")
	assert.Equal(t, "warn", failure["level"])
	assert.Equal(t, "bad_request", failure["kind"])
	assert.Equal(t, float64(1), failure["attempts"])
}

func TestClientLogsTruncatedBody(t *testing.T) {
	big := strings.Repeat("x", maxLoggedPayload+200)
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.Write([]byte(big))
	}))
	defer server.Close()

	var buf bytes.Buffer
	client := mustClient(t, NewBuilder(server.URL).
		WithLogger(logger.NewWithOutput("info", false, &buf)))

	_, err := client.Fetch(context.Background(), "/big", nil)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "... (truncated)")
	assert.NotContains(t, buf.String(), strings.Repeat("x", maxLoggedPayload+1),
		"the full payload must never reach the log")
}
