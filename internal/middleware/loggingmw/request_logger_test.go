package loggingmw

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRequest(t *testing.T, handler echo.HandlerFunc) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	e := echo.New()
	e.Use(RequestLogger(logger))
	e.GET("/things", handler)

	req := httptest.NewRequest(http.MethodGet, "/things", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestRequestLogger_SuccessLogsInfo(t *testing.T) {
	t.Parallel()

	entry := runRequest(t, func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	assert.Equal(t, "INFO", entry["level"])
	assert.EqualValues(t, 200, entry["status"])
}

func TestRequestLogger_ClientErrorLogsWarn(t *testing.T) {
	t.Parallel()

	entry := runRequest(t, func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "no such thing")
	})
	assert.Equal(t, "WARN", entry["level"])
	assert.EqualValues(t, 404, entry["status"])
	assert.Contains(t, entry["error"], "no such thing")
}

func TestRequestLogger_ServerErrorLogsError(t *testing.T) {
	t.Parallel()

	entry := runRequest(t, func(c echo.Context) error {
		return errors.New("boom")
	})
	assert.Equal(t, "ERROR", entry["level"])
	assert.EqualValues(t, 500, entry["status"])
	assert.Contains(t, entry["error"], "boom")
}
