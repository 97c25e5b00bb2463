package masterdata

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lotkeeper/lotkeeper/internal/platform/httpx"
)

func newTestHandler() *Handler {
	return &Handler{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestFailMasksInternalErrors(t *testing.T) {
	h := newTestHandler()
	rec := httptest.NewRecorder()

	h.fail(rec, "list products", errors.New("dial tcp 127.0.0.1:5432: connection refused"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal error, check server logs")
	require.NotContains(t, rec.Body.String(), "connection refused")
}

func TestFailPassesClientErrorsThrough(t *testing.T) {
	h := newTestHandler()
	rec := httptest.NewRecorder()

	h.fail(rec, "get product", fmt.Errorf("product SKU-1: %w", httpx.ErrNotFound))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "product SKU-1")
}
