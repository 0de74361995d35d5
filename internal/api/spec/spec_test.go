package spec

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAPIHandlerServesDocumentWithETag(t *testing.T) {
	h := OpenAPIHandler()

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "/v1/markets/{id}/settle")
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	h(w, req)
	assert.Equal(t, http.StatusNotModified, w.Code)
}
