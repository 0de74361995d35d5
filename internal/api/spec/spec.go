package spec

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"net/http"
	"time"
)

var (
	//go:embed openapi.yaml
	openapiFS embed.FS
)

// OpenAPIHandler serves the embedded OpenAPI specification. The document is
// read once; responses carry a content hash ETag so Swagger UI revalidates
// cheaply.
func OpenAPIHandler() http.HandlerFunc {
	content, err := openapiFS.ReadFile("openapi.yaml")
	etag := ""
	if err == nil {
		sum := sha256.Sum256(content)
		etag = `"` + hex.EncodeToString(sum[:8]) + `"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if err != nil {
			http.Error(w, "openapi spec not available", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeContent(w, r, "openapi.yaml", time.Time{}, bytes.NewReader(content))
	}
}
