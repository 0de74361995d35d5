package problem

import (
	"encoding/json"
	"net/http"
)

const contentType = "application/problem+json"
const baseTypeURL = "https://errors.parimutuel.markets/"

// Details represents RFC 7807 Problem Details.
type Details struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance"`
	RequestID string `json:"request_id"`

	InvalidParams []InvalidParam `json:"invalid_params,omitempty"`
}

// InvalidParam names one request field that failed validation.
type InvalidParam struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func Type(slug string) string {
	return baseTypeURL + slug
}

// Write sends RFC 7807-compliant errors.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	write(w, r, Details{Type: problemType, Title: title, Status: status, Detail: detail})
}

// WriteInvalidParams sends a 400 listing the offending fields.
func WriteInvalidParams(w http.ResponseWriter, r *http.Request, detail string, params []InvalidParam) {
	write(w, r, Details{
		Type:          Type("request/validation-failed"),
		Status:        http.StatusBadRequest,
		Detail:        detail,
		InvalidParams: params,
	})
}

func write(w http.ResponseWriter, r *http.Request, d Details) {
	status, problemType, title := d.Status, d.Type, d.Title
	if title == "" {
		title = http.StatusText(status)
	}
	if problemType == "" {
		problemType = "about:blank"
	}
	instance := ""
	requestID := ""
	if r != nil {
		instance = r.URL.Path
		requestID = r.Header.Get("X-Trace-ID")
	}
	if requestID == "" {
		requestID = w.Header().Get("X-Trace-ID")
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	d.Type, d.Title, d.Instance, d.RequestID = problemType, title, instance, requestID
	_ = json.NewEncoder(w).Encode(d)
}
