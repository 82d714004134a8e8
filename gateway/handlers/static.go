package handlers

import "net/http"

// Static emits a fixed response body, status, and header set.
type Static struct {
	Body        string
	ContentType string
	Headers     map[string]string
	Status      int
}

// ServeHTTP implements gateway.Handler.
func (h Static) ServeHTTP(w http.ResponseWriter, r *http.Request) (int, error) {
	ct := h.ContentType
	if ct == "" {
		ct = "text/html; charset=UTF-8"
	}
	status := h.Status
	if status == 0 {
		status = http.StatusOK
	}
	for k, v := range h.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(status)
	w.Write([]byte(h.Body))
	return 0, nil
}
