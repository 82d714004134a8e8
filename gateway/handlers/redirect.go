package handlers

import "net/http"

// Redirect always emits Status with a Location header set to TargetURI.
type Redirect struct {
	TargetURI string
	Status    int
}

// ServeHTTP implements gateway.Handler.
func (h Redirect) ServeHTTP(w http.ResponseWriter, r *http.Request) (int, error) {
	status := h.Status
	if status == 0 {
		status = http.StatusFound
	}
	w.Header().Set("Location", h.TargetURI)
	w.WriteHeader(status)
	return 0, nil
}
