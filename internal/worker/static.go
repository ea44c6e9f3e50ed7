package worker

import (
	"embed"
	"net/http"
)

//go:embed static/dashboard.html
var staticFS embed.FS

// serveDashboard serves the live session dashboard.
func serveDashboard(w http.ResponseWriter, _ *http.Request) {
	content, err := staticFS.ReadFile("static/dashboard.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	_, _ = w.Write(content)
}
