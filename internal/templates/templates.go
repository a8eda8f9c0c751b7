package templates

import (
	"embed"
	"html"
	"net/http"
	"strings"
)

//go:embed home.html game.html
var pages embed.FS

var version = "dev"

// SetVersion sets the build string shown in page footers.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// WriteHomeHTML serves the home page template
func WriteHomeHTML(w http.ResponseWriter) {
	writePage(w, "home.html", nil)
}

// WriteGameHTML serves the game page template with session ID substitution
func WriteGameHTML(w http.ResponseWriter, sessionID string) {
	writePage(w, "game.html", map[string]string{"{{GAME_ID}}": html.EscapeString(sessionID)})
}

func writePage(w http.ResponseWriter, name string, vars map[string]string) {
	content, err := pages.ReadFile(name)
	if err != nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}
	page := strings.ReplaceAll(string(content), "{{VERSION}}", html.EscapeString(version))
	for k, v := range vars {
		page = strings.ReplaceAll(page, k, v)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}
