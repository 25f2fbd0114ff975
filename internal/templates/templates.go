package templates

import (
	"embed"
	"html/template"
	"net/http"
	"sync"
)

//go:embed *.html
var files embed.FS

var (
	pages  = template.Must(template.ParseFS(files, "*.html"))
	mu     sync.RWMutex
	commit = "dev"
)

// SetCommit sets the build revision shown in page footers.
func SetCommit(c string) {
	mu.Lock()
	commit = c
	mu.Unlock()
}

// Commit returns the revision set by SetCommit.
func Commit() string {
	mu.RLock()
	defer mu.RUnlock()
	return commit
}

type pageData struct {
	ID     string
	Commit string
}

func write(w http.ResponseWriter, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
	}
}

// WriteHomeHTML serves the home page template
func WriteHomeHTML(w http.ResponseWriter) {
	write(w, "home.html", pageData{Commit: Commit()})
}

// WriteBoardHTML serves the board page for session id
func WriteBoardHTML(w http.ResponseWriter, id string) {
	write(w, "board.html", pageData{ID: id, Commit: Commit()})
}
