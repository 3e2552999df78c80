package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.New("").ParseFS(templatesFS, "templates/*.html"))

const indexFile = "index.html"

// headClose is matched on doc itself so offsets never come from a case-mapped copy.
var headClose = regexp.MustCompile(`(?i)</head>`)

// sessionState is what the page sees of a brokered session: the opaque id and
// the listener's display name, nothing else.
type sessionState struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
}

type forbiddenPage struct {
	Name string
	IP   string
}

// assets is the pre-built single-page bundle shared by every listener.
type assets struct {
	dir   string
	files http.Handler
}

func newAssets(dir string) (*assets, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, ErrAssetsMissing
	}
	if _, err := os.Stat(filepath.Join(dir, indexFile)); err != nil {
		return nil, ErrAssetsMissing
	}
	return &assets{dir: dir, files: http.FileServer(http.Dir(dir))}, nil
}

func (a *assets) index() ([]byte, error) {
	return os.ReadFile(filepath.Join(a.dir, indexFile))
}

// serveFile serves urlPath when it names a regular file other than the index
// and reports whether it did.
func (a *assets) serveFile(w http.ResponseWriter, r *http.Request) bool {
	clean := path.Clean("/" + r.URL.Path)
	if clean == "/" || clean == "/"+indexFile {
		return false
	}
	f, err := http.Dir(a.dir).Open(clean)
	if err != nil {
		return false
	}
	info, err := f.Stat()
	f.Close()
	if err != nil || info.IsDir() {
		return false
	}
	a.files.ServeHTTP(w, r)
	return true
}

// injectSession places the session script right before </head>, or at the
// top of the document when there is no head.
func injectSession(doc []byte, state sessionState) ([]byte, error) {
	var script bytes.Buffer
	if err := templates.ExecuteTemplate(&script, "session", state); err != nil {
		return nil, err
	}
	loc := headClose.FindIndex(doc)
	if loc == nil {
		return append(script.Bytes(), doc...), nil
	}
	idx := loc[0]
	out := make([]byte, 0, len(doc)+script.Len())
	out = append(out, doc[:idx]...)
	out = append(out, script.Bytes()...)
	out = append(out, doc[idx:]...)
	return out, nil
}

func renderForbidden(w http.ResponseWriter, page forbiddenPage) {
	noCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_ = templates.ExecuteTemplate(w, "forbidden.html", page)
}

func writeDocument(w http.ResponseWriter, doc []byte, cache bool) {
	if !cache {
		noCache(w)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}
