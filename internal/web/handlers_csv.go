package web

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/DanceEntry/internal/core"
	"github.com/JonMunkholm/DanceEntry/internal/logging"
)

var timeNow = time.Now

// writeCSV sends body as a CSV attachment.
func writeCSV(w http.ResponseWriter, filename string, body io.Reader) error {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(filename))
	_, err := io.Copy(w, body)
	return err
}

// handleDownloadTemplate serves the CSV template of one kind: "entries" or
// a section key.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	kind := urlParam(r, "kind")
	text, err := core.TemplateCSV(kind)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeCSV(w, kind+"_template.csv", strings.NewReader(text))
}

// handleImport bulk-creates entries from an uploaded CSV. Row problems are
// reported in the result; only file-level problems fail the request.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	defer cleanupForm(r)

	up, closer, err := s.formFile(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer closer.Close()

	result, err := s.service.ImportEntries(r.Context(), actorFrom(r), up.Body, s.cfg.Upload.MaxImportSize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// exportName is the download name for an export made now.
func (s *Server) exportName(kind string) string {
	return fmt.Sprintf("%s_%s.csv", kind, timeNow().In(s.service.Location()).Format("20060102_1504"))
}

// Exports are rendered into memory so a database error can still be
// reported with a proper status.
func (s *Server) handleExportEntries(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	n, err := s.service.ExportEntries(r.Context(), &buf)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("entries exported", "rows", n)
	writeCSV(w, s.exportName("entries"), &buf)
}

func (s *Server) handleExportSection(w http.ResponseWriter, r *http.Request) {
	key := urlParam(r, "section")
	var buf bytes.Buffer
	n, err := s.service.ExportSection(r.Context(), key, &buf)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("section exported", "section", key, "rows", n)
	writeCSV(w, s.exportName(key), &buf)
}
