package web

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/JonMunkholm/DanceEntry/internal/core"
	"github.com/JonMunkholm/DanceEntry/internal/logging"
)

// defaultPageSize is the entries page size when no limit is given.
const defaultPageSize = 50

func (s *Server) handleAdminListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.service.ListEntries(r.Context(), core.EntryFilter{
		Status: core.EntryStatus(q.Get("status")),
		Search: q.Get("q"),
		Limit:  parseIntParam(r, "limit", defaultPageSize),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, page)
}

// adminEntry is an entry with every section payload, for the review screen.
type adminEntry struct {
	core.Entry
	SectionData map[string]core.SectionData `json:"section_data"`
	Files       []core.EntryFile            `json:"files"`
	Owner       core.User                   `json:"owner"`
}

func (s *Server) handleAdminGetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", core.ErrEntryNotFound)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ctx, actor := r.Context(), actorFrom(r)

	entry, err := s.service.GetEntry(ctx, actor, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	out := adminEntry{Entry: entry, SectionData: make(map[string]core.SectionData)}
	for _, info := range s.service.Sections() {
		data, err := s.service.GetSection(ctx, actor, id, info.Key)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		out.SectionData[info.Key] = data
	}
	if out.Files, err = s.service.ListFiles(ctx, actor, id); err != nil {
		s.respondError(w, r, err)
		return
	}
	if out.Owner, err = s.service.GetUser(ctx, entry.UserID); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, out)
}

func (s *Server) handleAdminDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", core.ErrEntryNotFound)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.DeleteEntry(r.Context(), actorFrom(r), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reviewRequest struct {
	Status  string   `json:"status" validate:"required"`
	Score   *float64 `json:"score"`
	Comment *string  `json:"comment" validate:"omitempty,max=2000"`
}

func (s *Server) handleReviewEntry(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", core.ErrEntryNotFound)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req reviewRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	entry, err := s.service.ReviewEntry(r.Context(), actorFrom(r), id, core.Review{
		Status:  core.EntryStatus(req.Status),
		Score:   req.Score,
		Comment: req.Comment,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, entry)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.service.Settings(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, settings)
}

// handleUpdateSettings applies a map of setting changes. An empty value
// clears a setting.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var changes map[string]string
	if err := s.decodeJSON(w, r, &changes); err != nil {
		s.respondError(w, r, err)
		return
	}
	settings, err := s.service.UpdateSettings(r.Context(), actorFrom(r), changes)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, settings)
}

// handleSetBackground stores the background image of a page.
func (s *Server) handleSetBackground(w http.ResponseWriter, r *http.Request) {
	page := urlParam(r, "page")
	defer cleanupForm(r)

	up, closer, err := s.formFile(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer closer.Close()

	if err := s.service.SetBackground(r.Context(), actorFrom(r), page, up); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"page": page, "url": core.BackgroundURL(page)})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.service.ListTemplates(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, templates)
}

type templateRequest struct {
	Subject string `json:"subject" validate:"required,max=200"`
	Body    string `json:"body" validate:"required,max=20000"`
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	t, err := s.service.UpdateTemplate(r.Context(), actorFrom(r), urlParam(r, "key"), req.Subject, req.Body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, t)
}

type sendRequest struct {
	Template string      `json:"template" validate:"required"`
	EntryIDs []uuid.UUID `json:"entry_ids" validate:"required,min=1"`
}

// handleSendNotification sends a template to the listed entries. The
// response carries one result per recipient; individual failures do not
// change the status code.
func (s *Server) handleSendNotification(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	result, err := s.service.SendNotification(r.Context(), actorFrom(r), req.Template, req.EntryIDs)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleEmailLogs(w http.ResponseWriter, r *http.Request) {
	entryID, err := optionalUUID(r, "entry_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	logs, err := s.service.ListEmailLogs(r.Context(), core.EmailLogFilter{
		EntryID: entryID,
		Status:  r.URL.Query().Get("status"),
		Limit:   parseIntParam(r, "limit", core.DefaultAuditLimit),
		Offset:  parseIntParam(r, "offset", 0),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, logs)
}

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	entryID, err := optionalUUID(r, "entry_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	rows, err := s.service.ListAuditLog(r.Context(), core.AuditLogFilter{
		EntryID: entryID,
		Action:  core.AuditAction(r.URL.Query().Get("action")),
		Limit:   parseIntParam(r, "limit", core.DefaultAuditLimit),
		Offset:  parseIntParam(r, "offset", 0),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, rows)
}

// handleDebugLogs returns the newest in-memory log records.
func (s *Server) handleDebugLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"records": logging.Recent(parseIntParam(r, "limit", 200))})
}

func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.UploadLimiter().Status())
}
