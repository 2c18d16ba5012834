package web

import (
	"net/http"

	"github.com/JonMunkholm/DanceEntry/internal/core"
	"github.com/JonMunkholm/DanceEntry/internal/logging"
)

// fieldView is a FieldSpec as exposed to form pages.
type fieldView struct {
	core.FieldSpec
	Type string `json:"type"`
}

// sectionView is a registered section with its fields.
type sectionView struct {
	core.SectionInfo
	Deadline string      `json:"deadline_key"`
	Fields   []fieldView `json:"fields"`
}

// handleListSections returns every section with its field rules so the
// client can render and pre-validate forms.
func (s *Server) handleListSections(w http.ResponseWriter, r *http.Request) {
	defs := core.All()
	views := make([]sectionView, len(defs))
	for i, def := range defs {
		fields := make([]fieldView, len(def.FieldSpecs))
		for j, spec := range def.FieldSpecs {
			fields[j] = fieldView{FieldSpec: spec, Type: spec.TypeName()}
		}
		views[i] = sectionView{SectionInfo: def.Info, Deadline: def.Info.DeadlineKey(), Fields: fields}
	}
	writeJSON(w, views)
}

// handleCreateEntry creates the caller's entry from a basic_info payload.
func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var basic map[string]any
	if err := s.decodeJSON(w, r, &basic); err != nil {
		s.respondError(w, r, err)
		return
	}

	entry, err := s.service.CreateEntry(r.Context(), actorFrom(r), basic)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("entry created", "entry_id", entry.ID, "user_id", entry.UserID)
	writeJSONStatus(w, http.StatusCreated, entry)
}

// handleMyEntry returns the caller's entry.
func (s *Server) handleMyEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.service.EntryForUser(r.Context(), actorFrom(r).UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, entry)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", core.ErrEntryNotFound)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	entry, err := s.service.GetEntry(r.Context(), actorFrom(r), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, entry)
}

// handleSubmitEntry moves a draft entry to submitted. A 422 response lists
// the sections still missing.
func (s *Server) handleSubmitEntry(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", core.ErrEntryNotFound)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	entry, err := s.service.SubmitEntry(r.Context(), actorFrom(r), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, entry)
}

func (s *Server) handleGetSection(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", core.ErrEntryNotFound)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	data, err := s.service.GetSection(r.Context(), actorFrom(r), id, urlParam(r, "section"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, data)
}

// handleSaveSection upserts one section. Validation failures come back as
// 400 with per-field details.
func (s *Server) handleSaveSection(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", core.ErrEntryNotFound)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var payload map[string]any
	if err := s.decodeJSON(w, r, &payload); err != nil {
		s.respondError(w, r, err)
		return
	}

	data, err := s.service.SaveSection(r.Context(), actorFrom(r), id, urlParam(r, "section"), payload)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, data)
}
