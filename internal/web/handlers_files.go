package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/DanceEntry/internal/core"
	"github.com/JonMunkholm/DanceEntry/internal/filecheck"
	"github.com/JonMunkholm/DanceEntry/internal/logging"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temporary files.
const multipartMemory = 10 << 20

// maxUploadBody is the largest request body any upload route accepts: the
// biggest per-category ceiling plus room for the form envelope.
func (s *Server) maxUploadBody() int64 {
	u := s.cfg.Upload
	return max(u.MaxMusicSize, u.MaxVideoSize, u.MaxPhotoSize, u.MaxDocumentSize, u.MaxImportSize) + 1<<20
}

// formFile reads a multipart upload into a core.FileUpload. The caller
// must close the returned body.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (core.FileUpload, io.Closer, error) {
	limit := s.maxUploadBody()
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return core.FileUpload{}, nil, &filecheck.RejectError{
				Reason: filecheck.ReasonTooLarge,
				Size:   tooBig.Limit + 1,
				Limit:  tooBig.Limit,
			}
		}
		return core.FileUpload{}, nil, fmt.Errorf("%w: invalid multipart form: %v", errBadRequest, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return core.FileUpload{}, nil, core.ValidationErrors{{Field: "file", Message: "is required"}}
	}
	return core.FileUpload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, file, nil
}

// cleanupForm removes temporary files left by ParseMultipartForm.
func cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		r.MultipartForm.RemoveAll()
	}
}

// handleUploadFile stores one file for an entry. The multipart form carries
// the file under "file" and its slot under "file_type".
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuidParam(r, "id", core.ErrEntryNotFound)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer cleanupForm(r)

	up, closer, err := s.formFile(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer closer.Close()
	up.Type = r.FormValue("file_type")

	file, err := s.service.UploadFile(r.Context(), actorFrom(r), entryID, up)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, file)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuidParam(r, "id", core.ErrEntryNotFound)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	files, err := s.service.ListFiles(r.Context(), actorFrom(r), entryID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, files)
}

// handleDownloadFile streams a stored file as an attachment.
func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID, err := uuidParam(r, "fileID", core.ErrFileNotFound)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	file, rc, err := s.service.OpenFile(r.Context(), actorFrom(r), fileID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer rc.Close()

	ctype := file.ContentType
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Length", strconv.FormatInt(file.SizeBytes, 10))
	w.Header().Set("Content-Disposition", attachment(file.OriginalName))
	if _, err := io.Copy(w, rc); err != nil {
		logging.FromContext(r.Context()).Warn("download interrupted", "file_id", fileID, "error", err)
	}
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID, err := uuidParam(r, "fileID", core.ErrFileNotFound)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.DeleteFile(r.Context(), actorFrom(r), fileID); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// attachment builds a Content-Disposition header. Non-ASCII names are
// encoded per RFC 2231.
func attachment(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}
