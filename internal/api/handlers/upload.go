package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-tracker/internal/api/middleware"
	"github.com/dvloznov/expense-tracker/internal/importer"
)

// allowedExtensions is the upload whitelist.
var allowedExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
	".xls":  true,
}

// UploadHandler handles spreadsheet file uploads.
type UploadHandler struct {
	importer FileImporter
	archiver FileArchiver
	maxBytes int64
	log      zerolog.Logger
}

// NewUploadHandler creates a new upload handler. maxBytes caps the accepted
// request size.
func NewUploadHandler(imp FileImporter, arch FileArchiver, maxBytes int64, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{importer: imp, archiver: arch, maxBytes: maxBytes, log: log}
}

// Upload handles POST /upload.
// The file arrives as multipart form field "file". Parsed rows go through
// the ingestion pipeline; the raw file is archived best-effort afterwards.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." {
		middleware.WriteError(w, http.StatusBadRequest, "No file selected")
		return
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(filename))] {
		middleware.WriteError(w, http.StatusBadRequest, "Unsupported file type. Allowed: csv, xlsx, xls")
		return
	}

	// Buffer the content so it can be both imported and archived.
	content, err := io.ReadAll(file)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read uploaded file")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}

	summary, err := h.importer.Import(ctx, bytes.NewReader(content), filename)
	if err != nil {
		h.log.Warn().Err(err).Str("file", filename).Msg("Upload import failed")
		writeImportError(w, err)
		return
	}

	archiveURI := ""
	if h.archiver != nil {
		uri, err := h.archiver.Store(ctx, filename, bytes.NewReader(content))
		if err != nil {
			// The transactions are already stored; losing the raw copy is
			// not worth failing the request over.
			h.log.Warn().Err(err).Str("file", filename).Msg("Upload archival failed")
		} else {
			archiveURI = uri
		}
	}

	resp := map[string]any{
		"success":  summary.Success,
		"message":  summary.Message,
		"filename": filename,
		"summary":  summary,
	}
	if archiveURI != "" {
		resp["archive_uri"] = archiveURI
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// writeImportError maps importer failures to client errors where the file
// itself is at fault.
func writeImportError(w http.ResponseWriter, err error) {
	var missing *importer.MissingColumnsError
	switch {
	case errors.As(err, &missing):
		middleware.WriteError(w, http.StatusBadRequest, missing.Error())
	case errors.Is(err, importer.ErrEmptyFile):
		middleware.WriteError(w, http.StatusBadRequest, "File contains no data rows")
	case errors.Is(err, importer.ErrUnsupportedFormat):
		middleware.WriteError(w, http.StatusBadRequest, "Unsupported file type. Allowed: csv, xlsx, xls")
	case errors.Is(err, importer.ErrUnparseable):
		middleware.WriteError(w, http.StatusBadRequest, "File could not be parsed")
	default:
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to import file")
	}
}
