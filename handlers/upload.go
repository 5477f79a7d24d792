package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type UploadHandler struct {
	dir      string
	maxBytes int64
	log      *zap.Logger
}

// NewUploadHandler stores files under dir. The directory is created if
// missing.
func NewUploadHandler(dir string, maxBytes int64, logger *zap.Logger) (*UploadHandler, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &UploadHandler{dir: dir, maxBytes: maxBytes, log: logger}, nil
}

type uploadResponse struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
}

// Upload accepts a multipart form with a single "file" field.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Leave room for the multipart envelope; the file itself is checked below
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	name := uuid.NewString()[:8] + "-" + sanitizeFilename(header.Filename)
	dst, err := os.Create(filepath.Join(h.dir, name))
	if err != nil {
		h.log.Error("failed to create upload", zap.String("name", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	defer dst.Close()

	size, err := io.Copy(dst, file)
	if err != nil {
		os.Remove(dst.Name())
		h.log.Error("failed to write upload", zap.String("name", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	h.log.Info("file uploaded", zap.String("name", name), zap.Int64("size", size))
	writeJSON(w, http.StatusCreated, uploadResponse{
		Filename: name,
		Path:     "/uploads/" + name,
		Size:     size,
	})
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Trim(unsafeFileChars.ReplaceAllString(name, "-"), ".-")
	if name == "" {
		return "file"
	}
	return name
}
