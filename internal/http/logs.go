package http

import (
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/agrisync/agrisync/internal/config"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type logsHandler struct {
	cfg *config.AppConfig
}

func newLogsHandler(cfg *config.AppConfig) *logsHandler {
	return &logsHandler{cfg: cfg}
}

func (h logsHandler) Routes(r chi.Router) {
	r.Get("/files", h.files)
	r.Get("/files/{logFile}", h.downloadFile)
}

type logFile struct {
	Name      string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	Size      string    `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LogfilesResponse struct {
	Files []logFile `json:"files"`
	Count int       `json:"count"`
}

func (h logsHandler) files(w http.ResponseWriter, r *http.Request) {
	response := LogfilesResponse{
		Files: []logFile{},
		Count: 0,
	}

	if h.cfg.Config.Logging.Path == "" {
		render.JSON(w, r, response)
		return
	}

	// Logging.Path is the log directory itself
	entries, err := os.ReadDir(h.cfg.Config.Logging.Path)
	if err != nil {
		render.JSON(w, r, response)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		response.Files = append(response.Files, logFile{
			Name:      entry.Name(),
			SizeBytes: info.Size(),
			Size:      humanize.Bytes(uint64(info.Size())),
			UpdatedAt: info.ModTime(),
		})
	}

	response.Count = len(response.Files)

	render.JSON(w, r, response)
}

var sensitiveLogValues = []*regexp.Regexp{
	regexp.MustCompile(`(apikey=)(\S+)`),
	regexp.MustCompile(`(passkey=)(\S+)`),
	regexp.MustCompile(`(token=)(\S+)`),
	regexp.MustCompile(`(password=)(\S+)`),
}

// SanitizeLogFile writes a copy of the log file with credential-looking
// values redacted and returns the copy's path. The caller removes the
// copy when done.
func SanitizeLogFile(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}

	for _, re := range sensitiveLogValues {
		data = re.ReplaceAll(data, []byte("${1}REDACTED"))
	}

	tmp, err := os.CreateTemp("", "sanitized-*.log")
	if err != nil {
		return "", err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	return tmp.Name(), nil
}

func (h logsHandler) downloadFile(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Config.Logging.Path == "" {
		render.Status(r, http.StatusNotFound)
		render.PlainText(w, r, "no log file found")
		return
	}

	logsDir := h.cfg.Config.Logging.Path

	// reject traversal out of the log directory
	logFile := filepath.Base(chi.URLParam(r, "logFile"))
	if logFile == "." || filepath.Ext(logFile) != ".log" {
		render.Status(r, http.StatusBadRequest)
		render.PlainText(w, r, "invalid file requested")
		return
	}

	filePath := filepath.Join(logsDir, logFile)

	sanitizedPath, err := SanitizeLogFile(filePath)
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.PlainText(w, r, err.Error())
		return
	}
	defer os.Remove(sanitizedPath)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+logFile+`"`)
	http.ServeFile(w, r, sanitizedPath)
}
