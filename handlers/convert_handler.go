package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orsolab/pdfcsv/pipeline"
	"github.com/orsolab/pdfcsv/pipeline_type"
	"github.com/orsolab/pdfcsv/rasterizer"
)

const defaultMaxUploadMB = 25

// ConvertHandler accepts a PDF upload and responds with the structured CSV.
type ConvertHandler struct {
	MaxUploadBytes int64
	Pipeline       *pipeline.Pipeline
	Logger         *slog.Logger
}

func NewConvertHandler(p *pipeline.Pipeline, maxUploadMB int, logger *slog.Logger) *ConvertHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = defaultMaxUploadMB
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConvertHandler{
		MaxUploadBytes: int64(maxUploadMB) * 1024 * 1024,
		Pipeline:       p,
		Logger:         logger,
	}
}

func (h *ConvertHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	h.Logger.Info("Received PDF conversion request",
		slog.String("request_id", requestID))

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		maxMB := h.MaxUploadBytes / (1024 * 1024)
		writeJSONError(w, fmt.Sprintf("file too large (max %dMB) or invalid form", maxMB), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "no file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeJSONError(w, "empty filename", http.StatusBadRequest)
		return
	}
	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".pdf" {
		writeJSONError(w, "file must be a PDF", http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		h.Logger.Error("Failed to read uploaded file",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		writeJSONError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	data := buf.Bytes()
	if len(data) == 0 {
		writeJSONError(w, "no file provided", http.StatusBadRequest)
		return
	}

	if err := rasterizer.ValidatePDF(data); err != nil {
		h.Logger.Warn("Rejected upload",
			slog.String("request_id", requestID),
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()))
		h.writeError(w, err)
		return
	}

	start := time.Now()
	csvBody, err := h.Pipeline.Run(r.Context(), requestID, data)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.Logger.Info("PDF conversion completed",
		slog.String("request_id", requestID),
		slog.String("filename", header.Filename),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		slog.Int("csv_bytes", len(csvBody)))

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", csvFilename(header.Filename)))
	if _, err := w.Write([]byte(csvBody)); err != nil {
		h.Logger.Error("Failed to write response",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
	}
}

// writeError maps pipeline errors to their HTTP status. The client only ever
// sees the short message, never the wrapped cause.
func (h *ConvertHandler) writeError(w http.ResponseWriter, err error) {
	if pe, ok := pipeline_type.AsError(err); ok {
		writeJSONError(w, pe.Message, pe.HTTPStatus())
		return
	}
	writeJSONError(w, "failed to process document", http.StatusInternalServerError)
}

func csvFilename(uploadName string) string {
	base := strings.TrimSuffix(filepath.Base(uploadName), filepath.Ext(uploadName))
	if base == "" || base == "." {
		return "output.csv"
	}
	return base + ".csv"
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
