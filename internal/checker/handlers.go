package checker

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/invoice-checker/internal/lottery"
)

// maxUploadSize covers high-resolution phone photos
const maxUploadSize = int64(50 << 20)

type periodsResponse struct {
	Periods   []lottery.WinningNumberSet `json:"periods"`
	Selection lottery.Selection          `json:"selection"`
}

type selectionRequest struct {
	Selection *lottery.Selection `json:"selection"`
}

type numberRequest struct {
	Number string `json:"number"`
}

type suffixRequest struct {
	Suffix string `json:"suffix"`
}

type keyRequest struct {
	Key string `json:"key"`
}

type voiceRequest struct {
	Text string `json:"text"`
}

type qrRequest struct {
	Payload string `json:"payload"`
}

type pendingRequest struct {
	Number string `json:"number"`
	Period string `json:"period"`
}

type bufferResponse struct {
	Buffer string                    `json:"buffer"`
	Result *lottery.QuickCheckResult `json:"result,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body with CORS headers set
func writeError(w http.ResponseWriter, code int, message string) {
	setCORSHeaders(w)
	writeJSON(w, code, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, periodsResponse{
		Periods:   s.service.KnownSets(),
		Selection: s.service.Selection(),
	})
}

func (s *Server) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Selection == nil {
		writeError(w, http.StatusBadRequest, "selection is required")
		return
	}
	if err := s.service.SetSelection(*req.Selection); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, periodsResponse{
		Periods:   s.service.KnownSets(),
		Selection: s.service.Selection(),
	})
}

func (s *Server) handleNextPeriods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.NextPeriods())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.service.Refresh(r.Context())
	if err != nil {
		slog.Error("Error refreshing winning numbers", "error", err)
		writeError(w, http.StatusBadGateway, "更新失敗，請稍後再試")
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req numberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := s.service.CheckNumber(req.Number)
	if err != nil {
		// the result is still valid; only the history write failed
		slog.Error("Error recording win", "error", err)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleQuickCheck(w http.ResponseWriter, r *http.Request) {
	var req suffixRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.service.QuickCheck(req.Suffix))
}

func (s *Server) handleKeypad(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	buffer, result, err := s.service.PressKey(req.Key)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bufferResponse{Buffer: buffer, Result: result})
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	var req voiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	buffer, result := s.service.VoiceInput(req.Text)
	writeJSON(w, http.StatusOK, bufferResponse{Buffer: buffer, Result: result})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file was selected. Please choose an image of the invoice.")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFromExt(header.Filename)
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	outcome, err := s.service.ScanInvoice(header.Filename, data, contentType)
	switch {
	case errors.Is(err, ErrScannerUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil && outcome == nil:
		writeError(w, http.StatusUnprocessableEntity, "無法辨識發票號碼")
		return
	case err != nil:
		slog.Error("Error recording win", "error", err)
	}
	writeJSON(w, http.StatusOK, outcome)
}

func contentTypeFromExt(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	var req qrRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := s.service.CheckQRPayload(req.Payload)
	if errors.Is(err, ErrUnrecognizedQR) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("Error recording win", "error", err)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	views, err := s.service.ListPending()
	if err != nil {
		slog.Error("Error listing pending receipts", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAddPending(w http.ResponseWriter, r *http.Request) {
	var req pendingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	receipt, err := s.service.AddPending(req.Number, req.Period)
	if errors.Is(err, ErrInvalidPending) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("Error saving pending receipt", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (s *Server) handleDeletePending(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeletePending(r.PathValue("id")); err != nil {
		slog.Error("Error deleting pending receipt", "error", err)
		writeError(w, http.StatusNotFound, "Pending receipt not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePendingAlerts(w http.ResponseWriter, r *http.Request) {
	winners, err := s.service.PendingAlerts()
	if err != nil {
		slog.Error("Error checking pending receipts", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if winners == nil {
		winners = []PendingReceipt{}
	}
	writeJSON(w, http.StatusOK, winners)
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListHistory()
	if err != nil {
		slog.Error("Error listing history", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ClearHistory(); err != nil {
		slog.Error("Error clearing history", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
