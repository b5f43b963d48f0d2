package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eddiefleurent/elastic_grid/internal/engine"
	"github.com/eddiefleurent/elastic_grid/internal/models"
	"github.com/eddiefleurent/elastic_grid/internal/reporting"
)

// uiData is the document served by /api/ui-data and pushed over the
// websocket stream after every state change.
type uiData struct {
	Settings   models.UserSettings `json:"settings"`
	Runtime    models.RuntimeState `json:"runtime"`
	Market     marketData          `json:"market"`
	LastUpdate string              `json:"last_update"`
}

type marketData struct {
	History []models.PricePoint `json:"history"`
	Current float64             `json:"current"`
}

func uiDocument(st *models.SystemState) uiData {
	return uiData{
		Settings: st.Settings,
		Runtime:  st.Runtime,
		Market: marketData{
			History: st.PriceHistory,
			Current: st.Runtime.CurrentPrice,
		},
		LastUpdate: st.LastUpdateTs,
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "running",
		"system":  "Elastic Grid Engine",
		"version": Version,
	})
}

// handleTick feeds one market snapshot to the engine. The adapter's bridge
// is known to deliver dirty bodies (trailing NULs, junk after the JSON
// document), so the body is scrubbed before decoding, and any failure still
// answers WAIT with HTTP 200: the adapter must always get an action.
func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.WithField("panic", rec).Error("Tick processing panicked")
			s.writeJSON(w, http.StatusOK, models.Wait())
		}
	}()

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read tick body")
		s.writeJSON(w, http.StatusOK, models.Wait())
		return
	}

	var tick models.TickData
	if err := json.Unmarshal(sanitizeBody(raw), &tick); err != nil {
		s.logger.WithError(err).Warn("Undecodable tick body")
		s.writeJSON(w, http.StatusOK, models.Wait())
		return
	}

	s.writeJSON(w, http.StatusOK, s.engine.ProcessTick(&tick))
}

// sanitizeBody strips NUL bytes and surrounding whitespace, then truncates
// anything past the last closing brace.
func sanitizeBody(raw []byte) []byte {
	cleaned := bytes.ReplaceAll(raw, []byte{0}, nil)
	cleaned = bytes.TrimSpace(cleaned)
	if idx := bytes.LastIndexByte(cleaned, '}'); idx >= 0 {
		cleaned = cleaned[:idx+1]
	}
	return cleaned
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var req engine.ControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid control payload: %w", err))
		return
	}

	status := s.engine.ApplyControl(req)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	// Decode over the defaults so absent fields keep their zero-config
	// meaning instead of wiping the live values with Go zeros.
	settings := models.NewSystemState().Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid settings payload: %w", err))
		return
	}

	if err := s.engine.ApplySettings(settings); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUIData(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, uiDocument(s.engine.Snapshot()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Snapshot()

	status := "healthy"
	if st.Runtime.ErrorStatus != "" {
		status = "error"
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  status,
		"error":   st.Runtime.ErrorStatus,
		"version": Version,
		"buy":     st.Runtime.BuyOn,
		"sell":    st.Runtime.SellOn,
		"price":   st.Runtime.CurrentPrice,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	records, err := s.journal.Recent(exportLimit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read session journal")
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("reading journal: %w", err))
		return
	}

	fx, err := reporting.SessionWorkbook(records)
	if err != nil {
		s.logger.WithError(err).Error("Failed to build session report")
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer fx.Close()

	filename := fmt.Sprintf("sessions_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := fx.Write(w); err != nil {
		s.logger.WithError(err).Error("Failed to stream session report")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
