package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"stock-sentinel/internal/errors"
	"stock-sentinel/internal/models"
	"stock-sentinel/internal/resilience"
	"stock-sentinel/internal/security"
	"stock-sentinel/internal/store"
)

const maxHistoryDays = 365

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status == resilience.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (s *Server) handleList(kind models.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entities, err := s.store.ListActive(r.Context(), kind)
		if err != nil {
			s.log.Error().Err(err).Str("kind", string(kind)).Msg("Failed to list entities")
			writeError(w, http.StatusInternalServerError, "failed to list entities")
			return
		}
		if entities == nil {
			entities = []models.TrackedEntity{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"kind":     kind,
			"count":    len(entities),
			"entities": entities,
		})
	}
}

func (s *Server) handleAdd(kind models.EntityKind, field string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "request body must be a JSON object")
			return
		}

		id, err := security.ValidateEntity(kind, body[field])
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		entity, err := s.store.AddEntity(r.Context(), kind, id)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.log.Info().Str("kind", string(kind)).Str("entity", entity.ID).Msg("Entity tracked via API")
		writeJSON(w, http.StatusCreated, entity)
	}
}

// handleGet returns an entity whether or not it is still tracked.
func (s *Server) handleGet(kind models.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entity, err := s.store.GetEntity(r.Context(), kind, pathParam(r, "id"))
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entity)
	}
}

func (s *Server) handleRemove(kind models.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := pathParam(r, "id")
		if err := s.store.RemoveEntity(r.Context(), kind, id); err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.log.Info().Str("kind", string(kind)).Str("entity", id).Msg("Entity untracked via API")
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleAlertHistory(w http.ResponseWriter, r *http.Request) {
	days := store.DefaultHistoryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryDays {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}

	raw := pathParam(r, "entity")
	kind := models.KindStock
	if k := r.URL.Query().Get("kind"); k != "" {
		parsed, err := security.ParseKind(k)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		kind = parsed
	} else if strings.Contains(strings.TrimSpace(raw), " ") {
		kind = models.KindPolitician
	}
	entity := models.NormalizeID(kind, raw)

	records, err := s.store.AlertHistory(r.Context(), kind, entity, days)
	if err != nil {
		s.log.Error().Err(err).Str("entity", entity).Msg("Failed to read alert history")
		writeError(w, http.StatusInternalServerError, "failed to read alert history")
		return
	}
	if records == nil {
		records = []models.AlertRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"kind":   kind,
		"entity": entity,
		"days":   days,
		"alerts": records,
	})
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if s.schedule == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": []interface{}{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": s.schedule.Entries()})
}

func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	kind, err := security.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.tracker == nil {
		writeError(w, http.StatusServiceUnavailable, "tracking is not configured")
		return
	}

	summary, err := s.tracker.Run(r.Context(), kind)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidEntity) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "tracking cycle failed")
		return
	}
	if summary.AlreadyRunning {
		writeJSON(w, http.StatusConflict, summary)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	var ve *errors.ValidationError
	switch {
	case errors.Is(err, errors.ErrEntityNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errors.ErrAlreadyTracked):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, errors.ErrTrackingLimit):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, errors.ErrInvalidEntity), errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("Store operation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
