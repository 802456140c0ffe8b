package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/Wyydra/safemeet/internal/core/domain"
	"github.com/Wyydra/safemeet/internal/core/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type participantDTO struct {
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

type meetingDTO struct {
	ID              string           `json:"id"`
	MeetCode        string           `json:"meetCode"`
	CreatedByUserID string           `json:"createdByUserId"`
	CreatedByName   string           `json:"createdByName"`
	Status          string           `json:"status"`
	Participants    []participantDTO `json:"participants"`
	CreatedAt       time.Time        `json:"createdAt"`
	EndedAt         *time.Time       `json:"endedAt,omitempty"`
}

func toMeetingDTO(m domain.Meeting) meetingDTO {
	return meetingDTO{
		ID:              m.ID.String(),
		MeetCode:        m.MeetCode.String(),
		CreatedByUserID: m.CreatedByUserID.String(),
		CreatedByName:   m.CreatedByName,
		Status:          string(m.Status),
		Participants: lo.Map(m.Participants, func(p domain.Participant, _ int) participantDTO {
			return participantDTO{UserID: p.UserID.String(), Name: p.Name, JoinedAt: p.JoinedAt}
		}),
		CreatedAt: m.CreatedAt,
		EndedAt:   m.EndedAt,
	}
}

type errorDTO struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("An error occurred when writing response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorDTO{Error: msg})
}

// writeDomainError maps lifecycle errors to status codes.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, domain.ErrNotFound.Error())
	case errors.Is(err, domain.ErrMeetingFull):
		writeError(w, http.StatusConflict, domain.ErrMeetingFull.Error())
	case errors.Is(err, domain.ErrMeetingEnded):
		writeError(w, http.StatusConflict, domain.ErrMeetingEnded.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("An error occurred when handling request")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// bindAndValidate decodes the JSON body into data and checks its
// validate tags.
func (h *Handler) bindAndValidate(r *http.Request, data any) error {
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		return errors.New("invalid request body")
	}
	return h.validate.Struct(data)
}

func (h *Handler) CreateMeet(w http.ResponseWriter, r *http.Request) {
	var data struct {
		CreatedByUserID string `json:"createdByUserId" validate:"required,max=128"`
		CreatedByName   string `json:"createdByName" validate:"required,max=128"`
	}
	if err := h.bindAndValidate(r, &data); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.Meets.Create(r.Context(), domain.UserID(data.CreatedByUserID), data.CreatedByName)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMeetingDTO(m))
}

func (h *Handler) GetMeet(w http.ResponseWriter, r *http.Request) {
	m, err := h.Meets.Get(r.Context(), chi.URLParam(r, "meetCode"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMeetingDTO(m))
}

func (h *Handler) JoinMeet(w http.ResponseWriter, r *http.Request) {
	var data struct {
		UserID   string `json:"userId" validate:"required,max=128"`
		UserName string `json:"userName" validate:"required,max=128"`
	}
	if err := h.bindAndValidate(r, &data); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.Meets.Join(r.Context(), chi.URLParam(r, "meetCode"), domain.UserID(data.UserID), data.UserName)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMeetingDTO(m))
}

// EndMeet marks the meeting ended and closes whatever relay bindings its
// code still holds.
func (h *Handler) EndMeet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseMeetingID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, domain.ErrNotFound.Error())
		return
	}

	m, err := h.Meets.End(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.Relay.EndRoom(m.MeetCode, service.ReasonMeetingEnded)
	writeJSON(w, http.StatusOK, toMeetingDTO(m))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"rooms":       h.Relay.RoomCount(),
		"connections": h.Hub.Count(),
	})
}
