package event_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-timeline/internal/events/db"
	"ms-timeline/internal/events/service"
	"ms-timeline/internal/logger"
	"ms-timeline/internal/models"
	"ms-timeline/internal/utils"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	EventService *service.EventService
	Logger       *logger.Logger
}

func NewHandler(eventService *service.EventService, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{EventService: eventService, Logger: log}
}

// RegisterRoutes mounts the event routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Post("/", h.CreateEvent)
		r.Patch("/reorder", h.ReorderEvents)
		r.Get("/{id}", h.GetEvent)
		r.Put("/{id}", h.UpdateEvent)
		r.Delete("/{id}", h.DeleteEvent)
	})
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.EventService.ListEvents(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, events)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	event, err := h.EventService.GetEvent(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, event)
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var input service.CreateInput
	if !h.decode(w, r, &input) {
		return
	}

	event, err := h.EventService.CreateEvent(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, event)
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	var input service.UpdateInput
	if !h.decode(w, r, &input) {
		return
	}

	event, err := h.EventService.UpdateEvent(r.Context(), id, input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, event)
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	if err := h.EventService.DeleteEvent(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.respondMessage(w, http.StatusOK, "Event deleted successfully")
}

// ReorderEvents expects a JSON array of {"id": N, "order": M}.
func (h *Handler) ReorderEvents(w http.ResponseWriter, r *http.Request) {
	var items []models.ReorderItem
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&items); err != nil {
		h.respondError(w, http.StatusBadRequest, "Expected a list of event IDs with order")
		return
	}

	if err := h.EventService.ReorderEvents(r.Context(), items); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.respondMessage(w, http.StatusOK, "Events reordered successfully")
}

func (h *Handler) eventID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.respondError(w, http.StatusNotFound, fmt.Sprintf("Event with ID %s not found", raw))
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *service.ValidationError
	var notFoundErr *service.NotFoundError

	switch {
	case errors.As(err, &validationErr):
		h.respondError(w, http.StatusBadRequest, validationErr.Message)
	case errors.As(err, &notFoundErr):
		h.respondError(w, http.StatusNotFound, notFoundErr.Error())
	case errors.Is(err, db.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "Event not found")
	default:
		h.Logger.Error("API", fmt.Sprintf("%s %s failed: %v", r.Method, r.URL.Path, err))
		h.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) respond(w http.ResponseWriter, status int, data interface{}) {
	if err := utils.WriteJSON(w, status, data); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Failed to write response: %v", err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	if err := utils.WriteError(w, status, message); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Failed to write error response: %v", err))
	}
}

func (h *Handler) respondMessage(w http.ResponseWriter, status int, message string) {
	if err := utils.WriteMessage(w, status, message); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Failed to write response: %v", err))
	}
}
