package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"ms-timeline/internal/events/db"
	"ms-timeline/internal/logger"
	"ms-timeline/internal/metrics"
	"ms-timeline/internal/models"
	"ms-timeline/internal/utils"
)

// Locker serialises order assignment across service instances.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Publisher receives a notification after every committed mutation.
type Publisher interface {
	Publish(ctx context.Context, note models.ChangeNotification) error
}

type CreateInput struct {
	Title     string `json:"title" validate:"required"`
	EventType string `json:"event_type" validate:"required"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

// UpdateInput carries the fields a client sent. Absent, null and empty
// fields leave the stored value unchanged.
type UpdateInput struct {
	Title     *string `json:"title"`
	EventType *string `json:"event_type"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

type EventService struct {
	DB        *db.DB
	Locker    Locker
	Publisher Publisher
	Logger    *logger.Logger

	validate *validator.Validate
	orderMu  sync.Mutex
	now      func() time.Time
}

func NewEventService(store *db.DB, log *logger.Logger) *EventService {
	if log == nil {
		log = logger.NewNop()
	}
	return &EventService{
		DB:       store,
		Logger:   log,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (s *EventService) ListEvents(ctx context.Context) ([]models.Event, error) {
	return s.DB.List(ctx)
}

func (s *EventService) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	event, err := s.DB.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, &NotFoundError{ID: id}
	}
	return event, err
}

func (s *EventService) CreateEvent(ctx context.Context, in CreateInput) (*models.Event, error) {
	if err := s.validateCreate(in); err != nil {
		return nil, s.fail(models.ActionCreated, err)
	}

	start, err := utils.ParseTimestamp(in.StartDate)
	if err != nil {
		return nil, s.fail(models.ActionCreated, invalid("Invalid date format: %v", err))
	}
	end, err := utils.ParseTimestamp(in.EndDate)
	if err != nil {
		return nil, s.fail(models.ActionCreated, invalid("Invalid date format: %v", err))
	}
	if end.Before(start) {
		return nil, s.fail(models.ActionCreated, invalid("End date must be after start date"))
	}

	release, err := s.lockOrder(ctx)
	if err != nil {
		return nil, s.fail(models.ActionCreated, err)
	}
	defer release()

	event := &models.Event{
		Title:     in.Title,
		EventType: in.EventType,
		StartDate: start,
		EndDate:   end,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}

	err = s.DB.RunInTx(ctx, func(ctx context.Context, tx *db.DB) error {
		if err := tx.LockOrderSequence(ctx); err != nil {
			return err
		}
		highest, _, err := tx.MaxOrder(ctx)
		if err != nil {
			return err
		}
		event.Order = highest + 1
		return tx.Insert(ctx, event)
	})
	if err != nil {
		return nil, s.fail(models.ActionCreated, err)
	}

	s.Logger.LogEvent("CREATE", event.ID, fmt.Sprintf("created %q with order %d", event.Title, event.Order))
	s.committed(ctx, models.ChangeNotification{
		Action:  models.ActionCreated,
		EventID: event.ID,
		Event:   responsePtr(*event),
	})
	return event, nil
}

func (s *EventService) UpdateEvent(ctx context.Context, id int64, in UpdateInput) (*models.Event, error) {
	var updated models.Event

	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx *db.DB) error {
		event, err := tx.GetByID(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			return &NotFoundError{ID: id}
		}
		if err != nil {
			return err
		}

		if provided(in.Title) {
			event.Title = *in.Title
		}
		if provided(in.EventType) {
			event.EventType = *in.EventType
		}
		if provided(in.StartDate) {
			start, err := utils.ParseTimestamp(*in.StartDate)
			if err != nil {
				return invalid("Invalid start date format: %v", err)
			}
			event.StartDate = start
		}
		if provided(in.EndDate) {
			end, err := utils.ParseTimestamp(*in.EndDate)
			if err != nil {
				return invalid("Invalid end date format: %v", err)
			}
			event.EndDate = end
		}

		if event.EndDate.Before(event.StartDate) {
			return invalid("End date must be after start date")
		}

		if err := tx.Update(ctx, *event); err != nil {
			return err
		}
		updated = *event
		return nil
	})
	if err != nil {
		return nil, s.fail(models.ActionUpdated, err)
	}

	s.Logger.LogEvent("UPDATE", id, "updated")
	s.committed(ctx, models.ChangeNotification{
		Action:  models.ActionUpdated,
		EventID: id,
		Event:   responsePtr(updated),
	})
	return &updated, nil
}

func (s *EventService) DeleteEvent(ctx context.Context, id int64) error {
	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx *db.DB) error {
		if _, err := tx.GetByID(ctx, id); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return &NotFoundError{ID: id}
			}
			return err
		}
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return s.fail(models.ActionDeleted, err)
	}

	s.Logger.LogEvent("DELETE", id, "deleted")
	s.committed(ctx, models.ChangeNotification{Action: models.ActionDeleted, EventID: id})
	return nil
}

// ReorderEvents applies every (id, order) pair or none of them.
func (s *EventService) ReorderEvents(ctx context.Context, items []models.ReorderItem) error {
	if len(items) == 0 {
		return s.fail(models.ActionReordered, invalid("Expected a list of event IDs with order"))
	}
	for _, item := range items {
		if err := s.validate.Struct(item); err != nil {
			return s.fail(models.ActionReordered, invalid("Each item must have id and order fields"))
		}
	}

	pairs := make([]models.ReorderedPair, 0, len(items))
	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx *db.DB) error {
		for _, item := range items {
			id, order := *item.ID, *item.Order
			if _, err := tx.GetByID(ctx, id); err != nil {
				if errors.Is(err, db.ErrNotFound) {
					return &NotFoundError{ID: id}
				}
				return err
			}
			if err := tx.SetOrder(ctx, id, order); err != nil {
				return err
			}
			pairs = append(pairs, models.ReorderedPair{ID: id, Order: order})
		}
		return nil
	})
	if err != nil {
		return s.fail(models.ActionReordered, err)
	}

	s.Logger.Info("EVENT", fmt.Sprintf("[REORDER] %d events reordered", len(pairs)))
	s.committed(ctx, models.ChangeNotification{Action: models.ActionReordered, Reordered: pairs})
	return nil
}

// Ping reports whether the store is reachable.
func (s *EventService) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

func (s *EventService) validateCreate(in CreateInput) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return invalid("%v", err)
	}

	switch fieldErrs[0].Field() {
	case "Title":
		return invalid("Title is required")
	case "EventType":
		return invalid("Event type is required")
	default:
		return invalid("Start and end dates are required")
	}
}

// lockOrder guards the max(order)+1 read-modify-write: in process always,
// across processes when a Locker is configured.
func (s *EventService) lockOrder(ctx context.Context) (func(), error) {
	s.orderMu.Lock()
	if s.Locker == nil {
		return s.orderMu.Unlock, nil
	}

	release, err := s.Locker.Acquire(ctx)
	if err != nil {
		s.orderMu.Unlock()
		return nil, fmt.Errorf("acquire order lock: %w", err)
	}
	return func() {
		release()
		s.orderMu.Unlock()
	}, nil
}

func (s *EventService) committed(ctx context.Context, note models.ChangeNotification) {
	metrics.EventMutations.WithLabelValues(note.Action).Inc()

	if s.Publisher == nil {
		return
	}
	note.OccurredAt = utils.FormatTimestamp(s.now())

	// The mutation is already committed; a client hanging up must not drop the notification.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.Publisher.Publish(pubCtx, note); err != nil {
		metrics.NotificationFailures.Inc()
		s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish %s notification: %v", note.Action, err))
	}
}

func (s *EventService) fail(action string, err error) error {
	reason := "storage"
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		reason = "validation"
	case errors.Is(err, db.ErrNotFound):
		reason = "not_found"
	default:
		s.Logger.Error("EVENT", fmt.Sprintf("%s failed: %v", action, err))
	}
	metrics.EventMutationFailures.WithLabelValues(action, reason).Inc()
	return err
}

func provided(value *string) bool {
	return value != nil && *value != ""
}

func responsePtr(e models.Event) *models.EventResponse {
	r := e.Response()
	return &r
}
