package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/authcontext"
	"github.com/smallbiznis/backoffice/internal/events"
	"github.com/smallbiznis/backoffice/internal/order/domain"
	"go.uber.org/zap"
)

// maxTransitionAttempts bounds re-evaluation after losing a race to a
// concurrent status update.
const maxTransitionAttempts = 2

func (s *Service) UpdateStatus(ctx context.Context, id string, req domain.StatusRequest) (*domain.Response, error) {
	principal, ok := authcontext.PrincipalFromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if !principal.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	orderID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	to, ok := domain.ParseStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !ok {
		return nil, domain.ErrInvalidStatus
	}

	tracking := req.TrackingNumber
	if tracking != nil {
		trimmed := strings.TrimSpace(*tracking)
		if trimmed == "" {
			tracking = nil
		} else {
			tracking = &trimmed
		}
	}
	estimated := req.EstimatedDelivery
	if estimated != nil {
		utc := estimated.UTC()
		estimated = &utc
	}

	var from domain.Status
	applied := false
	for attempt := 0; attempt < maxTransitionAttempts && !applied; attempt++ {
		current, err := s.repo.FindByID(ctx, s.db, orderID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, domain.ErrNotFound
		}
		from = current.Status

		if from == to && tracking == nil && estimated == nil {
			resp := toResponse(current)
			return &resp, nil
		}
		if from != to && !domain.CanTransition(from, to) {
			return nil, &domain.IllegalTransitionError{From: from, To: to}
		}

		applied, err = s.repo.UpdateStatus(ctx, s.db, domain.StatusUpdate{
			ID:                orderID,
			From:              from,
			To:                to,
			TrackingNumber:    tracking,
			EstimatedDelivery: estimated,
			Now:               s.clock.Now(),
		})
		if err != nil {
			return nil, err
		}
	}
	if !applied {
		return nil, domain.ErrConcurrentUpdate
	}

	updated, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, domain.ErrNotFound
	}

	if from != to {
		orderRef := snowflake.ID(orderID).String()
		userRef := snowflake.ID(updated.UserID).String()
		s.log.Info("order status changed",
			zap.String("order_id", orderRef),
			zap.String("from_status", string(from)),
			zap.String("to_status", string(to)),
		)
		s.metrics.RecordStatusTransition(ctx, string(from), string(to))

		changed := events.New(events.TypeOrderStatusChanged,
			fmt.Sprintf("Order %s is now %s", updated.OrderNumber, to),
			orderRef,
			map[string]any{
				"order_number": updated.OrderNumber,
				"from":         string(from),
				"to":           string(to),
			},
		)
		changed.Channels = []string{events.ChannelAdmin, events.UserChannel(userRef)}
		s.emit(ctx, changed)
	}

	resp := toResponse(updated)
	s.attachCustomers(ctx, []*domain.Response{&resp}, []int64{updated.UserID})
	return &resp, nil
}
