package order

import (
	"context"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/storage"
)

// authorizeTransition decides whether actor may set item to target.
// Stations drive preparation of their own category; waiters only serve their own orders.
func authorizeTransition(actor models.Actor, order models.Order, item models.OrderItem, target models.ItemStatus) error {
	if station, ok := actor.Role.Station(); ok {
		if item.Category != station {
			return &models.AuthorizationError{Reason: "item belongs to the " + string(item.Category)}
		}
		switch target {
		case models.StatusInProgress, models.StatusReady, models.StatusCancelled:
			return nil
		}
		return &models.AuthorizationError{Reason: string(actor.Role) + " cannot set " + string(target)}
	}

	if actor.Role == models.RoleWaiter {
		if order.WaiterID != actor.ID {
			return &models.AuthorizationError{Reason: "order belongs to another waiter"}
		}
		if target != models.StatusServed {
			return &models.AuthorizationError{Reason: "waiters can only mark items as SERVED"}
		}
		return nil
	}

	return &models.AuthorizationError{Reason: string(actor.Role) + " cannot change item status"}
}

// TransitionItem moves one item of a live order through the state machine
func (s *Service) TransitionItem(ctx context.Context, actor models.Actor, req models.TransitionRequest) (models.Order, error) {
	if err := validateStatus(req.Status); err != nil {
		return models.Order{}, err
	}

	order, from, err := s.applyTransition(ctx, actor, req)
	if err != nil {
		return models.Order{}, err
	}

	s.metrics.ItemTransitioned(ctx, actor.Branch, string(req.Status))
	s.logger.Info("item_status_changed", "Item status changed", logger.RequestID(ctx), map[string]interface{}{
		"order_id": order.ID,
		"item_id":  req.ItemID,
		"from":     string(from),
		"to":       string(req.Status),
		"actor":    actor.ID,
	})
	s.publish(ctx, actor.Branch, models.OrderUpdatedEvent(order))
	return order.Clone(), nil
}

// applyTransition is the locked read-modify-write of TransitionItem
func (s *Service) applyTransition(ctx context.Context, actor models.Actor, req models.TransitionRequest) (models.Order, models.ItemStatus, error) {
	unlock := s.locker.Lock(actor.Branch)
	defer unlock()

	live, err := s.load(ctx, actor.Branch, storage.Live)
	if err != nil {
		return models.Order{}, "", err
	}
	oi := findOrder(live, req.OrderID)
	if oi < 0 {
		return models.Order{}, "", &models.NotFoundError{Resource: "order", ID: req.OrderID}
	}
	order := live[oi].Clone()
	ii := order.ItemByID(req.ItemID)
	if ii < 0 {
		return models.Order{}, "", &models.NotFoundError{Resource: "item", ID: req.ItemID}
	}
	item := &order.Items[ii]

	if err := authorizeTransition(actor, order, *item, req.Status); err != nil {
		return models.Order{}, "", err
	}
	if err := validateTransition(item.Status, req.Status); err != nil {
		return models.Order{}, "", err
	}
	if err := validateCancelReason(req.Status, req.CancelledReason); err != nil {
		return models.Order{}, "", err
	}

	from := item.Status
	item.Status = req.Status
	item.CancelledReason = ""
	if req.Status == models.StatusCancelled {
		item.CancelledReason = req.CancelledReason
	}
	live[oi] = order

	if err := s.save(ctx, actor.Branch, storage.Write{Collection: storage.Live, Orders: live}); err != nil {
		return models.Order{}, "", err
	}
	return order, from, nil
}

// MoveTable reassigns an unpaid order of the calling waiter to another table
func (s *Service) MoveTable(ctx context.Context, actor models.Actor, orderID string, newTable int) (models.Order, error) {
	if actor.Role != models.RoleWaiter {
		return models.Order{}, &models.AuthorizationError{Reason: "only waiters move orders"}
	}
	if err := validateTableNumber(newTable); err != nil {
		return models.Order{}, err
	}

	order, from, err := s.applyMove(ctx, actor, orderID, newTable)
	if err != nil {
		return models.Order{}, err
	}

	s.logger.Info("order_moved", "Order moved to another table", logger.RequestID(ctx), map[string]interface{}{
		"order_id": orderID,
		"from":     from,
		"to":       newTable,
	})
	s.publish(ctx, actor.Branch, models.OrderUpdatedEvent(order))
	return order.Clone(), nil
}

func (s *Service) applyMove(ctx context.Context, actor models.Actor, orderID string, newTable int) (models.Order, int, error) {
	unlock := s.locker.Lock(actor.Branch)
	defer unlock()

	live, err := s.load(ctx, actor.Branch, storage.Live)
	if err != nil {
		return models.Order{}, 0, err
	}
	oi := findOrder(live, orderID)
	if oi < 0 {
		return models.Order{}, 0, &models.NotFoundError{Resource: "order", ID: orderID}
	}
	if live[oi].WaiterID != actor.ID {
		return models.Order{}, 0, &models.AuthorizationError{Reason: "order belongs to another waiter"}
	}
	if live[oi].IsPaid {
		return models.Order{}, 0, &models.ValidationError{Field: "orderId", Message: "paid orders cannot be moved"}
	}

	from := live[oi].TableNumber
	live[oi].TableNumber = newTable
	if err := s.save(ctx, actor.Branch, storage.Write{Collection: storage.Live, Orders: live}); err != nil {
		return models.Order{}, 0, err
	}
	return live[oi].Clone(), from, nil
}
