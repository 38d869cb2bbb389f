package order

import (
	"context"

	"restaurant-pos/internal/models"
	"restaurant-pos/internal/storage"
)

// Visible projects the live set for a role. Stations see their active queue
// only; the underlying orders are never modified.
func Visible(role models.Role, orders []models.Order) ([]models.Order, error) {
	if station, ok := role.Station(); ok {
		out := []models.Order{}
		for _, o := range orders {
			var queue []models.OrderItem
			for _, it := range o.Items {
				if it.Category != station {
					continue
				}
				switch it.Status {
				case models.StatusServed, models.StatusCancelled, models.StatusReady:
					continue
				}
				queue = append(queue, it)
			}
			if len(queue) == 0 {
				continue
			}
			view := o.Clone()
			view.Items = queue
			out = append(out, view)
		}
		return out, nil
	}

	switch role {
	case models.RoleWaiter, models.RoleAdmin:
		return orders, nil
	case models.RoleCashier:
		out := []models.Order{}
		for _, o := range orders {
			if !o.IsPaid {
				out = append(out, o)
			}
		}
		return out, nil
	}
	return nil, &models.AuthorizationError{Reason: "unknown role " + string(role)}
}

// VisibleOrders returns the live orders the actor may see
func (s *Service) VisibleOrders(ctx context.Context, actor models.Actor) ([]models.Order, error) {
	live, err := s.load(ctx, actor.Branch, storage.Live)
	if err != nil {
		return nil, err
	}
	return Visible(actor.Role, live)
}

// CompletedOrders returns archive records; stations see only their own items
func (s *Service) CompletedOrders(ctx context.Context, actor models.Actor) ([]models.Order, error) {
	if !actor.Role.Valid() {
		return nil, &models.AuthorizationError{Reason: "unknown role " + string(actor.Role)}
	}
	archived, err := s.load(ctx, actor.Branch, storage.Archive)
	if err != nil {
		return nil, err
	}

	station, ok := actor.Role.Station()
	if !ok {
		return archived, nil
	}
	out := []models.Order{}
	for _, o := range archived {
		var mine []models.OrderItem
		for _, it := range o.Items {
			if it.Category == station {
				mine = append(mine, it)
			}
		}
		if len(mine) > 0 {
			view := o.Clone()
			view.Items = mine
			out = append(out, view)
		}
	}
	return out, nil
}
