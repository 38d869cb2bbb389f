package order

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/storage"
)

// CreateOrder expands the cart against the menu and appends the order to the
// live set. An unknown menu item aborts the whole order.
func (s *Service) CreateOrder(ctx context.Context, actor models.Actor, req models.CreateOrderRequest) (models.Order, error) {
	if actor.Role != models.RoleWaiter {
		return models.Order{}, &models.AuthorizationError{Reason: "only waiters create orders"}
	}
	if err := req.Validate(); err != nil {
		return models.Order{}, err
	}

	items, err := s.expand(ctx, actor.Branch, req.Items)
	if err != nil {
		return models.Order{}, err
	}
	if len(items) == 0 {
		return models.Order{}, &models.ValidationError{Field: "items", Message: "no orderable items in cart"}
	}

	order := models.Order{
		ID:          s.newID(),
		WaiterID:    actor.ID,
		WaiterName:  actor.Name,
		TableNumber: req.TableNumber,
		Items:       items,
		CreatedAt:   s.now().UTC(),
		TotalAmount: orderTotal(items),
		Branch:      actor.Branch,
	}

	unlock := s.locker.Lock(actor.Branch)
	live, err := s.load(ctx, actor.Branch, storage.Live)
	if err == nil {
		err = s.save(ctx, actor.Branch, storage.Write{Collection: storage.Live, Orders: append(live, order)})
	}
	unlock()
	if err != nil {
		return models.Order{}, err
	}

	s.metrics.OrderCreated(ctx, actor.Branch, len(items))
	s.logger.Info("order_created", "Order created", logger.RequestID(ctx), map[string]interface{}{
		"order_id":     order.ID,
		"table":        order.TableNumber,
		"items":        len(order.Items),
		"total_amount": order.TotalAmount.String(),
	})
	s.publish(ctx, actor.Branch, models.NewOrderEvent(order))
	return order, nil
}

func (s *Service) expand(ctx context.Context, branch string, lines []models.CartLine) ([]models.OrderItem, error) {
	var items []models.OrderItem
	for _, line := range lines {
		entry, err := s.menu.Resolve(ctx, branch, line.MenuItemID)
		if err != nil {
			return nil, err
		}

		if !entry.IsBundle() {
			items = append(items, s.newItem(entry.ID, entry.Name, line.Quantity, entry.Price, entry.PrepCategory()))
			continue
		}

		for _, comp := range entry.Items {
			full, err := s.menu.Resolve(ctx, branch, comp.ID)
			if errors.Is(err, models.ErrNotFound) {
				s.logger.Warn("bundle_component_missing", "Skipping bundle component missing from menu", logger.RequestID(ctx), map[string]interface{}{
					"bundle":    entry.ID,
					"component": comp.ID,
				})
				continue
			}
			if err != nil {
				return nil, err
			}
			category := comp.Category
			if !category.Valid() {
				category = full.PrepCategory()
			}
			items = append(items, s.newItem(full.ID, entry.Name+" - "+full.Name, line.Quantity, full.Price, category))
		}
	}
	return items, nil
}

func (s *Service) newItem(menuID, name string, qty int, price decimal.Decimal, category models.PrepCategory) models.OrderItem {
	return models.OrderItem{
		ID:           s.newID(),
		MenuItemID:   menuID,
		MenuItemName: name,
		Quantity:     qty,
		Price:        price,
		Category:     category,
		Status:       models.StatusPending,
	}
}

// orderTotal sums every item including ones later cancelled; it is fixed at creation
func orderTotal(items []models.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}
