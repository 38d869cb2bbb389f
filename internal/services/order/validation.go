package order

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"restaurant-pos/internal/models"
)

// next lists the forward moves of the item state machine
var next = map[models.ItemStatus][]models.ItemStatus{
	models.StatusPending:    {models.StatusInProgress, models.StatusCancelled},
	models.StatusInProgress: {models.StatusReady, models.StatusCancelled},
	models.StatusReady:      {models.StatusServed},
}

func validateTransition(from, to models.ItemStatus) error {
	for _, s := range next[from] {
		if s == to {
			return nil
		}
	}
	return &models.ValidationError{
		Field:   "status",
		Message: fmt.Sprintf("cannot move item from %s to %s", from, to),
	}
}

func validateStatus(status models.ItemStatus) error {
	if !status.Valid() {
		return &models.ValidationError{Field: "status", Message: "unknown item status"}
	}
	return nil
}

func validateCancelReason(status models.ItemStatus, reason string) error {
	if status == models.StatusCancelled && strings.TrimSpace(reason) == "" {
		return &models.ValidationError{Field: "cancelledReason", Message: "cancellation reason is required"}
	}
	return nil
}

func validateTableNumber(table int) error {
	if table < 1 {
		return &models.ValidationError{Field: "tableNumber", Message: "table number must be at least 1"}
	}
	return nil
}

func validatePayRequest(req models.PayRequest) error {
	if err := validateTableNumber(req.TableNumber); err != nil {
		return err
	}
	if !req.Method.Valid() {
		return &models.ValidationError{Field: "paymentMethod", Message: "payment method must be cash or card"}
	}
	if req.Discount.IsNegative() {
		return &models.ValidationError{Field: "discount", Message: "discount must not be negative"}
	}
	return nil
}

func validateDiscount(discount, gross decimal.Decimal) error {
	if discount.GreaterThan(gross) {
		return &models.ValidationError{
			Field:   "discount",
			Message: fmt.Sprintf("discount %s exceeds table total %s", discount, gross),
		}
	}
	return nil
}
