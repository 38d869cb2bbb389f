package order

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/storage"
)

// Settlement is the outcome of a successful Pay
type Settlement struct {
	Payment models.Payment `json:"payment"`
	Orders  []models.Order `json:"orders"`
}

// Pay settles every unpaid order of a table with one payment record. The
// live set is rewritten in a single write; on any failure no order is marked paid.
func (s *Service) Pay(ctx context.Context, actor models.Actor, req models.PayRequest) (Settlement, error) {
	if actor.Role != models.RoleCashier {
		return Settlement{}, &models.AuthorizationError{Reason: "only cashiers settle tables"}
	}
	if err := validatePayRequest(req); err != nil {
		return Settlement{}, err
	}

	payment, settled, err := s.settle(ctx, actor, req)
	if err != nil {
		return Settlement{}, err
	}

	final := payment.FinalAmount
	f, _ := final.Float64()
	s.metrics.PaymentCompleted(ctx, actor.Branch, string(req.Method), f)
	s.logger.Info("payment_completed", "Table settled", logger.RequestID(ctx), map[string]interface{}{
		"table":        req.TableNumber,
		"orders":       len(settled),
		"gross":        payment.Amount.String(),
		"discount":     req.Discount.String(),
		"final_amount": final.String(),
		"method":       string(req.Method),
		"receipt_id":   payment.ID,
	})
	s.publish(ctx, actor.Branch, models.PaymentCompletedEvent(req.TableNumber, settled))
	return Settlement{Payment: payment, Orders: settled}, nil
}

// settle marks every unpaid order of the table paid in one locked write
func (s *Service) settle(ctx context.Context, actor models.Actor, req models.PayRequest) (models.Payment, []models.Order, error) {
	unlock := s.locker.Lock(actor.Branch)
	defer unlock()

	live, err := s.load(ctx, actor.Branch, storage.Live)
	if err != nil {
		return models.Payment{}, nil, err
	}

	var idx []int
	gross := decimal.Zero
	for i, o := range live {
		if !o.IsPaid && o.TableNumber == req.TableNumber {
			idx = append(idx, i)
			gross = gross.Add(o.TotalAmount)
		}
	}
	if len(idx) == 0 {
		return models.Payment{}, nil, &models.NotFoundError{Resource: "unpaid orders for table", ID: strconv.Itoa(req.TableNumber)}
	}
	if err := validateDiscount(req.Discount, gross); err != nil {
		return models.Payment{}, nil, err
	}

	final := gross.Sub(req.Discount)
	if final.IsNegative() {
		final = decimal.Zero
	}
	payment := models.Payment{
		ID:          s.newID(),
		Method:      req.Method,
		Amount:      gross,
		Discount:    req.Discount,
		FinalAmount: final,
		PaidAt:      s.now().UTC(),
		CashierID:   actor.ID,
		CashierName: actor.Name,
	}

	updated := make([]models.Order, len(live))
	copy(updated, live)
	settled := make([]models.Order, 0, len(idx))
	for _, i := range idx {
		o := updated[i].Clone()
		p := payment
		o.Payment = &p
		o.IsPaid = true
		updated[i] = o
		settled = append(settled, o.Clone())
	}

	if err := s.save(ctx, actor.Branch, storage.Write{Collection: storage.Live, Orders: updated}); err != nil {
		return models.Payment{}, nil, err
	}
	return payment, settled, nil
}
