package report

import (
	"github.com/shopspring/decimal"

	"restaurant-pos/internal/models"
)

type totals struct {
	revenue        decimal.Decimal
	receiptRevenue decimal.Decimal
	waiters        map[string]WaiterSales
	methods        PaymentMethods
}

// tally credits every paid order with the full final amount of its payment.
// Orders settled together carry the same payment, so receiptRevenue counts
// each receipt once alongside.
func tally(orders []models.Order) totals {
	t := totals{
		revenue:        decimal.Zero,
		receiptRevenue: decimal.Zero,
		waiters:        map[string]WaiterSales{},
		methods:        PaymentMethods{Cash: decimal.Zero, Card: decimal.Zero},
	}
	receipts := map[string]bool{}
	for _, o := range orders {
		p := o.Payment
		t.revenue = t.revenue.Add(p.FinalAmount)
		if p.Method == models.PaymentCash {
			t.methods.Cash = t.methods.Cash.Add(p.FinalAmount)
		} else {
			t.methods.Card = t.methods.Card.Add(p.FinalAmount)
		}

		receipt := p.ID
		if receipt == "" {
			receipt = "order:" + o.ID
		}
		if !receipts[receipt] {
			receipts[receipt] = true
			t.receiptRevenue = t.receiptRevenue.Add(p.FinalAmount)
		}

		if o.WaiterID == "" || o.WaiterName == "" {
			continue
		}
		w, ok := t.waiters[o.WaiterID]
		if !ok {
			w = WaiterSales{Name: o.WaiterName, Sales: decimal.Zero}
		}
		w.Sales = w.Sales.Add(p.FinalAmount)
		t.waiters[o.WaiterID] = w
	}
	return t
}
