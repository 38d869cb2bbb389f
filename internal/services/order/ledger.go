package order

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"restaurant-pos/internal/models"
	"restaurant-pos/internal/storage"
)

// Ledger aggregates the unpaid orders of one table. An empty table is a valid zero ledger.
func Ledger(orders []models.Order, table int) models.TableLedger {
	ledger := models.TableLedger{
		TableNumber: table,
		Orders:      []models.Order{},
		TotalAmount: decimal.Zero,
	}
	for _, o := range orders {
		if o.IsPaid || o.TableNumber != table {
			continue
		}
		ledger.Orders = append(ledger.Orders, o)
		ledger.TotalAmount = ledger.TotalAmount.Add(o.TotalAmount)
		ledger.ItemCount += len(o.Items)
	}
	ledger.OrderCount = len(ledger.Orders)
	return ledger
}

// GetTable returns the ledger of a table
func (s *Service) GetTable(ctx context.Context, branch string, table int) (models.TableLedger, error) {
	if err := validateTableNumber(table); err != nil {
		return models.TableLedger{}, err
	}
	live, err := s.load(ctx, branch, storage.Live)
	if err != nil {
		return models.TableLedger{}, err
	}
	return Ledger(live, table), nil
}

// ListTables returns a ledger for every table with unpaid orders, ordered by table number
func (s *Service) ListTables(ctx context.Context, branch string) ([]models.TableLedger, error) {
	live, err := s.load(ctx, branch, storage.Live)
	if err != nil {
		return nil, err
	}

	seen := map[int]bool{}
	var tables []int
	for _, o := range live {
		if o.IsPaid || o.TableNumber < 1 || seen[o.TableNumber] {
			continue
		}
		seen[o.TableNumber] = true
		tables = append(tables, o.TableNumber)
	}
	sort.Ints(tables)

	ledgers := make([]models.TableLedger, 0, len(tables))
	for _, t := range tables {
		ledgers = append(ledgers, Ledger(live, t))
	}
	return ledgers, nil
}
