// Package report rolls paid orders of a branch up into revenue reports.
//
// Every view scans the live and archived collections together and keeps
// only paid orders that carry a payment. Orders settled together share one
// payment record and each of them contributes its full final amount; the
// receipt revenue fields count every payment once.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/storage"
)

const dateLayout = "2006-01-02"

const topProductLimit = 10

// Period selects the window of a period report
type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Custom  Period = "custom"
)

// WaiterSales is the revenue credited to one waiter
type WaiterSales struct {
	Name  string          `json:"name"`
	Sales decimal.Decimal `json:"sales"`
}

// PaymentMethods splits revenue by payment method
type PaymentMethods struct {
	Cash decimal.Decimal `json:"cash"`
	Card decimal.Decimal `json:"card"`
}

// ProductSales is one row of the top products list
type ProductSales struct {
	MenuItemID string          `json:"menuItemId"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	Revenue    decimal.Decimal `json:"revenue"`
}

// LiveReport covers orders created today
type LiveReport struct {
	TotalRevenue   decimal.Decimal        `json:"totalRevenue"`
	ReceiptRevenue decimal.Decimal        `json:"receiptRevenue"`
	WaiterSales    map[string]WaiterSales `json:"waiterSales"`
	OrderCount     int                    `json:"orderCount"`
}

// PeriodReport covers orders created inside [StartDate, EndDate]
type PeriodReport struct {
	Period         Period                 `json:"period"`
	TotalRevenue   decimal.Decimal        `json:"totalRevenue"`
	ReceiptRevenue decimal.Decimal        `json:"receiptRevenue"`
	WaiterSales    map[string]WaiterSales `json:"waiterSales"`
	PaymentMethods PaymentMethods         `json:"paymentMethods"`
	OrderCount     int                    `json:"orderCount"`
	StartDate      time.Time              `json:"startDate"`
	EndDate        time.Time              `json:"endDate"`
}

// DailyReport is today's detail view
type DailyReport struct {
	TotalRevenue    decimal.Decimal        `json:"totalRevenue"`
	ReceiptRevenue  decimal.Decimal        `json:"receiptRevenue"`
	CancelledAmount decimal.Decimal        `json:"cancelledAmount"`
	WaiterSales     map[string]WaiterSales `json:"waiterSales"`
	TopProducts     []ProductSales         `json:"topProducts"`
	PaymentMethods  PaymentMethods         `json:"paymentMethods"`
	OrderCount      int                    `json:"orderCount"`
}

// ClearResult counts the records removed by ClearRange
type ClearResult struct {
	RemovedOrders          int `json:"removedOrders"`
	RemovedCompletedOrders int `json:"removedCompletedOrders"`
}

// Service computes reports for a branch
type Service struct {
	store    storage.Store
	locker   *storage.Locker
	location *time.Location
	logger   *logger.Logger
	now      func() time.Time
}

// Option customizes a Service
type Option func(*Service)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a report service. Calendar days are evaluated in loc.
func NewService(store storage.Store, locker *storage.Locker, loc *time.Location, log *logger.Logger, opts ...Option) *Service {
	if loc == nil {
		loc = time.Local
	}
	s := &Service{
		store:    store,
		locker:   locker,
		location: loc,
		logger:   log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Live reports revenue of orders created today
func (s *Service) Live(ctx context.Context, branch string) (LiveReport, error) {
	orders, err := s.paidOrders(ctx, branch)
	if err != nil {
		return LiveReport{}, err
	}
	today := s.today()
	var selected []models.Order
	for _, o := range orders {
		if s.sameDay(o.CreatedAt, today) {
			selected = append(selected, o)
		}
	}
	t := tally(selected)
	return LiveReport{
		TotalRevenue:   t.revenue,
		ReceiptRevenue: t.receiptRevenue,
		WaiterSales:    t.waiters,
		OrderCount:     len(selected),
	}, nil
}

// Period reports revenue for a calendar window. start and end are optional
// YYYY-MM-DD dates that override the default window of weekly and monthly
// reports; a custom report requires both.
func (s *Service) Period(ctx context.Context, branch string, period Period, start, end string) (PeriodReport, error) {
	from, to, err := s.window(period, start, end)
	if err != nil {
		return PeriodReport{}, err
	}
	orders, err := s.paidOrders(ctx, branch)
	if err != nil {
		return PeriodReport{}, err
	}
	var selected []models.Order
	for _, o := range orders {
		if !o.CreatedAt.Before(from) && !o.CreatedAt.After(to) {
			selected = append(selected, o)
		}
	}
	t := tally(selected)
	return PeriodReport{
		Period:         period,
		TotalRevenue:   t.revenue,
		ReceiptRevenue: t.receiptRevenue,
		WaiterSales:    t.waiters,
		PaymentMethods: t.methods,
		OrderCount:     len(selected),
		StartDate:      from,
		EndDate:        to,
	}, nil
}

// Daily reports today's revenue with cancellations and the best selling products
func (s *Service) Daily(ctx context.Context, branch string) (DailyReport, error) {
	orders, err := s.paidOrders(ctx, branch)
	if err != nil {
		return DailyReport{}, err
	}
	today := s.today()
	var selected []models.Order
	for _, o := range orders {
		if s.sameDay(o.CreatedAt, today) {
			selected = append(selected, o)
		}
	}
	t := tally(selected)

	cancelled := decimal.Zero
	products := map[string]*ProductSales{}
	var seen []string
	for _, o := range selected {
		for _, it := range o.Items {
			if it.Status == models.StatusCancelled {
				cancelled = cancelled.Add(it.LineTotal())
				continue
			}
			p, ok := products[it.MenuItemID]
			if !ok {
				p = &ProductSales{MenuItemID: it.MenuItemID, Name: it.MenuItemName, Revenue: decimal.Zero}
				products[it.MenuItemID] = p
				seen = append(seen, it.MenuItemID)
			}
			p.Quantity += it.Quantity
			p.Revenue = p.Revenue.Add(it.LineTotal())
		}
	}
	top := make([]ProductSales, 0, len(seen))
	for _, id := range seen {
		top = append(top, *products[id])
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].Quantity > top[j].Quantity })
	if len(top) > topProductLimit {
		top = top[:topProductLimit]
	}

	return DailyReport{
		TotalRevenue:    t.revenue,
		ReceiptRevenue:  t.receiptRevenue,
		CancelledAmount: cancelled,
		WaiterSales:     t.waiters,
		TopProducts:     top,
		PaymentMethods:  t.methods,
		OrderCount:      len(selected),
	}, nil
}

// ClearRange deletes live and archived orders created within the inclusive
// date range. Orders created today are always kept.
func (s *Service) ClearRange(ctx context.Context, branch, start, end string) (ClearResult, error) {
	if start == "" || end == "" {
		return ClearResult{}, &models.ValidationError{Field: "start", Message: "start and end are required (YYYY-MM-DD)"}
	}
	from, err := s.parseDate("start", start)
	if err != nil {
		return ClearResult{}, err
	}
	to, err := s.parseDate("end", end)
	if err != nil {
		return ClearResult{}, err
	}
	to = endOfDay(to)
	today := s.today()

	remove := func(o models.Order) bool {
		return !o.CreatedAt.Before(from) && !o.CreatedAt.After(to) && !s.sameDay(o.CreatedAt, today)
	}

	unlock := s.locker.Lock(branch)
	defer unlock()

	live, err := s.list(ctx, branch, storage.Live)
	if err != nil {
		return ClearResult{}, err
	}
	archive, err := s.list(ctx, branch, storage.Archive)
	if err != nil {
		return ClearResult{}, err
	}
	keptLive, keptArchive := keep(live, remove), keep(archive, remove)
	res := ClearResult{
		RemovedOrders:          len(live) - len(keptLive),
		RemovedCompletedOrders: len(archive) - len(keptArchive),
	}
	if res.RemovedOrders == 0 && res.RemovedCompletedOrders == 0 {
		return res, nil
	}

	if err := s.store.Replace(ctx, branch,
		storage.Write{Collection: storage.Live, Orders: keptLive},
		storage.Write{Collection: storage.Archive, Orders: keptArchive},
	); err != nil {
		s.logger.Error("persistence_failed", "Failed to write cleared collections", logger.RequestID(ctx), err, map[string]interface{}{
			"branch": branch,
		})
		return ClearResult{}, &models.PersistenceError{Op: "clear range", Err: err}
	}
	s.logger.Info("report_range_cleared", "Orders removed from range", logger.RequestID(ctx), map[string]interface{}{
		"branch":                   branch,
		"start":                    start,
		"end":                      end,
		"removed_orders":           res.RemovedOrders,
		"removed_completed_orders": res.RemovedCompletedOrders,
	})
	return res, nil
}

func keep(orders []models.Order, remove func(models.Order) bool) []models.Order {
	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if !remove(o) {
			out = append(out, o)
		}
	}
	return out
}

func (s *Service) window(period Period, start, end string) (time.Time, time.Time, error) {
	now := s.now().In(s.location)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)

	if start != "" && end != "" && (period == Weekly || period == Monthly || period == Custom) {
		from, err := s.parseDate("start", start)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to, err := s.parseDate("end", end)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = endOfDay(to)
		if to.Before(from) {
			return time.Time{}, time.Time{}, &models.ValidationError{Field: "end", Message: "end is before start"}
		}
		return from, to, nil
	}

	switch period {
	case Daily:
		return midnight, now, nil
	case Weekly:
		return midnight.AddDate(0, 0, -int(now.Weekday())), now, nil
	case Monthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.location), now, nil
	case Custom:
		return time.Time{}, time.Time{}, &models.ValidationError{Field: "start", Message: "custom period requires start and end"}
	}
	return time.Time{}, time.Time{}, &models.ValidationError{Field: "period", Message: "period must be daily, weekly, monthly or custom"}
}

func (s *Service) parseDate(field, value string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, value, s.location)
	if err != nil {
		return time.Time{}, &models.ValidationError{Field: field, Message: "date must be YYYY-MM-DD"}
	}
	return t, nil
}

func endOfDay(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, int(999*time.Millisecond), day.Location())
}

func (s *Service) today() string {
	return s.now().In(s.location).Format(dateLayout)
}

func (s *Service) sameDay(t time.Time, day string) bool {
	return t.In(s.location).Format(dateLayout) == day
}

func (s *Service) list(ctx context.Context, branch string, coll storage.Collection) ([]models.Order, error) {
	orders, err := s.store.List(ctx, branch, coll)
	if err != nil {
		s.logger.Error("persistence_failed", "Failed to read orders", logger.RequestID(ctx), err, map[string]interface{}{
			"branch":     branch,
			"collection": string(coll),
		})
		return nil, &models.PersistenceError{Op: "read " + string(coll), Err: err}
	}
	return orders, nil
}

// paidOrders returns paid live and archived orders that carry a payment
func (s *Service) paidOrders(ctx context.Context, branch string) ([]models.Order, error) {
	live, err := s.list(ctx, branch, storage.Live)
	if err != nil {
		return nil, err
	}
	archive, err := s.list(ctx, branch, storage.Archive)
	if err != nil {
		return nil, err
	}
	var out []models.Order
	for _, o := range append(live, archive...) {
		if o.IsPaid && o.Payment != nil {
			out = append(out, o)
		}
	}
	return out, nil
}
