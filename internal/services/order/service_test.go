package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/menu"
	"restaurant-pos/internal/messaging"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/storage"
)

const branch = "main"

var (
	waiter  = models.Actor{ID: "w1", Name: "Ayse", Role: models.RoleWaiter, Branch: branch}
	waiter2 = models.Actor{ID: "w2", Name: "Mehmet", Role: models.RoleWaiter, Branch: branch}
	kitchen = models.Actor{ID: "k1", Name: "Kitchen", Role: models.RoleKitchen, Branch: branch}
	bar     = models.Actor{ID: "b1", Name: "Bar", Role: models.RoleBar, Branch: branch}
	cashier = models.Actor{ID: "c1", Name: "Kasa", Role: models.RoleCashier, Branch: branch}
	admin   = models.Actor{ID: "a1", Name: "Admin", Role: models.RoleAdmin, Branch: branch}
)

func testMenu() []models.MenuItem {
	return []models.MenuItem{
		{ID: "a", Name: "Adana", Price: decimal.NewFromInt(50), Category: models.MenuKitchen, MenuCategory: "food"},
		{ID: "b", Name: "Raki", Price: decimal.NewFromInt(30), Category: models.MenuBar, MenuCategory: "drink"},
		{ID: "d1", Name: "Baklava", Price: decimal.NewFromInt(20), Category: models.MenuDessert, MenuCategory: "dessert"},
		{ID: "d2", Name: "Affogato", Price: decimal.NewFromInt(25), Category: models.MenuBar, MenuCategory: "dessert"},
		{ID: "c", Name: "Combo", Price: decimal.NewFromInt(70), Category: models.MenuCampaign, Items: []models.BundleComponent{
			{ID: "a", Name: "Adana", Category: models.PrepKitchen},
			{ID: "b", Name: "Raki", Category: models.PrepBar},
			{ID: "ghost", Name: "Gone", Category: models.PrepKitchen},
		}},
		{ID: "empty", Name: "Empty Combo", Price: decimal.NewFromInt(10), Category: models.MenuCampaign, Items: []models.BundleComponent{
			{ID: "ghost", Name: "Gone", Category: models.PrepKitchen},
		}},
	}
}

// flakyStore fails reads or writes on demand
type flakyStore struct {
	storage.Store
	failReplace bool
	failList    bool
}

func (f *flakyStore) List(ctx context.Context, b string, c storage.Collection) ([]models.Order, error) {
	if f.failList {
		return nil, errors.New("read failed")
	}
	return f.Store.List(ctx, b, c)
}

func (f *flakyStore) Replace(ctx context.Context, b string, w ...storage.Write) error {
	if f.failReplace {
		return errors.New("disk full")
	}
	return f.Store.Replace(ctx, b, w...)
}

type fixture struct {
	svc    *Service
	store  *flakyStore
	events <-chan models.Event
	clock  *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := menu.NewCatalog("", messaging.Discard{}, logger.Discard())
	require.NoError(t, err)
	catalog.Seed(branch, testMenu())

	hub := messaging.NewHub(64)
	events, cancel := hub.Subscribe(branch)
	t.Cleanup(cancel)

	store := &flakyStore{Store: storage.NewMemoryStore()}
	clock := &fakeClock{now: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)}
	var seq int
	var mu sync.Mutex
	svc := NewService(store, catalog, hub, storage.NewLocker(), logger.Discard(),
		WithClock(clock.Now),
		WithIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	)
	return &fixture{svc: svc, store: store, events: events, clock: clock}
}

func (f *fixture) nextEvent(t *testing.T) models.Event {
	t.Helper()
	select {
	case ev := <-f.events:
		return ev
	case <-time.After(time.Second):
		t.Fatal("expected an event")
		return models.Event{}
	}
}

func (f *fixture) noEvent(t *testing.T) {
	t.Helper()
	select {
	case ev := <-f.events:
		t.Fatalf("unexpected event %s", ev.Type)
	default:
	}
}

func (f *fixture) live(t *testing.T) []models.Order {
	t.Helper()
	orders, err := f.store.Store.List(context.Background(), branch, storage.Live)
	require.NoError(t, err)
	return orders
}

func (f *fixture) archive(t *testing.T) []models.Order {
	t.Helper()
	orders, err := f.store.Store.List(context.Background(), branch, storage.Archive)
	require.NoError(t, err)
	return orders
}

func (f *fixture) order(t *testing.T, actor models.Actor, table int, lines ...models.CartLine) models.Order {
	t.Helper()
	o, err := f.svc.CreateOrder(context.Background(), actor, models.CreateOrderRequest{TableNumber: table, Items: lines})
	require.NoError(t, err)
	f.nextEvent(t)
	return o
}

func (f *fixture) move(t *testing.T, actor models.Actor, o models.Order, itemIdx int, to ...models.ItemStatus) models.Order {
	t.Helper()
	var err error
	for _, status := range to {
		o, err = f.svc.TransitionItem(context.Background(), actor, models.TransitionRequest{
			OrderID: o.ID, ItemID: o.Items[itemIdx].ID, Status: status,
		})
		require.NoError(t, err)
		f.nextEvent(t)
	}
	return o
}

func line(id string, qty int) models.CartLine {
	return models.CartLine{MenuItemID: id, Quantity: qty}
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.svc.CreateOrder(ctx, waiter, models.CreateOrderRequest{
		TableNumber: 5,
		Items:       []models.CartLine{line("a", 2), line("b", 1)},
	})
	require.NoError(t, err)

	assert.Equal(t, "w1", o.WaiterID)
	assert.Equal(t, "Ayse", o.WaiterName)
	assert.Equal(t, 5, o.TableNumber)
	assert.Equal(t, branch, o.Branch)
	assert.False(t, o.IsPaid)
	assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(130)))
	require.Len(t, o.Items, 2)
	assert.Equal(t, models.PrepKitchen, o.Items[0].Category)
	assert.Equal(t, models.PrepBar, o.Items[1].Category)
	for _, it := range o.Items {
		assert.Equal(t, models.StatusPending, it.Status)
		assert.Empty(t, it.CancelledReason)
	}

	ev := f.nextEvent(t)
	assert.Equal(t, models.EventNewOrder, ev.Type)
	assert.Equal(t, o.ID, ev.Order.ID)
	assert.Len(t, f.live(t), 1)
}

func TestCreateOrderExpandsBundle(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, waiter, 3, line("c", 2))

	require.Len(t, o.Items, 2, "missing component is skipped")
	assert.Equal(t, "Combo - Adana", o.Items[0].MenuItemName)
	assert.Equal(t, "a", o.Items[0].MenuItemID)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.True(t, o.Items[0].Price.Equal(decimal.NewFromInt(50)), "component keeps its own price")
	assert.Equal(t, models.PrepKitchen, o.Items[0].Category)
	assert.Equal(t, "Combo - Raki", o.Items[1].MenuItemName)
	assert.Equal(t, models.PrepBar, o.Items[1].Category)
	assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(160)))
}

func TestCreateOrderDessertCategory(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, waiter, 1, line("d1", 1), line("d2", 1))
	assert.Equal(t, models.PrepKitchen, o.Items[0].Category)
	assert.Equal(t, models.PrepBar, o.Items[1].Category)
}

func TestCreateOrderRejects(t *testing.T) {
	tests := []struct {
		name  string
		actor models.Actor
		req   models.CreateOrderRequest
		want  error
	}{
		{"empty cart", waiter, models.CreateOrderRequest{TableNumber: 1}, models.ErrValidation},
		{"zero quantity", waiter, models.CreateOrderRequest{TableNumber: 1, Items: []models.CartLine{line("a", 0)}}, models.ErrValidation},
		{"no table", waiter, models.CreateOrderRequest{Items: []models.CartLine{line("a", 1)}}, models.ErrValidation},
		{"unknown item", waiter, models.CreateOrderRequest{TableNumber: 1, Items: []models.CartLine{line("a", 1), line("zzz", 1)}}, models.ErrNotFound},
		{"bundle with nothing resolvable", waiter, models.CreateOrderRequest{TableNumber: 1, Items: []models.CartLine{line("empty", 1)}}, models.ErrValidation},
		{"cashier", cashier, models.CreateOrderRequest{TableNumber: 1, Items: []models.CartLine{line("a", 1)}}, models.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.CreateOrder(context.Background(), tt.actor, tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Empty(t, f.live(t), "nothing persisted")
			f.noEvent(t)
		})
	}
}

func TestCreateOrderPersistenceFailureDoesNotPublish(t *testing.T) {
	f := newFixture(t)
	f.store.failReplace = true

	_, err := f.svc.CreateOrder(context.Background(), waiter, models.CreateOrderRequest{TableNumber: 1, Items: []models.CartLine{line("a", 1)}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrPersistence))
	var perr *models.PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.EqualError(t, perr.Err, "disk full")
	f.noEvent(t)
}

func TestTransitionLifecycle(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, waiter, 5, line("a", 1))

	o = f.move(t, kitchen, o, 0, models.StatusInProgress, models.StatusReady)
	assert.Equal(t, models.StatusReady, o.Items[0].Status)

	updated, err := f.svc.TransitionItem(context.Background(), waiter, models.TransitionRequest{
		OrderID: o.ID, ItemID: o.Items[0].ID, Status: models.StatusServed,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusServed, updated.Items[0].Status)
	ev := f.nextEvent(t)
	assert.Equal(t, models.EventOrderUpdated, ev.Type)
	assert.Equal(t, models.StatusServed, ev.Order.Items[0].Status)
}

func TestTransitionAuthorization(t *testing.T) {
	tests := []struct {
		name   string
		actor  models.Actor
		item   int
		prep   []models.ItemStatus
		target models.ItemStatus
	}{
		{"kitchen on bar item", kitchen, 1, nil, models.StatusInProgress},
		{"bar on kitchen item", bar, 0, nil, models.StatusInProgress},
		{"kitchen serves", kitchen, 0, []models.ItemStatus{models.StatusInProgress, models.StatusReady}, models.StatusServed},
		{"waiter starts cooking", waiter, 0, nil, models.StatusInProgress},
		{"other waiter serves", waiter2, 0, []models.ItemStatus{models.StatusInProgress, models.StatusReady}, models.StatusServed},
		{"cashier", cashier, 0, nil, models.StatusInProgress},
		{"admin", admin, 0, nil, models.StatusInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			o := f.order(t, waiter, 5, line("a", 1), line("b", 1))
			if len(tt.prep) > 0 {
				o = f.move(t, kitchen, o, 0, tt.prep...)
			}
			before := o.Items[tt.item].Status

			_, err := f.svc.TransitionItem(context.Background(), tt.actor, models.TransitionRequest{
				OrderID: o.ID, ItemID: o.Items[tt.item].ID, Status: tt.target,
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrUnauthorized), "got %v", err)
			assert.Equal(t, before, f.live(t)[0].Items[tt.item].Status)
			f.noEvent(t)
		})
	}
}

func TestTransitionStateRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, waiter, 5, line("a", 1), line("a", 1))

	_, err := f.svc.TransitionItem(ctx, kitchen, models.TransitionRequest{OrderID: o.ID, ItemID: o.Items[0].ID, Status: models.StatusReady})
	assert.True(t, errors.Is(err, models.ErrValidation), "skipping IN_PROGRESS")

	_, err = f.svc.TransitionItem(ctx, kitchen, models.TransitionRequest{OrderID: o.ID, ItemID: o.Items[0].ID, Status: "BURNT"})
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = f.svc.TransitionItem(ctx, kitchen, models.TransitionRequest{OrderID: o.ID, ItemID: o.Items[0].ID, Status: models.StatusCancelled})
	assert.True(t, errors.Is(err, models.ErrValidation), "reason required")

	_, err = f.svc.TransitionItem(ctx, kitchen, models.TransitionRequest{OrderID: o.ID, ItemID: o.Items[0].ID, Status: models.StatusCancelled, CancelledReason: "  "})
	assert.True(t, errors.Is(err, models.ErrValidation), "blank reason")

	o = f.move(t, kitchen, o, 1, models.StatusInProgress)
	cancelled, err := f.svc.TransitionItem(ctx, kitchen, models.TransitionRequest{OrderID: o.ID, ItemID: o.Items[1].ID, Status: models.StatusCancelled, CancelledReason: "out of meat"})
	require.NoError(t, err, "in-progress items can be cancelled")
	assert.Equal(t, "out of meat", cancelled.Items[1].CancelledReason)
	f.nextEvent(t)

	_, err = f.svc.TransitionItem(ctx, kitchen, models.TransitionRequest{OrderID: o.ID, ItemID: o.Items[1].ID, Status: models.StatusInProgress})
	assert.True(t, errors.Is(err, models.ErrValidation), "cancelled is terminal")

	_, err = f.svc.TransitionItem(ctx, kitchen, models.TransitionRequest{OrderID: "nope", ItemID: "x", Status: models.StatusInProgress})
	assert.True(t, errors.Is(err, models.ErrNotFound))
	_, err = f.svc.TransitionItem(ctx, kitchen, models.TransitionRequest{OrderID: o.ID, ItemID: "nope", Status: models.StatusInProgress})
	assert.True(t, errors.Is(err, models.ErrNotFound))
	f.noEvent(t)
}

func TestCancellationKeepsTotal(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, waiter, 2, line("a", 2), line("b", 1))

	_, err := f.svc.TransitionItem(context.Background(), kitchen, models.TransitionRequest{
		OrderID: o.ID, ItemID: o.Items[0].ID, Status: models.StatusCancelled, CancelledReason: "customer left",
	})
	require.NoError(t, err)

	stored := f.live(t)[0]
	assert.Equal(t, models.StatusCancelled, stored.Items[0].Status)
	assert.True(t, stored.TotalAmount.Equal(decimal.NewFromInt(130)))
}

func TestMoveTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, waiter, 2, line("a", 1))

	_, err := f.svc.MoveTable(ctx, waiter2, o.ID, 4)
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
	_, err = f.svc.MoveTable(ctx, cashier, o.ID, 4)
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
	_, err = f.svc.MoveTable(ctx, waiter, o.ID, 0)
	assert.True(t, errors.Is(err, models.ErrValidation))
	_, err = f.svc.MoveTable(ctx, waiter, "missing", 4)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	moved, err := f.svc.MoveTable(ctx, waiter, o.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, moved.TableNumber)
	assert.Equal(t, models.EventOrderUpdated, f.nextEvent(t).Type)

	_, err = f.svc.Pay(ctx, cashier, models.PayRequest{TableNumber: 4, Method: models.PaymentCash})
	require.NoError(t, err)
	f.nextEvent(t)

	_, err = f.svc.MoveTable(ctx, waiter, o.ID, 6)
	assert.True(t, errors.Is(err, models.ErrValidation), "paid orders stay put")
}

func TestVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o1 := f.order(t, waiter, 1, line("a", 1), line("b", 1))
	f.order(t, waiter2, 2, line("b", 1))
	f.move(t, kitchen, o1, 0, models.StatusInProgress, models.StatusReady)

	kv, err := f.svc.VisibleOrders(ctx, kitchen)
	require.NoError(t, err)
	assert.Empty(t, kv, "ready items leave the kitchen queue")

	bv, err := f.svc.VisibleOrders(ctx, bar)
	require.NoError(t, err)
	require.Len(t, bv, 2)
	for _, o := range bv {
		for _, it := range o.Items {
			assert.Equal(t, models.PrepBar, it.Category)
		}
	}
	assert.Len(t, f.live(t)[0].Items, 2, "projection does not touch stored orders")

	wv, err := f.svc.VisibleOrders(ctx, waiter)
	require.NoError(t, err)
	assert.Len(t, wv, 2)

	_, err = f.svc.Pay(ctx, cashier, models.PayRequest{TableNumber: 2, Method: models.PaymentCard})
	require.NoError(t, err)

	cv, err := f.svc.VisibleOrders(ctx, cashier)
	require.NoError(t, err)
	require.Len(t, cv, 1)
	assert.Equal(t, 1, cv[0].TableNumber)

	av, err := f.svc.VisibleOrders(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, av, 2)

	_, err = f.svc.VisibleOrders(ctx, models.Actor{Role: "guest", Branch: branch})
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
}

func TestMoveReadyToArchive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o1 := f.order(t, waiter, 1, line("a", 1), line("b", 1))
	o2 := f.order(t, waiter, 2, line("a", 1))
	f.move(t, kitchen, o1, 0, models.StatusInProgress, models.StatusReady)
	f.move(t, kitchen, o2, 0, models.StatusInProgress, models.StatusReady)

	_, err := f.svc.MoveReadyToArchive(ctx, waiter)
	assert.True(t, errors.Is(err, models.ErrUnauthorized))

	moved, err := f.svc.MoveReadyToArchive(ctx, bar)
	require.NoError(t, err)
	assert.Zero(t, moved, "bar has nothing ready")
	f.noEvent(t)

	moved, err = f.svc.MoveReadyToArchive(ctx, kitchen)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)
	ev := f.nextEvent(t)
	assert.Equal(t, models.EventOrdersMoved, ev.Type)
	assert.Equal(t, 2, ev.Count)

	live := f.live(t)
	require.Len(t, live, 1, "emptied order dropped")
	assert.Equal(t, o1.ID, live[0].ID)
	require.Len(t, live[0].Items, 1)
	assert.Equal(t, models.PrepBar, live[0].Items[0].Category)
	assert.True(t, live[0].TotalAmount.Equal(decimal.NewFromInt(80)), "total unchanged by migration")

	archive := f.archive(t)
	require.Len(t, archive, 2)
	for _, rec := range archive {
		require.NotNil(t, rec.CompletedAt)
		assert.Equal(t, f.clock.Now(), *rec.CompletedAt)
		require.Len(t, rec.Items, 1)
		assert.Equal(t, models.StatusReady, rec.Items[0].Status)
	}

	done, err := f.svc.CompletedOrders(ctx, kitchen)
	require.NoError(t, err)
	assert.Len(t, done, 2)
	done, err = f.svc.CompletedOrders(ctx, bar)
	require.NoError(t, err)
	assert.Empty(t, done)
	done, err = f.svc.CompletedOrders(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, done, 2)
}

func TestMoveReadyToArchiveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, waiter, 1, line("a", 1))
	f.move(t, kitchen, o, 0, models.StatusInProgress, models.StatusReady)

	moved, err := f.svc.MoveReadyToArchive(ctx, kitchen)
	require.NoError(t, err)
	require.Equal(t, 1, moved)
	f.nextEvent(t)
	liveBefore, archiveBefore := f.live(t), f.archive(t)

	f.store.failReplace = true
	moved, err = f.svc.MoveReadyToArchive(ctx, kitchen)
	require.NoError(t, err, "no write is attempted")
	assert.Zero(t, moved)
	assert.Equal(t, liveBefore, f.live(t))
	assert.Equal(t, archiveBefore, f.archive(t))
	f.noEvent(t)
}

func TestMoveReadyToArchiveSkipsPaidOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, waiter, 1, line("a", 1))
	f.move(t, kitchen, o, 0, models.StatusInProgress, models.StatusReady)
	_, err := f.svc.Pay(ctx, cashier, models.PayRequest{TableNumber: 1, Method: models.PaymentCash})
	require.NoError(t, err)
	f.nextEvent(t)

	moved, err := f.svc.MoveReadyToArchive(ctx, kitchen)
	require.NoError(t, err)
	assert.Zero(t, moved)
}

func TestTableLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.order(t, waiter, 5, line("a", 2), line("b", 1))
	f.order(t, waiter2, 5, line("b", 1))
	f.order(t, waiter, 7, line("a", 1))

	ledger, err := f.svc.GetTable(ctx, branch, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, ledger.TableNumber)
	assert.Equal(t, 2, ledger.OrderCount)
	assert.Equal(t, 3, ledger.ItemCount)
	assert.True(t, ledger.TotalAmount.Equal(decimal.NewFromInt(160)))

	empty, err := f.svc.GetTable(ctx, branch, 9)
	require.NoError(t, err)
	assert.Zero(t, empty.OrderCount)
	assert.True(t, empty.TotalAmount.IsZero())
	assert.NotNil(t, empty.Orders)

	_, err = f.svc.GetTable(ctx, branch, 0)
	assert.True(t, errors.Is(err, models.ErrValidation))

	tables, err := f.svc.ListTables(ctx, branch)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, 5, tables[0].TableNumber)
	assert.Equal(t, 7, tables[1].TableNumber)
}

func TestPay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.order(t, waiter, 5, line("a", 2))
	f.order(t, waiter2, 5, line("b", 1))
	other := f.order(t, waiter, 6, line("a", 1))

	res, err := f.svc.Pay(ctx, cashier, models.PayRequest{
		TableNumber: 5, Method: models.PaymentCard, Discount: decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	p := res.Payment
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, models.PaymentCard, p.Method)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(130)))
	assert.True(t, p.Discount.Equal(decimal.NewFromInt(10)))
	assert.True(t, p.FinalAmount.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, "c1", p.CashierID)
	assert.Equal(t, "Kasa", p.CashierName)
	assert.Equal(t, f.clock.Now(), p.PaidAt)
	require.Len(t, res.Orders, 2)

	for _, o := range f.live(t) {
		if o.ID == other.ID {
			assert.False(t, o.IsPaid)
			assert.Nil(t, o.Payment)
			continue
		}
		assert.True(t, o.IsPaid)
		require.NotNil(t, o.Payment)
		assert.Equal(t, p, *o.Payment, "identical payment on every order")
	}

	ev := f.nextEvent(t)
	assert.Equal(t, models.EventPaymentCompleted, ev.Type)
	assert.Equal(t, 5, ev.TableNumber)
	assert.Len(t, ev.Orders, 2)

	_, err = f.svc.Pay(ctx, cashier, models.PayRequest{TableNumber: 5, Method: models.PaymentCash})
	assert.True(t, errors.Is(err, models.ErrNotFound), "nothing left to pay")
}

func TestPayFullDiscount(t *testing.T) {
	f := newFixture(t)
	f.order(t, waiter, 5, line("b", 1))

	res, err := f.svc.Pay(context.Background(), cashier, models.PayRequest{
		TableNumber: 5, Method: models.PaymentCash, Discount: decimal.NewFromInt(30),
	})
	require.NoError(t, err)
	assert.True(t, res.Payment.FinalAmount.IsZero())
}

func TestPayRejects(t *testing.T) {
	tests := []struct {
		name  string
		actor models.Actor
		req   models.PayRequest
		want  error
	}{
		{"waiter", waiter, models.PayRequest{TableNumber: 5, Method: models.PaymentCash}, models.ErrUnauthorized},
		{"bad method", cashier, models.PayRequest{TableNumber: 5, Method: "crypto"}, models.ErrValidation},
		{"negative discount", cashier, models.PayRequest{TableNumber: 5, Method: models.PaymentCash, Discount: decimal.NewFromInt(-1)}, models.ErrValidation},
		{"discount over gross", cashier, models.PayRequest{TableNumber: 5, Method: models.PaymentCash, Discount: decimal.NewFromInt(131)}, models.ErrValidation},
		{"bad table", cashier, models.PayRequest{TableNumber: 0, Method: models.PaymentCash}, models.ErrValidation},
		{"empty table", cashier, models.PayRequest{TableNumber: 8, Method: models.PaymentCash}, models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.order(t, waiter, 5, line("a", 2))
			f.order(t, waiter, 5, line("b", 1))

			_, err := f.svc.Pay(context.Background(), tt.actor, tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			for _, o := range f.live(t) {
				assert.False(t, o.IsPaid)
				assert.Nil(t, o.Payment)
			}
			f.noEvent(t)
		})
	}
}

func TestPayPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	f.order(t, waiter, 5, line("a", 1))
	f.store.failReplace = true

	_, err := f.svc.Pay(context.Background(), cashier, models.PayRequest{TableNumber: 5, Method: models.PaymentCash})
	assert.True(t, errors.Is(err, models.ErrPersistence))
	assert.False(t, f.live(t)[0].IsPaid)
	f.noEvent(t)

	f.store.failReplace = false
	f.store.failList = true
	_, err = f.svc.Pay(context.Background(), cashier, models.PayRequest{TableNumber: 5, Method: models.PaymentCash})
	assert.True(t, errors.Is(err, models.ErrPersistence))
}

func TestConcurrentSettlementPaysOnce(t *testing.T) {
	f := newFixture(t)
	f.order(t, waiter, 5, line("a", 1))
	f.order(t, waiter, 5, line("b", 1))

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Pay(context.Background(), cashier, models.PayRequest{TableNumber: 5, Method: models.PaymentCash})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, notFound int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, models.ErrNotFound):
			notFound++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, notFound)

	live := f.live(t)
	require.Len(t, live, 2)
	assert.Equal(t, live[0].Payment.ID, live[1].Payment.ID)
}

func TestResetDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, waiter, 1, line("a", 1), line("b", 1))
	f.move(t, kitchen, o, 0, models.StatusInProgress, models.StatusReady)
	_, err := f.svc.MoveReadyToArchive(ctx, kitchen)
	require.NoError(t, err)
	f.nextEvent(t)

	require.NoError(t, f.svc.ResetDay(ctx, branch))
	assert.Empty(t, f.archive(t))
	assert.Len(t, f.live(t), 1, "live orders survive the reset")

	ev := f.nextEvent(t)
	assert.Equal(t, models.EventDayReset, ev.Type)
	assert.Equal(t, branch, ev.Branch)
}

// Menu A (kitchen, 50) and B (bar, 30); W orders {A×2, B×1} for table 5,
// kitchen prepares and archives A, cashier settles with discount 10.
func TestEndToEndTableFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.order(t, waiter, 5, line("a", 2), line("b", 1))
	require.True(t, o.TotalAmount.Equal(decimal.NewFromInt(130)))
	require.Len(t, o.Items, 2)

	f.move(t, kitchen, o, 0, models.StatusInProgress, models.StatusReady)
	moved, err := f.svc.MoveReadyToArchive(ctx, kitchen)
	require.NoError(t, err)
	require.Equal(t, 1, moved)
	f.nextEvent(t)

	live := f.live(t)
	require.Len(t, live, 1)
	require.Len(t, live[0].Items, 1)
	assert.Equal(t, "b", live[0].Items[0].MenuItemID)

	res, err := f.svc.Pay(ctx, cashier, models.PayRequest{TableNumber: 5, Method: models.PaymentCash, Discount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.True(t, res.Payment.FinalAmount.Equal(decimal.NewFromInt(120)))

	paid := f.live(t)[0]
	assert.True(t, paid.IsPaid)
	assert.True(t, paid.Payment.FinalAmount.Equal(decimal.NewFromInt(120)))
}

// stallingPublisher holds the first Publish until release is closed
type stallingPublisher struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newStallingPublisher() *stallingPublisher {
	return &stallingPublisher{entered: make(chan struct{}), release: make(chan struct{})}
}

func (p *stallingPublisher) Publish(context.Context, string, models.Event) error {
	first := false
	p.once.Do(func() { first = true })
	if first {
		close(p.entered)
		<-p.release
	}
	return nil
}

func TestSlowPublishDoesNotHoldBranchLock(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		ready  bool
		mutate func(svc *Service, first models.Order) error
	}{
		{"transition", false, func(svc *Service, first models.Order) error {
			_, err := svc.TransitionItem(ctx, kitchen, models.TransitionRequest{
				OrderID: first.ID, ItemID: first.Items[0].ID, Status: models.StatusInProgress,
			})
			return err
		}},
		{"move table", false, func(svc *Service, first models.Order) error {
			_, err := svc.MoveTable(ctx, waiter, first.ID, 12)
			return err
		}},
		{"archive", true, func(svc *Service, _ models.Order) error {
			_, err := svc.MoveReadyToArchive(ctx, kitchen)
			return err
		}},
		{"reset day", false, func(svc *Service, _ models.Order) error {
			return svc.ResetDay(ctx, branch)
		}},
		{"pay", false, func(svc *Service, _ models.Order) error {
			_, err := svc.Pay(ctx, cashier, models.PayRequest{TableNumber: 3, Method: models.PaymentCard})
			return err
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			first := f.order(t, waiter, 3, line("a", 1))
			second := f.order(t, waiter, 4, line("b", 1))
			if tc.ready {
				f.move(t, kitchen, first, 0, models.StatusInProgress, models.StatusReady)
			}

			pub := newStallingPublisher()
			svc := NewService(f.store, f.svc.menu, pub, storage.NewLocker(), logger.Discard(), WithClock(f.clock.Now))

			firstDone := make(chan error, 1)
			go func() { firstDone <- tc.mutate(svc, first) }()

			select {
			case <-pub.entered:
			case <-time.After(time.Second):
				t.Fatal("first mutation never published")
			}

			secondDone := make(chan error, 1)
			go func() {
				_, err := svc.MoveTable(ctx, waiter, second.ID, 9)
				secondDone <- err
			}()

			select {
			case err := <-secondDone:
				require.NoError(t, err)
			case <-time.After(500 * time.Millisecond):
				close(pub.release)
				t.Fatal("second mutation waited on a pending publish")
			}

			close(pub.release)
			require.NoError(t, <-firstDone)

			for _, o := range f.live(t) {
				if o.ID == second.ID {
					assert.Equal(t, 9, o.TableNumber)
				}
			}
		})
	}
}
