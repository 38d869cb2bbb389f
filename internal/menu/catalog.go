package menu

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/messaging"
	"restaurant-pos/internal/models"
)

// Resolver looks up a menu entry for order creation
type Resolver interface {
	Resolve(ctx context.Context, branch, id string) (models.MenuItem, error)
}

// Catalog holds the menu of every branch. With a directory set, each
// branch is persisted to menu_<branch>.json after every change.
type Catalog struct {
	mu        sync.RWMutex
	dir       string
	items     map[string][]models.MenuItem
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewCatalog loads existing menus from dir; an empty dir keeps menus in memory only
func NewCatalog(dir string, publisher messaging.EventPublisher, log *logger.Logger) (*Catalog, error) {
	c := &Catalog{
		dir:       dir,
		items:     make(map[string][]models.MenuItem),
		publisher: publisher,
		logger:    log,
	}
	if dir == "" {
		return c, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create menu dir: %w", err)
	}
	files, err := filepath.Glob(filepath.Join(dir, "menu_*.json"))
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}
		var items []models.MenuItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", f, err)
		}
		base := filepath.Base(f)
		branch := base[len("menu_") : len(base)-len(".json")]
		c.items[branch] = items
	}
	return c, nil
}

// Seed installs a menu for a branch without publishing
func (c *Catalog) Seed(branch string, items []models.MenuItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[branch] = append([]models.MenuItem(nil), items...)
}

func (c *Catalog) Resolve(_ context.Context, branch, id string) (models.MenuItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.items[branch] {
		if m.ID == id {
			return m, nil
		}
	}
	return models.MenuItem{}, &models.NotFoundError{Resource: "menu item", ID: id}
}

func (c *Catalog) List(_ context.Context, branch string) []models.MenuItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.MenuItem{}, c.items[branch]...)
}

// Upsert adds a new entry, or replaces the entry with the same id
func (c *Catalog) Upsert(ctx context.Context, branch string, item models.MenuItem) (models.MenuItem, error) {
	if err := item.Validate(); err != nil {
		return models.MenuItem{}, err
	}
	item.Branch = branch

	c.mu.Lock()
	menu := c.items[branch]
	if item.ID == "" {
		item.ID = uuid.NewString()
		menu = append(menu, item)
	} else {
		found := false
		for i := range menu {
			if menu[i].ID == item.ID {
				menu[i] = item
				found = true
				break
			}
		}
		if !found {
			c.mu.Unlock()
			return models.MenuItem{}, &models.NotFoundError{Resource: "menu item", ID: item.ID}
		}
	}
	snapshot, err := c.commit(branch, menu)
	c.mu.Unlock()
	if err != nil {
		return models.MenuItem{}, err
	}

	c.announce(ctx, branch, snapshot)
	return item, nil
}

func (c *Catalog) Delete(ctx context.Context, branch, id string) error {
	c.mu.Lock()
	menu := c.items[branch]
	kept := make([]models.MenuItem, 0, len(menu))
	for _, m := range menu {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(menu) {
		c.mu.Unlock()
		return &models.NotFoundError{Resource: "menu item", ID: id}
	}
	snapshot, err := c.commit(branch, kept)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.announce(ctx, branch, snapshot)
	return nil
}

// commit must be called with mu held
func (c *Catalog) commit(branch string, menu []models.MenuItem) ([]models.MenuItem, error) {
	if c.dir != "" {
		data, err := json.MarshalIndent(menu, "", "  ")
		if err != nil {
			return nil, &models.PersistenceError{Op: "encode menu", Err: err}
		}
		path := filepath.Join(c.dir, "menu_"+branch+".json")
		if err := os.WriteFile(path+".tmp", data, 0o644); err != nil {
			return nil, &models.PersistenceError{Op: "write menu", Err: err}
		}
		if err := os.Rename(path+".tmp", path); err != nil {
			return nil, &models.PersistenceError{Op: "commit menu", Err: err}
		}
	}
	c.items[branch] = menu
	return append([]models.MenuItem(nil), menu...), nil
}

func (c *Catalog) announce(ctx context.Context, branch string, menu []models.MenuItem) {
	if err := c.publisher.Publish(ctx, branch, models.MenuUpdatedEvent(menu)); err != nil {
		c.logger.Error("event_publish_failed", "Failed to publish menu update", logger.RequestID(ctx), err, nil)
	}
}
