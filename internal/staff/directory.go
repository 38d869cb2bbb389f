// Package staff keeps the staff directory of every branch and issues the
// tokens that carry a logged-in user's identity.
package staff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/messaging"
	"restaurant-pos/internal/models"
)

const usersFile = "users.json"

// stationKeywords log a shared station terminal in without a personal PIN
var stationKeywords = map[string]models.Role{
	"mutfak": models.RoleKitchen,
	"bar":    models.RoleBar,
	"kasa":   models.RoleCashier,
}

var stationNames = map[models.Role]string{
	models.RoleKitchen: "Mutfak",
	models.RoleBar:     "Bar",
	models.RoleCashier: "Kasa",
}

// Directory stores staff records, optionally in dir/users.json
type Directory struct {
	mu        sync.RWMutex
	path      string
	users     []models.User
	cost      int
	publisher messaging.EventPublisher
	logger    *logger.Logger
	now       func() time.Time
}

// Option customizes a Directory
type Option func(*Directory)

// WithBcryptCost overrides bcrypt.DefaultCost
func WithBcryptCost(cost int) Option {
	return func(d *Directory) { d.cost = cost }
}

// NewDirectory loads dir/users.json; an empty dir keeps users in memory only
func NewDirectory(dir string, publisher messaging.EventPublisher, log *logger.Logger, opts ...Option) (*Directory, error) {
	d := &Directory{
		cost:      bcrypt.DefaultCost,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if dir == "" {
		return d, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create users dir: %w", err)
	}
	d.path = filepath.Join(dir, usersFile)
	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}
	if err := json.Unmarshal(data, &d.users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return d, nil
}

// Seed makes sure a branch has an admin and one user per station
func (d *Directory) Seed(branch, adminPIN string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	users := append([]models.User(nil), d.users...)
	changed := false
	if d.byRole(branch, models.RoleAdmin) == nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(adminPIN), d.cost)
		if err != nil {
			return fmt.Errorf("failed to hash admin pin: %w", err)
		}
		users = append(users, d.newUser(branch, "Admin", models.RoleAdmin, string(hash)))
		changed = true
	}
	for _, role := range []models.Role{models.RoleKitchen, models.RoleBar, models.RoleCashier} {
		if d.byRole(branch, role) == nil {
			users = append(users, d.newUser(branch, stationNames[role], role, ""))
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return d.commit(users)
}

// Login resolves a PIN or a station keyword to a user of the branch
func (d *Directory) Login(_ context.Context, branch, pin string) (models.User, error) {
	if pin == "" {
		return models.User{}, &models.ValidationError{Field: "pin", Message: "pin is required"}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if role, ok := stationKeywords[strings.ToLower(pin)]; ok {
		if u := d.byRole(branch, role); u != nil {
			return u.Public(), nil
		}
	}
	for _, u := range d.users {
		if u.Branch != branch || u.PINHash == "" {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PINHash), []byte(pin)) == nil {
			return u.Public(), nil
		}
	}
	return models.User{}, &models.AuthorizationError{Reason: "invalid pin"}
}

// Get returns one user of the branch
func (d *Directory) Get(_ context.Context, branch, id string) (models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if u.Branch == branch && u.ID == id {
			return u.Public(), nil
		}
	}
	return models.User{}, &models.NotFoundError{Resource: "user", ID: id}
}

// List returns the managed staff (waiters and cashiers) of a branch
func (d *Directory) List(_ context.Context, branch string) []models.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := []models.User{}
	for _, u := range d.users {
		if u.Branch == branch && managed(u) {
			out = append(out, u.Public())
		}
	}
	return out
}

// Create adds a waiter or cashier. PINs are unique across all branches.
func (d *Directory) Create(ctx context.Context, branch string, req models.CreateUserRequest) (models.User, error) {
	if err := req.Validate(); err != nil {
		return models.User{}, err
	}

	d.mu.Lock()
	for _, u := range d.users {
		if u.PINHash != "" && bcrypt.CompareHashAndPassword([]byte(u.PINHash), []byte(req.PIN)) == nil {
			d.mu.Unlock()
			return models.User{}, &models.ValidationError{Field: "pin", Message: "pin already in use"}
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), d.cost)
	if err != nil {
		d.mu.Unlock()
		return models.User{}, fmt.Errorf("failed to hash pin: %w", err)
	}
	user := d.newUser(branch, req.Username, req.Role, string(hash))
	err = d.commit(append(append([]models.User(nil), d.users...), user))
	d.mu.Unlock()
	if err != nil {
		return models.User{}, err
	}

	d.logger.Info("user_created", "Staff member created", logger.RequestID(ctx), map[string]interface{}{
		"branch":  branch,
		"user_id": user.ID,
		"role":    string(user.Role),
	})
	d.announce(ctx, branch, models.UserCreatedEvent(user))
	return user.Public(), nil
}

// Delete removes a waiter or cashier of the branch
func (d *Directory) Delete(ctx context.Context, branch, id string) error {
	d.mu.Lock()
	idx := -1
	for i, u := range d.users {
		if u.Branch == branch && u.ID == id && managed(u) {
			idx = i
			break
		}
	}
	if idx < 0 {
		d.mu.Unlock()
		return &models.NotFoundError{Resource: "user", ID: id}
	}
	users := make([]models.User, 0, len(d.users)-1)
	users = append(users, d.users[:idx]...)
	users = append(users, d.users[idx+1:]...)
	err := d.commit(users)
	d.mu.Unlock()
	if err != nil {
		return err
	}

	d.logger.Info("user_deleted", "Staff member deleted", logger.RequestID(ctx), map[string]interface{}{
		"branch":  branch,
		"user_id": id,
	})
	d.announce(ctx, branch, models.UserDeletedEvent(id))
	return nil
}

func managed(u models.User) bool {
	return (u.Role == models.RoleWaiter || u.Role == models.RoleCashier) && u.PINHash != ""
}

func (d *Directory) byRole(branch string, role models.Role) *models.User {
	for i := range d.users {
		if d.users[i].Branch == branch && d.users[i].Role == role {
			return &d.users[i]
		}
	}
	return nil
}

func (d *Directory) newUser(branch, name string, role models.Role, hash string) models.User {
	return models.User{
		ID:        string(role) + "_" + uuid.NewString(),
		Username:  name,
		Role:      role,
		PINHash:   hash,
		Branch:    branch,
		CreatedAt: d.now().UTC(),
	}
}

// commit persists users and swaps them in; callers hold d.mu
func (d *Directory) commit(users []models.User) error {
	if d.path != "" {
		data, err := json.MarshalIndent(users, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode users: %w", err)
		}
		tmp := d.path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o600); err != nil {
			return &models.PersistenceError{Op: "write users", Err: err}
		}
		if err := os.Rename(tmp, d.path); err != nil {
			return &models.PersistenceError{Op: "write users", Err: err}
		}
	}
	d.users = users
	return nil
}

func (d *Directory) announce(ctx context.Context, branch string, ev models.Event) {
	if err := d.publisher.Publish(ctx, branch, ev); err != nil {
		d.logger.Error("event_publish_failed", "Failed to publish staff event", logger.RequestID(ctx), err, map[string]interface{}{
			"branch": branch,
			"event":  string(ev.Type),
		})
	}
}
