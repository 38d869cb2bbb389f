package models

import "github.com/shopspring/decimal"

// MenuCategory is the catalog classification of a menu entry
type MenuCategory string

const (
	MenuKitchen  MenuCategory = "kitchen"
	MenuBar      MenuCategory = "bar"
	MenuDessert  MenuCategory = "dessert"
	MenuCampaign MenuCategory = "campaign"
)

// BundleComponent references another menu entry inside a campaign
type BundleComponent struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Category PrepCategory `json:"category"`
}

// MenuItem is a catalog entry
type MenuItem struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Price        decimal.Decimal   `json:"price"`
	Category     MenuCategory      `json:"category"`
	MenuCategory string            `json:"menuCategory,omitempty"`
	Items        []BundleComponent `json:"items,omitempty"`
	Branch       string            `json:"branchId"`
}

// IsBundle reports whether the entry expands into its components
func (m MenuItem) IsBundle() bool {
	return m.Category == MenuCampaign && len(m.Items) > 0
}

// PrepCategory resolves the station for a non-bundle entry.
// Desserts go to the bar only when tagged bar; anything unknown goes to the kitchen.
func (m MenuItem) PrepCategory() PrepCategory {
	if m.MenuCategory == string(MenuDessert) {
		if m.Category == MenuBar {
			return PrepBar
		}
		return PrepKitchen
	}
	if m.Category == MenuBar {
		return PrepBar
	}
	return PrepKitchen
}

// Validate checks an admin-submitted menu entry
func (m *MenuItem) Validate() error {
	if m.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if m.Price.IsNegative() {
		return &ValidationError{Field: "price", Message: "price must not be negative"}
	}
	switch m.Category {
	case MenuKitchen, MenuBar, MenuDessert, MenuCampaign:
	default:
		return &ValidationError{Field: "category", Message: "category must be kitchen, bar, dessert or campaign"}
	}
	for i, c := range m.Items {
		if c.ID == "" {
			return &ValidationError{Field: itemField(i, "id"), Message: "component id is required"}
		}
	}
	return nil
}
