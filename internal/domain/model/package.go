package model

import (
	"time"

	"captive-portal/internal/domain"
)

// Package is a purchasable access tier. Price is in minor units.
type Package struct {
	ID            string
	Name          string
	DurationHours int
	Price         int64
}

func (p Package) Duration() time.Duration {
	return time.Duration(p.DurationHours) * time.Hour
}

// Catalog is an immutable, ordered set of packages. Build it once with NewCatalog
// and pass it to the components that price or time sessions.
type Catalog struct {
	order []string
	byID  map[string]Package
}

// DefaultPackages is the stock catalog used when configuration does not override it.
func DefaultPackages() []Package {
	return []Package{
		{ID: "1", Name: "1 Hour", DurationHours: 1, Price: 50},
		{ID: "2", Name: "1 Day", DurationHours: 24, Price: 200},
		{ID: "3", Name: "1 Week", DurationHours: 168, Price: 1000},
	}
}

func NewCatalog(pkgs []Package) (Catalog, error) {
	c := Catalog{byID: make(map[string]Package, len(pkgs))}
	for _, p := range pkgs {
		if p.ID == "" || p.Name == "" || p.DurationHours <= 0 || p.Price < 0 {
			return Catalog{}, domain.ErrInvalidArgument
		}
		if _, dup := c.byID[p.ID]; dup {
			return Catalog{}, domain.ErrInvalidArgument
		}
		c.byID[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	if len(c.order) == 0 {
		return Catalog{}, domain.ErrInvalidArgument
	}
	return c, nil
}

func (c Catalog) Lookup(id string) (Package, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// List returns a copy in configuration order.
func (c Catalog) List() []Package {
	out := make([]Package, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}
