package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CatalogItem is a lendable title with a finite number of physical copies.
// AvailableCopies is only changed through Reserve, Release and AdjustStock.
type CatalogItem struct {
	ID              uuid.UUID
	Title           string
	Author          string
	ISBN            *string
	Category        *string
	Description     *string
	PublishedYear   *int
	TotalCopies     int
	AvailableCopies int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OnLoan returns the number of copies currently out of the pool.
func (c *CatalogItem) OnLoan() int {
	return c.TotalCopies - c.AvailableCopies
}

// CheckInvariant verifies 0 <= available <= total.
func (c *CatalogItem) CheckInvariant() error {
	if c.AvailableCopies < 0 || c.AvailableCopies > c.TotalCopies {
		return fmt.Errorf("catalog_item %s: available %d outside [0, %d]", c.ID, c.AvailableCopies, c.TotalCopies)
	}
	return nil
}

// Reserve takes one copy out of the pool.
func (c *CatalogItem) Reserve() error {
	if c.AvailableCopies <= 0 {
		return fmt.Errorf("catalog_item %s: %w", c.ID, ErrOutOfStock)
	}
	c.AvailableCopies--
	return nil
}

// Release puts one copy back into the pool.
func (c *CatalogItem) Release() error {
	if c.AvailableCopies+1 > c.TotalCopies {
		return fmt.Errorf("catalog_item %s: %w", c.ID, ErrOverrelease)
	}
	c.AvailableCopies++
	return nil
}

// AdjustStock changes the number of owned copies by delta. Copies on loan
// cannot be written off, so available must stay >= 0.
func (c *CatalogItem) AdjustStock(delta int) error {
	if delta == 0 {
		return NewValidationError("delta", "must not be zero")
	}
	if c.AvailableCopies+delta < 0 {
		return fmt.Errorf("catalog_item %s: cannot remove %d copies, %d available: %w",
			c.ID, -delta, c.AvailableCopies, ErrOutOfStock)
	}
	c.TotalCopies += delta
	c.AvailableCopies += delta
	return nil
}

// CatalogFilter contains filtering/pagination parameters for catalog listings.
type CatalogFilter struct {
	Search   *string
	Category *string
	Limit    int
	Offset   int
}

// CatalogStats summarises stock and circulation.
type CatalogStats struct {
	Titles          int
	TotalCopies     int
	AvailableCopies int
	ActiveLoans     int
	OverdueLoans    int
}
