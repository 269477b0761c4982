// Package pricecell holds the latest known price for an instrument.
//
// Several producers (push notifications, interval polls, full refetches) may
// offer a price for the same instrument. A Cell keeps the one with the newest
// observation time, so a slow producer replaying older data never overwrites
// fresher data regardless of arrival order.
package pricecell

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a price observed at a point in time.
type Quote struct {
	Price decimal.Decimal
	At    time.Time
}

// Cell stores the most recent Quote. The zero value is ready to use.
type Cell struct {
	mu  sync.RWMutex
	q   Quote
	set bool
}

// Offer stores q when it is strictly newer than the current quote and
// reports whether it was accepted.
func (c *Cell) Offer(q Quote) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set && !q.At.After(c.q.At) {
		return false
	}
	c.q = q
	c.set = true
	return true
}

// Latest returns the stored quote, if any.
func (c *Cell) Latest() (Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.q, c.set
}

// Reset forgets the stored quote.
func (c *Cell) Reset() {
	c.mu.Lock()
	c.q = Quote{}
	c.set = false
	c.mu.Unlock()
}

// Board is a set of cells keyed by instrument.
type Board struct {
	mu    sync.Mutex
	cells map[string]*Cell
}

// NewBoard returns an empty Board.
func NewBoard() *Board {
	return &Board{cells: make(map[string]*Cell)}
}

func (b *Board) cell(key string) *Cell {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.cells[key]
	if !ok {
		c = &Cell{}
		b.cells[key] = c
	}
	return c
}

// Offer offers q to the cell for key.
func (b *Board) Offer(key string, q Quote) bool {
	return b.cell(key).Offer(q)
}

// Latest returns the latest quote for key.
func (b *Board) Latest(key string) (Quote, bool) {
	b.mu.Lock()
	c, ok := b.cells[key]
	b.mu.Unlock()
	if !ok {
		return Quote{}, false
	}
	return c.Latest()
}
