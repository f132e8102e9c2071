package betting

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const defaultHistorySize = 50

// Registry is the in-memory collection of in-flight and recently settled
// bets. It owns every Bet it holds; methods accept and return copies so
// callers never share mutable state with the registry.
type Registry struct {
	mu      sync.RWMutex
	bets    map[string]Bet
	order   []string // insertion order, oldest first
	retain  int      // terminal bets kept for the history view
}

// NewRegistry constructs an empty registry retaining the given number of
// terminal bets. A non-positive retention falls back to the default.
func NewRegistry(retain int) *Registry {
	if retain <= 0 {
		retain = defaultHistorySize
	}
	return &Registry{
		bets:   make(map[string]Bet),
		retain: retain,
	}
}

// Insert adds a new bet. The id must be unused for the lifetime of the
// registry.
func (r *Registry) Insert(bet Bet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bets[bet.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, bet.ID)
	}

	r.bets[bet.ID] = bet
	r.order = append(r.order, bet.ID)
	return nil
}

// Get returns a copy of the bet with the given id.
func (r *Registry) Get(id string) (Bet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bet, ok := r.bets[id]
	if !ok {
		return Bet{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return bet, nil
}

// UpdateTerminal moves an ACTIVE bet to WON or LOST and records its end
// price. It is the sole mutation path after insertion, and its
// ErrInvalidTransition guard is what makes the redundant settlement triggers
// race-safe: whichever trigger arrives second observes the bet already
// terminal.
func (r *Registry) UpdateTerminal(id string, endPrice decimal.Decimal, status Status) (Bet, error) {
	if !status.Terminal() {
		return Bet{}, fmt.Errorf("%w: target status %s is not terminal", ErrInvalidTransition, status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	bet, ok := r.bets[id]
	if !ok {
		return Bet{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if bet.Status != StatusActive {
		return Bet{}, fmt.Errorf("%w: bet %s already %s", ErrInvalidTransition, id, bet.Status)
	}

	bet.EndPrice = endPrice
	bet.Status = status
	r.bets[id] = bet

	r.evictLocked()
	return bet, nil
}

// ActiveIDs returns a point-in-time snapshot of the ids of ACTIVE bets.
// Iterating the result after concurrent mutation is safe; it may reflect a
// state consistent with an earlier instant, never a bet twice.
func (r *Registry) ActiveIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if bet, ok := r.bets[id]; ok && bet.Status == StatusActive {
			ids = append(ids, id)
		}
	}
	return ids
}

// Recent returns up to n bets, newest first, for the history view.
func (r *Registry) Recent(n int) []Bet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || n > len(r.order) {
		n = len(r.order)
	}
	bets := make([]Bet, 0, n)
	for i := len(r.order) - 1; i >= 0 && len(bets) < n; i-- {
		if bet, ok := r.bets[r.order[i]]; ok {
			bets = append(bets, bet)
		}
	}
	return bets
}

// Remove deletes a bet regardless of status. Settlement triggers re-check
// membership before acting, so removing a bet also invalidates its pending
// timer.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

// Len reports the number of bets currently held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bets)
}

// ActiveBefore returns copies of ACTIVE bets whose window elapsed at or
// before now. Used by the sweep.
func (r *Registry) ActiveBefore(now time.Time) []Bet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	due := make([]Bet, 0)
	for _, id := range r.order {
		if bet, ok := r.bets[id]; ok && bet.Status == StatusActive && bet.Due(now) {
			due = append(due, bet)
		}
	}
	return due
}

// evictLocked drops the oldest terminal bets beyond the retention limit.
// ACTIVE bets are never evicted.
func (r *Registry) evictLocked() {
	terminal := 0
	for _, bet := range r.bets {
		if bet.Status.Terminal() {
			terminal++
		}
	}
	for i := 0; terminal > r.retain && i < len(r.order); {
		id := r.order[i]
		bet, ok := r.bets[id]
		if !ok {
			i++
			continue
		}
		if !bet.Status.Terminal() {
			i++
			continue
		}
		r.removeLocked(id)
		terminal--
	}
}

func (r *Registry) removeLocked(id string) {
	if _, ok := r.bets[id]; !ok {
		return
	}
	delete(r.bets, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
