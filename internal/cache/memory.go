package cache

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory is a process-local BalanceCache.
type Memory struct {
	mu   sync.Mutex
	m    map[uuid.UUID]int64
	gens map[uuid.UUID]int64
}

func NewMemory() *Memory {
	return &Memory{m: map[uuid.UUID]int64{}, gens: map[uuid.UUID]int64{}}
}

func (c *Memory) Get(_ context.Context, userID uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[userID]
	if !ok {
		return 0, ErrMiss
	}
	return v, nil
}

func (c *Memory) Generation(_ context.Context, userID uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[userID], nil
}

func (c *Memory) SetAt(_ context.Context, userID uuid.UUID, gen, balance int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[userID] != gen {
		return ErrSuperseded
	}
	c.m[userID] = balance
	return nil
}

func (c *Memory) Invalidate(_ context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[userID]++
	delete(c.m, userID)
	return nil
}
