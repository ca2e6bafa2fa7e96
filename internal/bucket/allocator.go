package bucket

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// existenceChecker answers whether an id is already taken by a live record.
type existenceChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Allocator hands out short ids that are unused at the moment of allocation.
// It does not reserve them; the conditional insert in the repository is the
// final arbiter, and its conflict error feeds back into another allocation.
type Allocator struct {
	store       existenceChecker
	length      int
	maxAttempts int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAllocator builds an allocator drawing ids of the given length.
func NewAllocator(store existenceChecker, length, maxAttempts int) *Allocator {
	if length < 1 {
		length = 5
	}
	if maxAttempts < 1 {
		maxAttempts = 10
	}
	return &Allocator{
		store:       store,
		length:      length,
		maxAttempts: maxAttempts,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Allocate returns an id with no live record behind it. Candidates that
// collide are discarded and redrawn, up to the attempt bound.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		candidate := a.randomID()

		exists, err := a.store.Exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check id %q: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", ErrIDExhausted
}

func (a *Allocator) randomID() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf := make([]byte, a.length)
	for i := range buf {
		buf[i] = idAlphabet[a.rng.Intn(len(idAlphabet))]
	}
	return string(buf)
}
