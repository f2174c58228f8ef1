package invite

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Alphabet excludes I and O to avoid visual ambiguity when codes are shared.
const (
	Alphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	CodeLength = 8

	// At 24^8 combinations a collision retry is close to impossible; the
	// bound exists so a broken existence check cannot spin forever.
	maxAttempts = 100
)

// ErrCodeSpaceExhausted is returned when every attempt collided. In practice
// it signals a misbehaving existence check, not a full code space.
var ErrCodeSpaceExhausted = errors.New("invite code generation exhausted attempts")

// ExistsFunc reports whether a code is already allocated.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Allocator generates collision-free invite codes.
type Allocator struct {
	rng *rand.Rand
}

// NewAllocator creates an allocator seeded from the clock.
func NewAllocator() *Allocator {
	return &Allocator{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewAllocatorWithSeed creates a deterministic allocator for tests.
func NewAllocatorWithSeed(seed int64) *Allocator {
	return &Allocator{rng: rand.New(rand.NewSource(seed))}
}

// Generate draws fresh 8-character codes until one passes the existence
// check. The whole code is redrawn on collision, never individual characters.
func (a *Allocator) Generate(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code := a.randomCode()
		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code exists: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

func (a *Allocator) randomCode() string {
	buf := make([]byte, CodeLength)
	for i := range buf {
		buf[i] = Alphabet[a.rng.Intn(len(Alphabet))]
	}
	return string(buf)
}
