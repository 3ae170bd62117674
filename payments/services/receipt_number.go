package services

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"welfare-receipts-backend/config"
	"welfare-receipts-backend/utils"

	"go.uber.org/zap"
)

const (
	WorkerReceiptPrefix   = "RCP"
	EmployerReceiptPrefix = "EMP"

	defaultNumberAttempts = 10
	defaultNumberBackoff  = 50 * time.Millisecond
)

// NumberExistsFunc reports whether a candidate number is already taken.
type NumberExistsFunc func(ctx context.Context, number string) (bool, error)

// ReceiptNumberGenerator produces <PREFIX>-<yyyyMMdd-HHmmss>-<NNN> numbers. The suffix
// mixes the sub-second clock with a random offset; candidates are checked against the
// store and retried with linear backoff.
type ReceiptNumberGenerator struct {
	Prefix      string
	Exists      NumberExistsFunc
	MaxAttempts int
	Backoff     time.Duration
	Now         func() time.Time
	Sleep       func(time.Duration)
	RandIntn    func(n int) int
}

func NewReceiptNumberGenerator(prefix string, exists NumberExistsFunc) *ReceiptNumberGenerator {
	return &ReceiptNumberGenerator{
		Prefix:      prefix,
		Exists:      exists,
		MaxAttempts: defaultNumberAttempts,
		Backoff:     defaultNumberBackoff,
		Now:         time.Now,
		Sleep:       time.Sleep,
		RandIntn:    rand.Intn,
	}
}

// Candidate builds one number for instant t. It does not consult the store.
func (g *ReceiptNumberGenerator) Candidate(t time.Time) string {
	offset := 0
	if g.RandIntn != nil {
		offset = g.RandIntn(1000)
	}
	suffix := (t.Nanosecond()/1000 + offset) % 1000
	return fmt.Sprintf("%s-%s-%03d", g.Prefix, t.Format("20060102-150405"), suffix)
}

// Next returns an unused number or utils.ErrGenerationExhausted.
func (g *ReceiptNumberGenerator) Next(ctx context.Context) (string, error) {
	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = defaultNumberAttempts
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		candidate := g.Candidate(g.Now())
		taken, err := g.Exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check receipt number %s: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}

		config.Logger.Debug("Receipt number collision, retrying",
			zap.String("candidate", candidate),
			zap.Int("attempt", attempt))
		if attempt < attempts && g.Sleep != nil {
			g.Sleep(g.Backoff * time.Duration(attempt))
		}
	}

	config.Logger.Error("Receipt number generation exhausted",
		zap.String("prefix", g.Prefix),
		zap.Int("attempts", attempts))
	return "", utils.ErrGenerationExhausted
}
