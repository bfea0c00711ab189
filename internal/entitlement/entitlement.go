// Package entitlement decides whether a visitor may export a view.
package entitlement

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Checker answers whether subject may export. Implementations fail closed:
// any doubt means false.
type Checker interface {
	Entitled(ctx context.Context, subject string) bool
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context, subject string) bool

// Entitled calls f
func (f CheckerFunc) Entitled(ctx context.Context, subject string) bool {
	return f(ctx, subject)
}

// Static returns a checker with a fixed answer
func Static(entitled bool) Checker {
	return CheckerFunc(func(context.Context, string) bool { return entitled })
}

// Always returns a checker that entitles everyone
func Always() Checker {
	return Static(true)
}

// FlagStore keeps per-subject export flags
type FlagStore interface {
	// GetFlag returns the flag value and whether it was set
	GetFlag(ctx context.Context, key string) (on bool, found bool, err error)
	// SetFlag stores a flag; ttl <= 0 means no expiry
	SetFlag(ctx context.Context, key string, on bool, ttl time.Duration) error
}

// FlagChecker entitles subjects whose flag is set in a FlagStore
type FlagChecker struct {
	store  FlagStore
	logger *zap.Logger
	// Default answers for subjects without a flag
	Default bool
}

// FlagCheckerOption configures a FlagChecker
type FlagCheckerOption func(*FlagChecker)

// WithLogger sets the logger for store failures
func WithLogger(logger *zap.Logger) FlagCheckerOption {
	return func(c *FlagChecker) {
		c.logger = logger
	}
}

// WithDefault sets the answer for subjects without a flag
func WithDefault(entitled bool) FlagCheckerOption {
	return func(c *FlagChecker) {
		c.Default = entitled
	}
}

// NewFlagChecker creates a checker backed by store
func NewFlagChecker(store FlagStore, opts ...FlagCheckerOption) *FlagChecker {
	c := &FlagChecker{
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Entitled looks the subject's flag up. A store error is logged and denies.
func (c *FlagChecker) Entitled(ctx context.Context, subject string) bool {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return false
	}
	on, found, err := c.store.GetFlag(ctx, subject)
	if err != nil {
		c.logger.Warn("entitlement lookup failed, denying export",
			zap.String("subject", subject),
			zap.Error(err))
		return false
	}
	if !found {
		return c.Default
	}
	return on
}

// Grant sets the subject's flag
func (c *FlagChecker) Grant(ctx context.Context, subject string, ttl time.Duration) error {
	return c.store.SetFlag(ctx, strings.TrimSpace(subject), true, ttl)
}

// Revoke clears the subject's flag
func (c *FlagChecker) Revoke(ctx context.Context, subject string) error {
	return c.store.SetFlag(ctx, strings.TrimSpace(subject), false, 0)
}
