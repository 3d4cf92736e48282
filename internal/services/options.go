// Package services implements key custody, the DEK envelope and sharing on
// top of the repositories and the session store.
package services

import (
	"time"

	"github.com/dmitrijs2005/finvault/internal/cryptox"
	"github.com/dmitrijs2005/finvault/internal/logging"
)

type options struct {
	iterations  int
	unlockEvery time.Duration
	unlockBurst int
	locks       *UserLocks
	log         logging.Logger
}

type Option func(*options)

// WithKDFIterations sets the PBKDF2 work factor used for newly derived
// keys. Existing users keep the count stored with their keys.
func WithKDFIterations(n int) Option {
	return func(o *options) { o.iterations = n }
}

// WithUnlockLimit allows burst password checks per user, refilled at one
// per every. A burst of zero disables the limit.
func WithUnlockLimit(every time.Duration, burst int) Option {
	return func(o *options) {
		o.unlockEvery = every
		o.unlockBurst = burst
	}
}

// WithUserLocks shares l between services. Without it each service gets
// its own set, which does not serialize across services.
func WithUserLocks(l *UserLocks) Option {
	return func(o *options) { o.locks = l }
}

func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.log = l }
}

func buildOptions(opts []Option) options {
	o := options{iterations: cryptox.DefaultKDFIterations, log: logging.Nop()}
	for _, fn := range opts {
		fn(&o)
	}
	if o.locks == nil {
		o.locks = NewUserLocks()
	}
	return o
}
