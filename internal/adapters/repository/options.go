package repository

import "github.com/google/uuid"

type config struct {
	newID func() string
}

func newConfig(opts []Option) config {
	c := config{newID: uuid.NewString}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Option configures a store.
type Option func(*config)

// WithIDGenerator replaces the event record id generator.
func WithIDGenerator(f func() string) Option {
	return func(c *config) {
		if f != nil {
			c.newID = f
		}
	}
}
