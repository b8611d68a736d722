package reactive

import (
	"sync"

	"github.com/creastat/infra/telemetry"
)

// Option configures an operator
type Option func(*config)

type config struct {
	logger telemetry.Logger
	name   string
}

var defaultLogger = sync.OnceValue(func() telemetry.Logger {
	return telemetry.New(telemetry.Config{Level: "error"})
})

// WithLogger sets the logger used by an operator
func WithLogger(logger telemetry.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithName tags an operator's log lines so several instances can be told apart
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

func newConfig(opts []Option) config {
	c := config{
		logger: defaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return c
}

// moduleLogger returns the logger scoped to one component
func (c config) moduleLogger(module string) telemetry.Logger {
	if c.name != "" {
		module = module + "." + c.name
	}
	return c.logger.WithModule(module)
}
