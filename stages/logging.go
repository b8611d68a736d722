package stages

import (
	"sync"

	"github.com/creastat/infra/telemetry"
)

var defaultLogger = sync.OnceValue(func() telemetry.Logger {
	return telemetry.New(telemetry.Config{Level: "error"})
})

// moduleLogger scopes logger to module, falling back to an error-level
// logger when none is configured
func moduleLogger(logger telemetry.Logger, module string) telemetry.Logger {
	if logger == nil {
		logger = defaultLogger()
	}
	return logger.WithModule(module)
}
