// internal/maintenance/janitor.go
package maintenance

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// CleanupFunc performs one sweep of expired per-user state.
type CleanupFunc func() error

// Janitor runs the session cleanup sweep on a cron schedule.
type Janitor struct {
	schedule string
	cleanup  CleanupFunc
	cron     *cron.Cron
	log      *slog.Logger
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a Janitor that calls cleanup on the given cron schedule
// (e.g. "*/10 * * * *" for every ten minutes).
func New(schedule string, cleanup CleanupFunc, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		schedule: schedule,
		cleanup:  cleanup,
		cron:     cron.New(cron.WithParser(cronParser)),
		log:      logger.With("component", "janitor"),
	}
}

// Start registers the sweep and starts the cron ticker.
func (j *Janitor) Start() error {
	_, err := j.cron.AddFunc(j.schedule, j.sweep)
	if err != nil {
		return err
	}
	j.cron.Start()
	j.log.Info("cleanup scheduled", "schedule", j.schedule)
	return nil
}

func (j *Janitor) sweep() {
	if err := j.cleanup(); err != nil {
		j.log.Error("cleanup sweep failed", "error", err)
		return
	}
	j.log.Debug("cleanup sweep complete")
}

// Stop stops the cron ticker.
func (j *Janitor) Stop() {
	j.cron.Stop()
}
