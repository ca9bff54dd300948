package housekeeping

import (
	"context"
	"time"

	"github.com/triagekit/engine/pkg/logging"
)

// housekeepingInterval is the interval at which housekeeping is invoked by
// HousekeepRegularly.
const housekeepingInterval = 24 * time.Hour

// HousekeepRegularly runs Housekeep once immediately and then on a fixed
// interval, as a background goroutine in a long-lived driver process. It
// terminates when ctx is cancelled.
func HousekeepRegularly(ctx context.Context, stagingParent string, logger *logging.Logger) {
	logger.Infof("performing initial staging housekeeping")
	Housekeep(stagingParent, logger)

	ticker := time.NewTicker(housekeepingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Infof("performing regular staging housekeeping")
			Housekeep(stagingParent, logger)
		}
	}
}
