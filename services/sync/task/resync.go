package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	pkgasynq "bundlesync/pkg/asynq"
	"bundlesync/services/sync"
)

type ResyncHandlerParams struct {
	fx.In

	Coordinator *sync.Coordinator
	Logger      *zap.Logger
}

// ResyncHandler re-runs a full sync pass for bundles whose previous pass
// partially failed.
type ResyncHandler struct {
	coordinator *sync.Coordinator
	log         *zap.Logger
}

func NewResyncHandler(p ResyncHandlerParams) *ResyncHandler {
	return &ResyncHandler{coordinator: p.Coordinator, log: p.Logger}
}

// ProcessTask returns an error when the pass still has failures so the queue
// retries with backoff. A bundle deleted since enqueue is not an error.
func (h *ResyncHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload pkgasynq.ResyncBundlePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid resync payload: %w", asynq.SkipRetry)
	}

	report, err := h.coordinator.Sync(ctx, payload.BundleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.log.Info("skipping resync for deleted bundle",
				zap.String("bundle_id", payload.BundleID))
			return nil
		}
		return err
	}

	if report.HasDiscountFailure() {
		return fmt.Errorf("discount sync still failing for bundle %s: %s",
			payload.BundleID, report.DiscountError)
	}
	if report.HasFailures() {
		// Display slots are cosmetic; log and let the next admin save heal
		// them instead of burning retries.
		for _, slot := range report.Slots {
			if slot.Error != "" {
				h.log.Warn("slot still failing after resync",
					zap.String("bundle_id", payload.BundleID),
					zap.String("owner_id", slot.OwnerID),
					zap.String("key", slot.Key),
					zap.String("error", slot.Error))
			}
		}
	}

	h.log.Info("resync completed", zap.String("bundle_id", payload.BundleID))
	return nil
}

var Module = fx.Module("sync.task",
	fx.Provide(NewResyncHandler),
	fx.Invoke(registerHandlers),
)

func registerHandlers(mux *asynq.ServeMux, h *ResyncHandler) {
	mux.Handle(pkgasynq.ResyncBundleTask, h)
}
