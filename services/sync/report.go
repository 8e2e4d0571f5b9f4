package sync

type SlotAction string

const (
	ActionPublish SlotAction = "publish"
	ActionClear   SlotAction = "clear"
)

// SlotResult records the outcome of one metafield write or clear.
type SlotResult struct {
	OwnerID string     `json:"owner_id"`
	Key     string     `json:"key"`
	Action  SlotAction `json:"action"`
	Error   string     `json:"error,omitempty"`
}

// SyncReport aggregates per-slot outcomes of one sync pass. Slot failures
// are cosmetic; a non-empty DiscountError means checkout pricing is stale
// or absent and must be surfaced to the operator.
type SyncReport struct {
	BundleID      string       `json:"bundle_id"`
	Slots         []SlotResult `json:"slots"`
	DiscountError string       `json:"discount_error,omitempty"`
}

func (r *SyncReport) HasFailures() bool {
	if r.DiscountError != "" {
		return true
	}
	for _, s := range r.Slots {
		if s.Error != "" {
			return true
		}
	}
	return false
}

// HasDiscountFailure reports whether the discount-resource leg failed.
func (r *SyncReport) HasDiscountFailure() bool {
	return r.DiscountError != ""
}
