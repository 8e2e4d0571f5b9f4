package asynq

const (
	// ResyncBundleTask re-runs a full sync pass for one bundle after a
	// partial publication or discount-resource failure.
	ResyncBundleTask = "bundle:resync"
)

type ResyncBundlePayload struct {
	BundleID string `json:"bundle_id"`
}
