package models

import (
	"encoding/json"
	"time"
)

// PushSubscription holds a browser push subscription for a user.
// The subscription document is kept opaque: it is produced by the browser's
// PushManager and consumed by the push transport as-is.
type PushSubscription struct {
	Username     string          `json:"username"`
	Subscription json.RawMessage `json:"subscription"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
