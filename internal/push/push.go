package push

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Sender dispatches web push notifications using VAPID keys. A sender built
// without a key pair is disabled: every dispatch is skipped silently, which
// turns the whole push feature off rather than producing errors.
type Sender struct {
	publicKey  string
	privateKey string
	subscriber string
	client     *http.Client
}

// ErrDisabled is returned by Send when no VAPID key pair is configured.
var ErrDisabled = errors.New("push: not configured")

// NewSender creates a push sender. Either key being empty disables it.
// subscriber is the VAPID contact (mailto: or https: URL).
func NewSender(publicKey, privateKey, subscriber string) *Sender {
	return &Sender{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a VAPID key pair is configured.
func (s *Sender) Enabled() bool {
	return s != nil && s.publicKey != "" && s.privateKey != ""
}

// PublicKey returns the VAPID public key, or "" when push is disabled.
func (s *Sender) PublicKey() string {
	if s == nil {
		return ""
	}
	return s.publicKey
}

// Send dispatches payload to the given stored subscription document and
// returns the push service's HTTP status code. A non-2xx status is reported
// through the status code, not the error.
func (s *Sender) Send(ctx context.Context, subscription json.RawMessage, payload []byte) (int, error) {
	if !s.Enabled() {
		return 0, ErrDisabled
	}

	var sub webpush.Subscription
	if err := json.Unmarshal(subscription, &sub); err != nil {
		return 0, err
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &sub, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             60,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
