// Package delivery routes freshly persisted messages to their receiver: over
// the live channel when the receiver has a joined connection, and via web
// push as an independent best-effort alert. The two paths never block or fail
// each other; once a message is stored, nothing in this package can undo or
// surface a failure to the submitter.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/AaronKurian/ChatApp/internal/metrics"
	"github.com/AaronKurian/ChatApp/internal/models"
)

// PresenceLookup resolves a username to its live connection id.
type PresenceLookup interface {
	Lookup(username string) (string, bool)
}

// LiveEmitter pushes a message event to a live connection, best effort.
type LiveEmitter interface {
	Emit(connID string, msg *models.Message) bool
}

// Pusher dispatches a web push notification to a stored subscription.
type Pusher interface {
	Enabled() bool
	Send(ctx context.Context, subscription json.RawMessage, payload []byte) (int, error)
}

// SubscriptionStore is the slice of the data store the router needs for the
// push fallback path.
type SubscriptionStore interface {
	GetSubscription(ctx context.Context, username string) (*models.PushSubscription, error)
	DeleteSubscription(ctx context.Context, username string) error
}

// notification is the payload shown by the receiver's service worker.
type notification struct {
	Title string           `json:"title"`
	Body  string           `json:"body"`
	Data  notificationData `json:"data"`
}

type notificationData struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
}

// Router decides, per message, between synchronous live delivery and
// asynchronous push notification.
type Router struct {
	presence PresenceLookup
	live     LiveEmitter
	pusher   Pusher
	subs     SubscriptionStore
	logger   zerolog.Logger
}

// NewRouter creates a delivery router.
func NewRouter(presence PresenceLookup, live LiveEmitter, pusher Pusher, subs SubscriptionStore, logger zerolog.Logger) *Router {
	return &Router{
		presence: presence,
		live:     live,
		pusher:   pusher,
		subs:     subs,
		logger:   logger,
	}
}

// Route delivers a freshly persisted message. The live emit is fire and
// forget; the push attempt is spawned as an independent unit of work whose
// outcome is observed only for subscription pruning. Route itself never
// returns an error: persistence has already succeeded and is the only
// durability guarantee offered.
//
// The push attempt runs unconditionally, even when the receiver got the
// message live. The two channels serve different purposes (in-session update
// vs out-of-session alert) and fire independently.
func (r *Router) Route(msg *models.Message) {
	if connID, ok := r.presence.Lookup(msg.Receiver); ok {
		if r.live.Emit(connID, msg) {
			metrics.LiveDeliveries.Inc()
		} else {
			r.logger.Debug().
				Str("receiver", msg.Receiver).
				Str("conn_id", connID).
				Msg("live emit dropped")
		}
	}

	// Deliberately not the request context: the submission response must not
	// wait on the push service, and an in-flight push is never cancelled.
	go r.notify(context.Background(), msg)
}

// notify runs the best-effort push path. All failures are contained here.
func (r *Router) notify(ctx context.Context, msg *models.Message) {
	if !r.pusher.Enabled() {
		return
	}

	sub, err := r.subs.GetSubscription(ctx, msg.Receiver)
	if err != nil {
		r.logger.Error().Err(err).Str("receiver", msg.Receiver).Msg("subscription lookup failed")
		return
	}
	if sub == nil {
		return
	}

	payload, err := json.Marshal(notification{
		Title: fmt.Sprintf("New message from %s", msg.Sender),
		Body:  msg.Text,
		Data:  notificationData{Sender: msg.Sender, Receiver: msg.Receiver},
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("notification payload encode failed")
		return
	}

	status, err := r.pusher.Send(ctx, sub.Subscription, payload)
	if err != nil {
		metrics.PushAttempts.WithLabelValues("failed").Inc()
		r.logger.Error().Err(err).Str("receiver", msg.Receiver).Msg("push send failed")
		return
	}

	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		// The endpoint is permanently gone; drop the stored subscription so
		// later messages skip the push attempt entirely.
		metrics.PushAttempts.WithLabelValues("pruned").Inc()
		r.logger.Warn().
			Int("status", status).
			Str("receiver", msg.Receiver).
			Msg("push endpoint gone, pruning subscription")
		if err := r.subs.DeleteSubscription(ctx, msg.Receiver); err != nil {
			r.logger.Error().Err(err).Str("receiver", msg.Receiver).Msg("subscription prune failed")
		}
	case status >= 400:
		metrics.PushAttempts.WithLabelValues("failed").Inc()
		r.logger.Warn().Int("status", status).Str("receiver", msg.Receiver).Msg("push rejected")
	default:
		metrics.PushAttempts.WithLabelValues("sent").Inc()
	}
}
