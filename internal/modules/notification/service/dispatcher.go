package service

import (
	"context"
	"encoding/json"
	"errors"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/pkg/mailer"
	"anoa.com/schoolportal/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// AdminChannel is the redis channel admin websocket sessions subscribe to.
const AdminChannel = "admin_notifications"

// Broadcaster pushes a payload to live admin sessions.
type Broadcaster interface {
	Broadcast(ctx context.Context, payload []byte) error
}

type redisBroadcaster struct {
	rdb *redis.Client
}

// NewRedisBroadcaster returns nil when redis is not configured.
func NewRedisBroadcaster(rdb *redis.Client) Broadcaster {
	if rdb == nil {
		return nil
	}
	return &redisBroadcaster{rdb: rdb}
}

func (b *redisBroadcaster) Broadcast(ctx context.Context, payload []byte) error {
	return b.rdb.Publish(ctx, AdminChannel, payload).Err()
}

// Event is a persisted admin notification plus the optional email to the parent it concerns.
type Event struct {
	Notification entity.AdminNotification
	Recipient    *entity.User
	Subject      string
	Body         string
}

// Dispatcher performs the side effects that follow a committed state change.
// Failures are logged and counted, never returned.
type Dispatcher interface {
	Dispatch(ctx context.Context, events ...Event)
}

type dispatcher struct {
	broadcaster Broadcaster
	mailer      mailer.Mailer
	log         *zap.Logger
}

func NewDispatcher(b Broadcaster, m mailer.Mailer, log *zap.Logger) Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &dispatcher{broadcaster: b, mailer: m, log: log}
}

func (d *dispatcher) Dispatch(ctx context.Context, events ...Event) {
	for _, ev := range events {
		if err := d.publish(ctx, ev.Notification); err != nil {
			metrics.SideEffectFailed("publish")
			d.log.Warn("notification publish failed", zap.String("type", ev.Notification.Type), zap.Error(err))
		}
		if err := d.email(ctx, ev); err != nil {
			metrics.SideEffectFailed("email")
			d.log.Warn("notification email failed", zap.String("type", ev.Notification.Type), zap.Error(err))
		}
	}
}

func (d *dispatcher) publish(ctx context.Context, n entity.AdminNotification) error {
	if d.broadcaster == nil {
		return nil
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return d.broadcaster.Broadcast(ctx, payload)
}

func (d *dispatcher) email(ctx context.Context, ev Event) error {
	if d.mailer == nil || ev.Recipient == nil || ev.Subject == "" {
		return nil
	}
	if !ev.Recipient.EmailNotifications {
		return nil
	}
	if ev.Recipient.Email == "" {
		return errors.New("recipient has no email")
	}
	return d.mailer.Send(ctx, mailer.Message{
		ToName:  ev.Recipient.Name,
		ToEmail: ev.Recipient.Email,
		Subject: ev.Subject,
		Text:    ev.Body,
	})
}
