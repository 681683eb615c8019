package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	PurgeNotificationsJob   = "purge_notifications"
	ReindexAnnouncementsJob = "reindex_announcements"
)

type NotificationPurger interface {
	PurgeRead(ctx context.Context, retention time.Duration) (int64, error)
}

type AnnouncementReindexer interface {
	Reindex(ctx context.Context) (int, error)
}

// PurgeNotifications drops read admin notifications older than retention, hourly.
func PurgeNotifications(p NotificationPurger, retention time.Duration, log *zap.Logger) Job {
	return Job{
		Name:    PurgeNotificationsJob,
		Spec:    "@hourly",
		Timeout: time.Minute,
		Run: func(ctx context.Context) error {
			n, err := p.PurgeRead(ctx, retention)
			if err != nil {
				return err
			}
			if n > 0 {
				log.Info("purged read notifications", zap.Int64("count", n))
			}
			return nil
		},
	}
}

// ReindexAnnouncements rebuilds the search index every night at 03:00.
func ReindexAnnouncements(r AnnouncementReindexer, log *zap.Logger) Job {
	return Job{
		Name:    ReindexAnnouncementsJob,
		Spec:    "0 3 * * *",
		Timeout: 10 * time.Minute,
		Run: func(ctx context.Context) error {
			n, err := r.Reindex(ctx)
			if err != nil {
				return err
			}
			log.Info("announcements reindexed", zap.Int("count", n))
			return nil
		},
	}
}
