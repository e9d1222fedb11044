package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultSweepInterval = 15 * time.Minute

type OTPCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

type SessionCleaner interface {
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

type SecurityLogPurger interface {
	PurgeBefore(ctx context.Context, before time.Time) (int64, error)
}

// Sweeper periodically removes expired OTP codes and sessions, and audit rows
// older than LogRetention when that is set.
type Sweeper struct {
	OTPs         OTPCleaner
	Sessions     SessionCleaner
	SecurityLogs SecurityLogPurger
	Interval     time.Duration
	LogRetention time.Duration
	Now          func() time.Time
	Log          *logrus.Logger
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	s.RunOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *Sweeper) RunOnce(ctx context.Context) {
	now := s.now()
	log := s.logger()

	if s.OTPs != nil {
		if _, err := s.OTPs.CleanupExpired(ctx); err != nil {
			log.WithError(err).Warn("otp sweep failed")
		}
	}
	if s.Sessions != nil {
		deleted, err := s.Sessions.CleanupExpired(ctx, now)
		if err != nil {
			log.WithError(err).Warn("session sweep failed")
		} else if deleted > 0 {
			log.WithField("deleted", deleted).Info("expired sessions removed")
		}
	}
	if s.SecurityLogs != nil && s.LogRetention > 0 {
		purged, err := s.SecurityLogs.PurgeBefore(ctx, now.Add(-s.LogRetention))
		if err != nil {
			log.WithError(err).Warn("security log purge failed")
		} else if purged > 0 {
			log.WithField("deleted", purged).Info("old security logs removed")
		}
	}
}

func (s *Sweeper) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now()
}

func (s *Sweeper) logger() *logrus.Logger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}
