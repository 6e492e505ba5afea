package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"bankcards/internal/model"
	"bankcards/internal/service"
)

// ExpiryReport logs cards that have expired and cards that expire within the window.
type ExpiryReport struct {
	cards  service.CardService
	log    logrus.FieldLogger
	now    service.Clock
	window int
}

// Summary is the outcome of one report run.
type Summary struct {
	Expired  []int64
	Expiring []int64
}

// NewExpiryReport creates the report job. windowDays counts from today; a nil clock uses time.Now.
func NewExpiryReport(cards service.CardService, log logrus.FieldLogger, clock service.Clock, windowDays int) *ExpiryReport {
	if clock == nil {
		clock = time.Now
	}
	return &ExpiryReport{cards: cards, log: log, now: clock, window: windowDays}
}

// Run lists every card with an expiry date before today plus the window and logs each one.
func (r *ExpiryReport) Run(ctx context.Context) (Summary, error) {
	now := r.now()
	today := model.Date(now)

	cards, err := r.cards.ListExpiringBefore(ctx, today.AddDate(0, 0, r.window))
	if err != nil {
		r.log.WithError(err).Error("expiry report failed")
		return Summary{}, err
	}

	var summary Summary
	for i := range cards {
		card := &cards[i]
		entry := r.log.WithFields(logrus.Fields{
			"card_id":     card.ID,
			"owner_id":    card.OwnerID,
			"expiry_date": card.ExpiryDate.Format(time.DateOnly),
			"status":      card.Status,
		})
		if card.IsExpired(now) {
			summary.Expired = append(summary.Expired, card.ID)
			entry.Warn("card expired")
			continue
		}
		summary.Expiring = append(summary.Expiring, card.ID)
		entry.Info("card expiring soon")
	}

	r.log.WithFields(logrus.Fields{
		"expired":     len(summary.Expired),
		"expiring":    len(summary.Expiring),
		"window_days": r.window,
	}).Info("expiry report complete")
	return summary, nil
}

// Schedule registers the report on c under the given cron spec.
func Schedule(c *cron.Cron, spec string, report *ExpiryReport) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		_, _ = report.Run(context.Background())
	})
	if err != nil {
		return 0, fmt.Errorf("schedule expiry report %q: %w", spec, err)
	}
	return id, nil
}

// NewCron returns a cron runner in UTC that reports through log and recovers job panics.
func NewCron(log logrus.FieldLogger) *cron.Cron {
	l := cronLogger{log: log}
	return cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
