// Package alert notifies administrators about tamper incidents, at most once
// per incident per cooldown window.
package alert

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lzjever/lgu-integrity/internal/core"
	"github.com/lzjever/lgu-integrity/internal/observability"
)

const DefaultCooldown = 30 * time.Minute

type Notifier interface {
	Notify(ctx context.Context, inc *core.TamperIncident) error
}

// Cooldown decides whether an alert for key may fire at now. Allow records
// the alert when it returns true.
type Cooldown interface {
	Allow(ctx context.Context, key string, now time.Time) (bool, error)
}

// LogNotifier writes the alert to the log. Delivery channels (mail, chat)
// hook in behind Notifier.
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, inc *core.TamperIncident) error {
	n.Log.Warn("tamper incident alert: notify admins",
		zap.String("incident_id", inc.ID),
		zap.String("severity", string(inc.Severity)),
		zap.String("verification_status", string(inc.VerificationStatus)),
		zap.Strings("affected_users", inc.AffectedUserIDs),
	)
	return nil
}

type Dispatcher struct {
	notifier Notifier
	cooldown Cooldown
	log      *zap.Logger
	now      func() time.Time
}

func NewDispatcher(notifier Notifier, cooldown Cooldown, log *zap.Logger) *Dispatcher {
	return &Dispatcher{notifier: notifier, cooldown: cooldown, log: log, now: time.Now}
}

// Alert notifies about inc unless it was alerted within the cooldown. A
// failing cooldown backend does not suppress the alert.
func (d *Dispatcher) Alert(ctx context.Context, inc *core.TamperIncident) {
	log := d.log.With(zap.String("incident_id", inc.ID))

	allowed, err := d.cooldown.Allow(ctx, inc.ID, d.now())
	if err != nil {
		log.Warn("alert cooldown check failed, alerting anyway", zap.Error(err))
		allowed = true
	}
	if !allowed {
		observability.AlertsTotal.WithLabelValues("suppressed").Inc()
		log.Debug("tamper alert suppressed by cooldown")
		return
	}

	if err := d.notifier.Notify(ctx, inc); err != nil {
		observability.AlertsTotal.WithLabelValues("failed").Inc()
		log.Error("failed to send tamper alert", zap.Error(err))
		return
	}
	observability.AlertsTotal.WithLabelValues("sent").Inc()
}
