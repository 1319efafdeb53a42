// Package audit periodically reconciles card balances against the adjustment
// journal. Transfers move money between cards, so only issues, credits and
// write-offs change the total held by the ledger.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/card-ledger/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// TotalsSource returns the ledger aggregates.
type TotalsSource interface {
	Totals(ctx context.Context) (models.LedgerTotals, error)
}

// Report is the outcome of one reconciliation run.
type Report struct {
	CheckedAt        time.Time
	Cards            int
	BalanceSum       decimal.Decimal
	AdjustmentSum    decimal.Decimal
	Drift            decimal.Decimal
	NegativeBalances int
}

// OK reports whether the ledger reconciled.
func (r Report) OK() bool {
	return r.Drift.IsZero() && r.NegativeBalances == 0
}

// Auditor runs reconciliations on a cron schedule.
type Auditor struct {
	source   TotalsSource
	log      *logrus.Logger
	schedule string
	timeout  time.Duration
	cron     *cron.Cron
	now      func() time.Time
}

// New creates an auditor. timeout bounds a single run.
func New(source TotalsSource, log *logrus.Logger, schedule string, timeout time.Duration) *Auditor {
	return &Auditor{
		source:   source,
		log:      log,
		schedule: schedule,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Run performs one reconciliation and logs the result.
func (a *Auditor) Run(ctx context.Context) (Report, error) {
	totals, err := a.source.Totals(ctx)
	if err != nil {
		a.log.WithError(err).Error("Ledger audit failed")
		return Report{}, fmt.Errorf("failed to load ledger totals: %w", err)
	}

	r := Report{
		CheckedAt:        a.now().UTC(),
		Cards:            totals.Cards,
		BalanceSum:       totals.BalanceSum,
		AdjustmentSum:    totals.AdjustmentSum,
		Drift:            totals.BalanceSum.Sub(totals.AdjustmentSum),
		NegativeBalances: totals.NegativeBalances,
	}
	entry := a.log.WithFields(logrus.Fields{
		"cards":             r.Cards,
		"balance_sum":       r.BalanceSum.String(),
		"adjustment_sum":    r.AdjustmentSum.String(),
		"drift":             r.Drift.String(),
		"negative_balances": r.NegativeBalances,
	})
	if r.OK() {
		entry.Info("Ledger reconciled")
	} else {
		entry.Error("Ledger does not reconcile")
	}
	return r, nil
}

// Start schedules Run and starts the scheduler.
func (a *Auditor) Start() error {
	c := cron.New()
	_, err := c.AddFunc(a.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		_, _ = a.Run(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid audit schedule %q: %w", a.schedule, err)
	}
	a.cron = c
	c.Start()
	a.log.WithField("schedule", a.schedule).Info("Ledger auditor started")
	return nil
}

// Stop stops the scheduler and waits for a running audit to finish or ctx to expire.
func (a *Auditor) Stop(ctx context.Context) {
	if a.cron == nil {
		return
	}
	select {
	case <-a.cron.Stop().Done():
	case <-ctx.Done():
	}
}
