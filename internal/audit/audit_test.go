package audit

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Dan9191/card-ledger/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type totalsFunc func(ctx context.Context) (models.LedgerTotals, error)

func (f totalsFunc) Totals(ctx context.Context) (models.LedgerTotals, error) { return f(ctx) }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func fixed(t models.LedgerTotals) TotalsSource {
	return totalsFunc(func(context.Context) (models.LedgerTotals, error) { return t, nil })
}

func TestRun(t *testing.T) {
	tests := []struct {
		name   string
		totals models.LedgerTotals
		ok     bool
		drift  string
	}{
		{
			name:   "balanced",
			totals: models.LedgerTotals{Cards: 2, BalanceSum: decimal.NewFromInt(1500), AdjustmentSum: decimal.NewFromInt(1500)},
			ok:     true,
			drift:  "0",
		},
		{
			name:   "drift",
			totals: models.LedgerTotals{Cards: 2, BalanceSum: decimal.NewFromInt(1500), AdjustmentSum: decimal.RequireFromString("1499.99")},
			drift:  "0.01",
		},
		{
			name:   "negative balance",
			totals: models.LedgerTotals{Cards: 1, BalanceSum: decimal.Zero, AdjustmentSum: decimal.Zero, NegativeBalances: 1},
			drift:  "0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(fixed(tt.totals), quietLogger(), "@every 1h", time.Second)
			r, err := a.Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if r.OK() != tt.ok {
				t.Fatalf("OK() = %v, want %v", r.OK(), tt.ok)
			}
			if r.Drift.String() != tt.drift {
				t.Fatalf("drift = %s, want %s", r.Drift, tt.drift)
			}
		})
	}
}

func TestRunSourceError(t *testing.T) {
	boom := errors.New("db down")
	a := New(totalsFunc(func(context.Context) (models.LedgerTotals, error) {
		return models.LedgerTotals{}, boom
	}), quietLogger(), "@every 1h", time.Second)
	if _, err := a.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	a := New(fixed(models.LedgerTotals{}), quietLogger(), "not a schedule", time.Second)
	if err := a.Start(); err == nil {
		t.Fatal("expected schedule error")
	}
}

func TestStartRunsOnSchedule(t *testing.T) {
	calls := make(chan struct{}, 4)
	a := New(totalsFunc(func(context.Context) (models.LedgerTotals, error) {
		select {
		case calls <- struct{}{}:
		default:
		}
		return models.LedgerTotals{BalanceSum: decimal.Zero, AdjustmentSum: decimal.Zero}, nil
	}), quietLogger(), "@every 1s", time.Second)

	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Stop(context.Background())

	select {
	case <-calls:
	case <-time.After(3 * time.Second):
		t.Fatal("audit did not run")
	}
}
