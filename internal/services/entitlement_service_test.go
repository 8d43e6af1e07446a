package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kddeniz/ai-therapist/internal/models"
)

type stubEntitlementPayments struct {
	entitled bool
	err      error
	calls    int
}

func (s *stubEntitlementPayments) HasActiveEntitlement(_ context.Context, _ string, _ time.Duration) (bool, error) {
	s.calls++
	return s.entitled, s.err
}

func newTestEntitlementService(payments entitlementPayments, bypass, force string, now time.Time) *EntitlementService {
	svc := NewEntitlementService(payments, bypass, force, 7*24*time.Hour, 32*24*time.Hour)
	svc.now = func() time.Time { return now }
	return svc
}

func TestTrialStatusCountsDown(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestEntitlementService(&stubEntitlementPayments{}, "", "", now)

	if trial := svc.TrialStatus(nil); !trial.Active || trial.DaysLeft != 7 {
		t.Fatalf("expected fresh trial with 7 days, got %+v", trial)
	}

	ms := &models.MainSession{Created: now.Add(-3 * 24 * time.Hour)}
	if trial := svc.TrialStatus(ms); !trial.Active || trial.DaysLeft != 4 {
		t.Fatalf("expected 4 days left, got %+v", trial)
	}

	ms.Created = now.Add(-7 * 24 * time.Hour)
	if trial := svc.TrialStatus(ms); trial.Active {
		t.Fatalf("expected expired trial, got %+v", trial)
	}
}

func TestEvaluateTrialSkipsPaymentLookup(t *testing.T) {
	now := time.Now()
	payments := &stubEntitlementPayments{}
	svc := newTestEntitlementService(payments, "", "", now)

	client := &models.Client{ID: "c1", Username: "zeynep"}
	ms := &models.MainSession{Created: now.Add(-24 * time.Hour)}

	decision, trial, err := svc.Evaluate(context.Background(), client, ms)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision != AccessTrialActive || !trial.Active {
		t.Fatalf("expected active trial, got %v %+v", decision, trial)
	}
	if payments.calls != 0 {
		t.Fatalf("expected no entitlement lookup during trial, got %d calls", payments.calls)
	}
}

func TestEvaluateExpiredTrialChecksEntitlement(t *testing.T) {
	now := time.Now()
	client := &models.Client{ID: "c1", Username: "zeynep"}
	ms := &models.MainSession{Created: now.Add(-10 * 24 * time.Hour)}

	svc := newTestEntitlementService(&stubEntitlementPayments{entitled: true}, "", "", now)
	decision, _, err := svc.Evaluate(context.Background(), client, ms)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision != AccessEntitled {
		t.Fatalf("expected entitled, got %v", decision)
	}

	svc = newTestEntitlementService(&stubEntitlementPayments{entitled: false}, "", "", now)
	decision, trial, err := svc.Evaluate(context.Background(), client, ms)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision != AccessBlocked || decision.Allowed() {
		t.Fatalf("expected blocked, got %v", decision)
	}
	if trial.Active {
		t.Fatalf("expected inactive trial on block, got %+v", trial)
	}
}

func TestEvaluateBypassUser(t *testing.T) {
	now := time.Now()
	payments := &stubEntitlementPayments{}
	svc := newTestEntitlementService(payments, "Reviewer", "", now)

	client := &models.Client{ID: "c1", Username: "reviewer"}
	ms := &models.MainSession{Created: now.Add(-100 * 24 * time.Hour)}

	decision, _, err := svc.Evaluate(context.Background(), client, ms)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision != AccessBypassed {
		t.Fatalf("expected bypass, got %v", decision)
	}
	if payments.calls != 0 {
		t.Fatalf("bypass must not hit payments, got %d calls", payments.calls)
	}
}

func TestEvaluateForceUserHitsPaywallInsideTrial(t *testing.T) {
	now := time.Now()
	payments := &stubEntitlementPayments{entitled: false}
	svc := newTestEntitlementService(payments, "", "paywall-tester", now)

	client := &models.Client{ID: "c1", Username: "Paywall-Tester"}
	ms := &models.MainSession{Created: now.Add(-time.Hour)}

	decision, trial, err := svc.Evaluate(context.Background(), client, ms)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision != AccessBlocked {
		t.Fatalf("expected forced paywall block, got %v", decision)
	}
	if trial.Active {
		t.Fatalf("forced user must not report an active trial, got %+v", trial)
	}
	if payments.calls != 1 {
		t.Fatalf("expected one entitlement lookup, got %d", payments.calls)
	}
}

func TestEvaluatePropagatesPaymentError(t *testing.T) {
	now := time.Now()
	wantErr := errors.New("db down")
	svc := newTestEntitlementService(&stubEntitlementPayments{err: wantErr}, "", "", now)

	client := &models.Client{ID: "c1", Username: "zeynep"}
	ms := &models.MainSession{Created: now.Add(-10 * 24 * time.Hour)}

	decision, _, err := svc.Evaluate(context.Background(), client, ms)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped payment error, got %v", err)
	}
	if decision != AccessBlocked {
		t.Fatalf("expected blocked on error, got %v", decision)
	}
}
