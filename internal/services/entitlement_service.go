package services

import (
	"context"
	"strings"
	"time"

	"github.com/kddeniz/ai-therapist/internal/models"
)

// AccessDecision is the explicit outcome of the trial/paywall evaluation,
// replacing the nested booleans the paywall logic tends to accrete.
type AccessDecision int

const (
	AccessBlocked AccessDecision = iota
	AccessTrialActive
	AccessEntitled
	AccessBypassed
)

func (d AccessDecision) Allowed() bool {
	return d != AccessBlocked
}

type entitlementPayments interface {
	HasActiveEntitlement(ctx context.Context, clientID string, legacyWindow time.Duration) (bool, error)
}

// EntitlementService is a pure read evaluator over stored payment state and
// the main session's creation time. No side effects.
type EntitlementService struct {
	payments     entitlementPayments
	bypassUser   string
	forceUser    string
	trialWindow  time.Duration
	legacyWindow time.Duration
	now          func() time.Time
}

func NewEntitlementService(payments entitlementPayments, bypassUser, forceUser string, trialWindow, legacyWindow time.Duration) *EntitlementService {
	return &EntitlementService{
		payments:     payments,
		bypassUser:   strings.ToLower(bypassUser),
		forceUser:    strings.ToLower(forceUser),
		trialWindow:  trialWindow,
		legacyWindow: legacyWindow,
		now:          time.Now,
	}
}

// TrialStatus computes whether the free trial is active for a client whose
// main session may not exist yet (nil = about to be created, full window).
func (s *EntitlementService) TrialStatus(mainSession *models.MainSession) models.TrialStatus {
	totalDays := int(s.trialWindow.Hours() / 24)
	if mainSession == nil {
		return models.TrialStatus{Active: true, DaysLeft: totalDays}
	}
	elapsed := s.now().Sub(mainSession.Created)
	if elapsed >= s.trialWindow {
		return models.TrialStatus{Active: false}
	}
	return models.TrialStatus{
		Active:   true,
		DaysLeft: totalDays - int(elapsed.Hours()/24),
	}
}

// Evaluate decides whether the client may start a session. The bypass and
// force usernames exist for app-store review: bypass always allows, force
// applies the paywall even inside the trial window.
func (s *EntitlementService) Evaluate(ctx context.Context, client *models.Client, mainSession *models.MainSession) (AccessDecision, models.TrialStatus, error) {
	trial := s.TrialStatus(mainSession)
	username := strings.ToLower(client.Username)

	if s.bypassUser != "" && username == s.bypassUser {
		return AccessBypassed, trial, nil
	}

	forced := s.forceUser != "" && username == s.forceUser
	if trial.Active && !forced {
		return AccessTrialActive, trial, nil
	}
	if forced {
		trial = models.TrialStatus{Active: false}
	}

	entitled, err := s.payments.HasActiveEntitlement(ctx, client.ID, s.legacyWindow)
	if err != nil {
		return AccessBlocked, trial, err
	}
	if entitled {
		return AccessEntitled, trial, nil
	}
	return AccessBlocked, models.TrialStatus{Active: false}, nil
}
