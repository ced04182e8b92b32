package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// InternalList is the workspace-local suppression list consulted before the
// external registry.
type InternalList interface {
	Contains(ctx context.Context, workspaceID, phoneNumber string) (bool, error)
}

// Gatekeeper runs the pre-dial compliance checks. It has no side effects on
// dialing state: its only write is one append-only log entry per Check call.
//
// Checks run in a fixed order and each deduction lowers the score from 100.
// Do-not-call, calling hours, and frequency are hard checks that deny the
// dial; jurisdiction, prior violations, and consent only deduct.
type Gatekeeper struct {
	Internal InternalList
	Registry Registry
	Log      LogRepository
	Logger   *slog.Logger

	// MaxDailyAttempts caps allowed checks per lead per campaign in 24h.
	MaxDailyAttempts int
	// MaxMonthlyContacts caps allowed checks per number across campaigns
	// in 30 days.
	MaxMonthlyContacts int

	Now func() time.Time
}

const (
	deductDNC            = 50
	deductHours          = 30
	deductFrequency      = 25
	deductJurisdiction   = 20
	deductPriorViolation = 15
	deductConsent        = 10

	// failOpenCeiling caps the score when the external registry could not
	// be reached, flagging the allowed dial for review.
	failOpenCeiling = 50

	dncBlockDuration       = 365 * 24 * time.Hour
	frequencyBlockDuration = 24 * time.Hour
)

func NewGatekeeper(internal InternalList, registry Registry, log LogRepository, logger *slog.Logger) *Gatekeeper {
	return &Gatekeeper{
		Internal:           internal,
		Registry:           registry,
		Log:                log,
		Logger:             logger,
		MaxDailyAttempts:   3,
		MaxMonthlyContacts: 3,
		Now:                time.Now,
	}
}

// Check evaluates the request and appends one log entry with the verdict.
func (g *Gatekeeper) Check(ctx context.Context, req Request) (CheckResult, error) {
	now := g.Now().UTC()

	res := CheckResult{Allowed: true, Reason: ReasonClean, Score: 100}

	zone := ZoneForNumber(req.PhoneNumber, req.LeadTZ, req.CampaignTZ)

	if err := g.checkDNC(ctx, req, now, &res); err != nil {
		return CheckResult{}, err
	}
	g.checkHours(zone, now, &res)
	if err := g.checkFrequency(ctx, req, now, &res); err != nil {
		return CheckResult{}, err
	}
	g.checkJurisdiction(zone, &res)
	if err := g.checkPriorViolations(ctx, req, now, &res); err != nil {
		return CheckResult{}, err
	}
	if !req.HasConsent {
		res.Score -= deductConsent
		res.Violations = append(res.Violations, "no recorded consent")
		res.Recommendations = append(res.Recommendations, "obtain and record consent for this lead")
	}

	if res.Score < 0 {
		res.Score = 0
	}

	entry := LogEntry{
		WorkspaceID:  req.WorkspaceID,
		CampaignID:   req.CampaignID,
		LeadID:       req.LeadID,
		PhoneNumber:  req.PhoneNumber,
		Allowed:      res.Allowed,
		Reason:       res.Reason,
		Score:        res.Score,
		BlockedUntil: res.BlockedUntil,
		Violations:   res.Violations,
		CheckedAt:    now,
	}
	if _, err := g.Log.Append(ctx, entry); err != nil {
		return CheckResult{}, fmt.Errorf("append compliance log: %w", err)
	}
	return res, nil
}

func (g *Gatekeeper) checkDNC(ctx context.Context, req Request, now time.Time, res *CheckResult) error {
	listed := false
	if g.Internal != nil {
		var err error
		listed, err = g.Internal.Contains(ctx, req.WorkspaceID, req.PhoneNumber)
		if err != nil {
			return fmt.Errorf("internal dnc lookup: %w", err)
		}
	}

	if !listed && g.Registry != nil {
		external, err := g.Registry.Listed(ctx, req.PhoneNumber)
		if err != nil {
			// Fail open: the dial may proceed, but the score is capped
			// and the entry flagged for review.
			if g.Logger != nil {
				g.Logger.WarnContext(ctx, "dnc registry check failed, failing open",
					"phone_number", req.PhoneNumber, "error", err)
			}
			if res.Score > failOpenCeiling {
				res.Score = failOpenCeiling
			}
			res.Violations = append(res.Violations, ReasonRegistryError)
			res.Recommendations = append(res.Recommendations, "manual review: registry unavailable at check time")
			return nil
		}
		listed = external
	}

	if listed {
		res.Score -= deductDNC
		res.Violations = append(res.Violations, ReasonDNC)
		g.deny(res, ReasonDNC, now.Add(dncBlockDuration))
	}
	return nil
}

// checkHours applies the more restrictive of the base legal window and the
// jurisdiction window, plus jurisdiction no-call days. Window start is
// inclusive; the end minute is not.
func (g *Gatekeeper) checkHours(zone string, now time.Time, res *CheckResult) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	minute := local.Hour()*60 + local.Minute()

	start, end, noSunday := windowFor(zone)
	outside := minute < start || minute >= end
	bannedDay := noSunday && local.Weekday() == time.Sunday

	if outside || bannedDay {
		res.Score -= deductHours
		res.Violations = append(res.Violations, ReasonOutsideHours)
		g.deny(res, ReasonOutsideHours, nextWindowOpen(local, start, noSunday))
	}
}

// checkJurisdiction surfaces content rules (consent-required, no
// prerecorded voice) as recommendations, never as a block.
func (g *Gatekeeper) checkJurisdiction(zone string, res *CheckResult) {
	rule, ok := contentRuleFor(zone)
	if !ok {
		return
	}
	res.Score -= deductJurisdiction
	res.Violations = append(res.Violations, "jurisdiction rule: "+rule.Label)
	if rule.ConsentRequired {
		res.Recommendations = append(res.Recommendations, "prior express consent required in "+zone)
	}
	if rule.NoPrerecorded {
		res.Recommendations = append(res.Recommendations, "prerecorded voice restricted in "+zone)
	}
}

func (g *Gatekeeper) checkFrequency(ctx context.Context, req Request, now time.Time, res *CheckResult) error {
	daily, err := g.Log.CountByLeadSince(ctx, req.WorkspaceID, req.CampaignID, req.LeadID, now.Add(-24*time.Hour))
	if err != nil {
		return fmt.Errorf("count lead attempts: %w", err)
	}
	if g.MaxDailyAttempts > 0 && daily >= g.MaxDailyAttempts {
		res.Score -= deductFrequency
		res.Violations = append(res.Violations, ReasonFrequencyCampaign)
		g.deny(res, ReasonFrequencyCampaign, now.Add(frequencyBlockDuration))
		return nil
	}

	monthly, err := g.Log.CountByNumberSince(ctx, req.WorkspaceID, req.PhoneNumber, now.Add(-30*24*time.Hour))
	if err != nil {
		return fmt.Errorf("count number contacts: %w", err)
	}
	if g.MaxMonthlyContacts > 0 && monthly >= g.MaxMonthlyContacts {
		res.Score -= deductFrequency
		res.Violations = append(res.Violations, ReasonFrequencyNumber)
		g.deny(res, ReasonFrequencyNumber, now.Add(frequencyBlockDuration))
	}
	return nil
}

func (g *Gatekeeper) checkPriorViolations(ctx context.Context, req Request, now time.Time, res *CheckResult) error {
	prior, err := g.Log.CountViolationsByNumber(ctx, req.WorkspaceID, req.PhoneNumber, now.Add(-30*24*time.Hour))
	if err != nil {
		return fmt.Errorf("count prior violations: %w", err)
	}
	if prior > 0 {
		res.Score -= deductPriorViolation
		res.Violations = append(res.Violations, fmt.Sprintf("%d prior denied checks in 30d", prior))
	}
	return nil
}

// deny marks the result blocked, keeping the first hard reason encountered.
func (g *Gatekeeper) deny(res *CheckResult, reason string, until time.Time) {
	if res.Allowed {
		res.Reason = reason
		u := until
		res.BlockedUntil = &u
	}
	res.Allowed = false
}

// nextWindowOpen returns the next moment the window opens in the callee's
// local zone, skipping banned days, converted to UTC.
func nextWindowOpen(local time.Time, startMinute int, noSunday bool) time.Time {
	open := time.Date(local.Year(), local.Month(), local.Day(), startMinute/60, startMinute%60, 0, 0, local.Location())
	if !local.Before(open) {
		open = open.AddDate(0, 0, 1)
	}
	for noSunday && open.Weekday() == time.Sunday {
		open = open.AddDate(0, 0, 1)
	}
	return open.UTC()
}
