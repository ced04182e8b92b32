package dialer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"dialer-platform/internal/campaign"
	"dialer-platform/internal/lead"
	"dialer-platform/internal/phoneline"
	"dialer-platform/internal/queue"
	"dialer-platform/internal/telephony"
	"dialer-platform/internal/tenant"
	"dialer-platform/pkg/utils"
)

// ErrConcurrencyLimited means every placement slot is taken. The item stays
// pending and the next tick retries it.
var ErrConcurrencyLimited = errors.New("dispatch concurrency limit reached")

// ConcurrencyLimiter bounds simultaneous call placements per workspace.
type ConcurrencyLimiter interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisLimiter backs ConcurrencyLimiter with the shared Redis cap, so the
// bound holds across scheduler instances.
type RedisLimiter struct {
	RDB   *redis.Client
	Limit int
	TTL   time.Duration
}

func (l *RedisLimiter) Acquire(ctx context.Context, key string) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, l.RDB, key, l.Limit, l.TTL)
}

func (l *RedisLimiter) Release(ctx context.Context, key string) error {
	return utils.ReleaseConcurrencyCap(ctx, l.RDB, key)
}

// UnboundedLimiter is for tests and single-process local runs.
type UnboundedLimiter struct{}

func (UnboundedLimiter) Acquire(ctx context.Context, key string) (bool, error) { return true, nil }
func (UnboundedLimiter) Release(ctx context.Context, key string) error         { return nil }

// Dispatcher places one call: flips the queue item to calling, resolves
// tenant credentials, invokes the provider, and classifies failures.
// Transient placement errors get a short in-place backoff retry, a
// different mechanism from the outcome-driven business retry.
type Dispatcher struct {
	Queue   queue.Repository
	Leads   lead.Repository
	Creds   *tenant.Cache
	Client  telephony.Client
	Limiter ConcurrencyLimiter
	Retry   *RetryScheduler
	Logger  *slog.Logger

	// PlacementAttempts caps the in-place retries on transient errors.
	PlacementAttempts int

	Now   func() time.Time
	Sleep func(time.Duration)
}

const defaultPlacementAttempts = 3

func (d *Dispatcher) attempts() int {
	if d.PlacementAttempts > 0 {
		return d.PlacementAttempts
	}
	return defaultPlacementAttempts
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *Dispatcher) sleep(dur time.Duration) {
	if d.Sleep != nil {
		d.Sleep(dur)
		return
	}
	time.Sleep(dur)
}

// Dispatch places the call for one due queue item on the allocated line.
func (d *Dispatcher) Dispatch(ctx context.Context, camp campaign.Campaign, item queue.Item, ld lead.Lead, line phoneline.PhoneLine) error {
	capKey := "dialer:dispatch:" + camp.WorkspaceID
	ok, err := d.Limiter.Acquire(ctx, capKey)
	if err != nil {
		return fmt.Errorf("acquire placement slot: %w", err)
	}
	if !ok {
		return ErrConcurrencyLimited
	}
	defer func() {
		if err := d.Limiter.Release(ctx, capKey); err != nil && d.Logger != nil {
			d.Logger.WarnContext(ctx, "placement slot not released", "error", err)
		}
	}()

	now := d.now()
	if err := d.Queue.MarkCalling(ctx, camp.WorkspaceID, item.ID, now); err != nil {
		if errors.Is(err, queue.ErrStaleTransition) {
			// another instance got here first
			return nil
		}
		return fmt.Errorf("mark queue item calling: %w", err)
	}

	if err := d.Leads.UpdateStatus(ctx, camp.WorkspaceID, ld.ID, lead.StatusCalling, now); err != nil {
		d.warn(ctx, "lead status not set to calling", ld.ID, err)
	}
	if err := d.Leads.MarkAttempt(ctx, camp.WorkspaceID, ld.ID, now); err != nil {
		d.warn(ctx, "lead attempt not recorded", ld.ID, err)
	}

	assistantID, keyErr := d.resolveAssistant(ctx, camp)
	if keyErr != nil {
		return d.failPlacement(ctx, camp, item, ld, "configuration_error", keyErr)
	}

	req := telephony.PlaceCallRequest{
		WorkspaceID: camp.WorkspaceID,
		CampaignID:  camp.ID,
		QueueItemID: item.ID,
		AssistantID: assistantID,
		FromLineID:  line.ProviderLineID,
		ToNumber:    ld.Phone,
		LeadName:    ld.FullName(),
	}

	result, err := d.placeWithBackoff(ctx, req)
	if err != nil {
		outcome := "system_error"
		if !telephony.IsTransient(err) {
			outcome = "configuration_error"
		}
		return d.failPlacement(ctx, camp, item, ld, outcome, err)
	}

	if err := d.Queue.AttachProviderCall(ctx, camp.WorkspaceID, item.ID, result.ProviderCallID); err != nil {
		return fmt.Errorf("attach provider call id: %w", err)
	}
	if d.Logger != nil {
		d.Logger.InfoContext(ctx, "call placed",
			"campaign_id", camp.ID,
			"lead_id", ld.ID,
			"queue_item_id", item.ID,
			"provider_call_id", result.ProviderCallID,
			"line", line.Number)
	}
	return nil
}

func (d *Dispatcher) resolveAssistant(ctx context.Context, camp campaign.Campaign) (string, error) {
	assistantID := camp.AssistantID
	if d.Creds == nil {
		if assistantID == "" {
			return "", errors.New("campaign has no assistant configured")
		}
		return assistantID, nil
	}
	creds, err := d.Creds.Get(ctx, camp.WorkspaceID)
	if err != nil && !errors.Is(err, tenant.ErrNotFound) {
		return "", fmt.Errorf("resolve tenant credentials: %w", err)
	}
	if assistantID == "" {
		assistantID = creds.AssistantID
	}
	if assistantID == "" {
		return "", errors.New("no assistant configured for campaign or workspace")
	}
	return assistantID, nil
}

func (d *Dispatcher) placeWithBackoff(ctx context.Context, req telephony.PlaceCallRequest) (telephony.PlaceCallResult, error) {
	var lastErr error
	for attempt := 1; attempt <= d.attempts(); attempt++ {
		result, err := d.Client.PlaceCall(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !telephony.IsTransient(err) {
			break
		}
		if attempt < d.attempts() {
			d.sleep(time.Duration(attempt) * time.Second)
		}
	}
	return telephony.PlaceCallResult{}, lastErr
}

// failPlacement closes the item out after placement could not succeed. The
// outcome then flows through the business retry policy like any other.
func (d *Dispatcher) failPlacement(ctx context.Context, camp campaign.Campaign, item queue.Item, ld lead.Lead, outcome string, cause error) error {
	now := d.now()
	if d.Logger != nil {
		d.Logger.ErrorContext(ctx, "call placement failed",
			"campaign_id", camp.ID,
			"lead_id", ld.ID,
			"queue_item_id", item.ID,
			"outcome", outcome,
			"error", cause)
	}

	if err := d.Queue.Fail(ctx, camp.WorkspaceID, item.ID, outcome, now); err != nil && !errors.Is(err, queue.ErrStaleTransition) {
		return fmt.Errorf("fail queue item: %w", err)
	}

	leadStatus := lead.StatusContacted
	if outcome == "configuration_error" {
		leadStatus = lead.StatusFailed
	}
	if err := d.Leads.UpdateStatus(ctx, camp.WorkspaceID, ld.ID, leadStatus, now); err != nil {
		d.warn(ctx, "lead status not updated after placement failure", ld.ID, err)
	}

	if d.Retry != nil {
		item.AttemptNumber = max(item.AttemptNumber, 1)
		if _, err := d.Retry.Schedule(ctx, camp, item, outcome); err != nil {
			d.warn(ctx, "retry not scheduled after placement failure", ld.ID, err)
		}
	}
	return nil
}

func (d *Dispatcher) warn(ctx context.Context, msg, leadID string, err error) {
	if d.Logger != nil {
		d.Logger.WarnContext(ctx, msg, "lead_id", leadID, "error", err)
	}
}
