package dialer

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"dialer-platform/internal/calls"
	"dialer-platform/internal/campaign"
	"dialer-platform/internal/compliance"
	"dialer-platform/internal/lead"
	"dialer-platform/internal/phoneline"
	"dialer-platform/internal/qualify"
	"dialer-platform/internal/queue"
	"dialer-platform/internal/telephony"
)

// Tuesday 2023-11-14 20:00 UTC: 15:00 in New York, inside both the default
// campaign window and the legal calling window.
var fixedNow = time.Date(2023, 11, 14, 20, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClient scripts PlaceCall and GetCall responses.
type fakeClient struct {
	mu sync.Mutex

	placeErrs []error // consumed one per call, nil = success
	placed    []telephony.PlaceCallRequest
	nextID    int

	getInfo telephony.CallInfo
	getErr  error
}

func (c *fakeClient) Name() string { return "fake" }

func (c *fakeClient) PlaceCall(ctx context.Context, req telephony.PlaceCallRequest) (telephony.PlaceCallResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.placeErrs) > 0 {
		err := c.placeErrs[0]
		c.placeErrs = c.placeErrs[1:]
		if err != nil {
			return telephony.PlaceCallResult{}, err
		}
	}
	c.nextID++
	c.placed = append(c.placed, req)
	return telephony.PlaceCallResult{
		ProviderCallID: "vapi-" + string(rune('0'+c.nextID)),
		StartedAt:      fixedNow,
	}, nil
}

func (c *fakeClient) GetCall(ctx context.Context, workspaceID, providerCallID string) (telephony.CallInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return telephony.CallInfo{}, c.getErr
	}
	return c.getInfo, nil
}

func (c *fakeClient) placedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.placed)
}

// rig wires the whole engine onto memory repositories.
type rig struct {
	campaigns *campaign.MemoryRepo
	leads     *lead.MemoryRepository
	lines     *phoneline.MemoryRepository
	queue     *queue.MemoryRepository
	calls     *calls.MemoryRepo
	compLog   *compliance.MemoryLogRepository
	dnc       *compliance.MemoryDNCList
	client    *fakeClient

	dispatcher *Dispatcher
	retry      *RetryScheduler
	reconciler *Reconciler
	engine     *Engine
	sweeper    *Sweeper
}

func newRig() *rig {
	r := &rig{
		campaigns: campaign.NewMemoryRepo(),
		leads:     lead.NewMemoryRepository(),
		lines:     phoneline.NewMemoryRepository(),
		queue:     queue.NewMemoryRepository(),
		calls:     calls.NewMemoryRepo(),
		compLog:   compliance.NewMemoryLogRepository(),
		dnc:       compliance.NewMemoryDNCList(),
		client:    &fakeClient{},
	}
	logger := discardLogger()
	now := func() time.Time { return fixedNow }

	gatekeeper := compliance.NewGatekeeper(r.dnc, compliance.StaticRegistry{}, r.compLog, logger)
	gatekeeper.Now = now

	allocator := phoneline.NewAllocator(r.lines, 0)
	allocator.Now = now

	r.retry = NewRetryScheduler(r.queue, logger)
	r.retry.Now = now

	r.dispatcher = &Dispatcher{
		Queue:   r.queue,
		Leads:   r.leads,
		Client:  r.client,
		Limiter: UnboundedLimiter{},
		Retry:   r.retry,
		Logger:  logger,
		Now:     now,
		Sleep:   func(time.Duration) {},
	}

	r.reconciler = &Reconciler{
		Queue:     r.queue,
		Leads:     r.leads,
		Calls:     r.calls,
		Lines:     r.lines,
		Campaigns: r.campaigns,
		Retry:     r.retry,
		Analyzer:  qualify.StaticAnalyzer{Result: qualify.ScoreResult{Score: 80}},
		Logger:    logger,
		Now:       now,
		Async:     false,
	}

	selector := &lead.Selector{
		Repo: r.leads,
		InFlight: func(ctx context.Context, workspaceID, campaignID string) (map[string]bool, error) {
			return r.queue.ListCallingLeadIDs(ctx, workspaceID, campaignID)
		},
		Now: now,
	}

	memLease := NewMemoryLease("test-owner")
	memLease.Now = now

	r.engine = &Engine{
		Campaigns:    r.campaigns,
		Leads:        r.leads,
		Queue:        r.queue,
		Allocator:    allocator,
		Gatekeeper:   gatekeeper,
		Dispatcher:   r.dispatcher,
		Selector:     selector,
		Lease:        memLease,
		Logger:       logger,
		TickInterval: time.Minute,
		LeaseTTL:     2 * time.Minute,
		Now:          now,
		Sleep:        func(time.Duration) {},
	}

	r.sweeper = &Sweeper{
		Queue:      r.queue,
		Leads:      r.leads,
		Client:     r.client,
		Reconciler: r.reconciler,
		Logger:     logger,
		Interval:   10 * time.Minute,
		Timeout:    30 * time.Minute,
		Now:        now,
	}
	return r
}

func (r *rig) seedCampaign(status campaign.Status) campaign.Campaign {
	c := campaign.Campaign{
		ID:          "camp-1",
		WorkspaceID: "ws-1",
		Name:        "autumn outreach",
		Status:      status,
		AssistantID: "asst-1",
		Timezone:    "America/New_York",
		Retry: campaign.RetryPolicy{
			Enabled:     true,
			MaxRetries:  2,
			DelayAmount: 2,
			DelayUnit:   "hours",
		},
		CreatedAt: fixedNow.Add(-24 * time.Hour),
	}
	r.campaigns.Put(c)
	return c
}

func (r *rig) seedLead(id, phone string) lead.Lead {
	l := lead.Lead{
		ID:          id,
		WorkspaceID: "ws-1",
		CampaignID:  "camp-1",
		FirstName:   "Ada",
		Phone:       phone,
		Timezone:    "America/New_York",
		Status:      lead.StatusContacted,
		CreatedAt:   fixedNow.Add(-48 * time.Hour),
	}
	r.leads.Put(l)
	return l
}

func (r *rig) seedLine(id string) phoneline.PhoneLine {
	l := phoneline.PhoneLine{
		ID:             id,
		WorkspaceID:    "ws-1",
		CampaignID:     "camp-1",
		ProviderLineID: "line-" + id,
		Number:         "+12125550999",
		Status:         phoneline.StatusActive,
		HealthScore:    80,
		DailyCap:       100,
	}
	r.lines.Put(l)
	return l
}

func (r *rig) seedDueItem(leadID string) queue.Item {
	it, _ := r.queue.Insert(context.Background(), queue.Item{
		WorkspaceID:   "ws-1",
		CampaignID:    "camp-1",
		LeadID:        leadID,
		AttemptNumber: 1,
		ScheduledFor:  fixedNow.Add(-time.Minute),
		CreatedAt:     fixedNow.Add(-time.Minute),
	})
	return it
}
