package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"dialer-platform/internal/audit"
	"dialer-platform/internal/auth"
	"dialer-platform/internal/campaign"
	"dialer-platform/internal/compliance"
	"dialer-platform/internal/queue"
	"dialer-platform/internal/rbac"
	"dialer-platform/internal/reporting"
	"dialer-platform/internal/tenant"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth          *auth.Manager
	Campaigns     campaign.Repository
	Queue         queue.Repository
	ComplianceLog compliance.LogRepository
	Reporting     *reporting.Service
	Credentials   *tenant.Cache
	Audit         *audit.Service
	Logger        *slog.Logger

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// --- Auth ---

type loginRequest struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	Role        string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.WorkspaceID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, workspace_id, role required"})
		return
	}
	token, err := h.Auth.IssueAccessToken(h.now(), req.UserID, req.WorkspaceID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

// --- Campaign control ---

// campaignTransition moves a campaign to the target status via the
// conditional repository write, so two operators racing on the same button
// cannot both win.
func (h Handlers) campaignTransition(c *gin.Context, to campaign.Status) {
	workspaceID, err := auth.WorkspaceID(c.Request.Context())
	if err != nil || workspaceID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
		return
	}
	campaignID := c.Param("campaign_id")
	if campaignID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaign_id required"})
		return
	}

	camp, err := h.Campaigns.Get(c.Request.Context(), workspaceID, campaignID)
	if errors.Is(err, campaign.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaign lookup failed"})
		return
	}
	if camp.Status == to {
		c.JSON(http.StatusOK, gin.H{"campaign_id": campaignID, "status": string(to)})
		return
	}
	if !camp.Status.CanTransition(to) {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error": "invalid transition",
			"from":  string(camp.Status),
			"to":    string(to),
		})
		return
	}
	err = h.Campaigns.UpdateStatus(c.Request.Context(), workspaceID, campaignID, camp.Status, to, h.now())
	if errors.Is(err, campaign.ErrInvalidTransition) || errors.Is(err, campaign.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "campaign changed concurrently, retry"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "status update failed"})
		return
	}
	if h.Logger != nil {
		h.Logger.Info("campaign status changed",
			"workspace_id", workspaceID,
			"campaign_id", campaignID,
			"from", string(camp.Status),
			"to", string(to),
		)
	}
	h.auditCampaignControl(c, workspaceID, campaignID, string(to))
	c.JSON(http.StatusOK, gin.H{"campaign_id": campaignID, "status": string(to)})
}

// auditCampaignControl records the action best-effort; audit failure never
// fails the request.
func (h Handlers) auditCampaignControl(c *gin.Context, workspaceID, campaignID, action string) {
	if h.Audit == nil {
		return
	}
	userID, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	if err := h.Audit.LogCampaignControl(c.Request.Context(), workspaceID, userID, role, c.ClientIP(), campaignID, action); err != nil && h.Logger != nil {
		h.Logger.Warn("audit write failed", "error", err)
	}
}

// StartCampaign activates a draft, scheduled, or paused campaign.
func (h Handlers) StartCampaign(c *gin.Context) {
	h.campaignTransition(c, campaign.StatusActive)
}

// PauseCampaign suspends dispatching; in-flight calls finish normally.
func (h Handlers) PauseCampaign(c *gin.Context) {
	h.campaignTransition(c, campaign.StatusPaused)
}

// ResumeCampaign re-activates a paused campaign.
func (h Handlers) ResumeCampaign(c *gin.Context) {
	h.campaignTransition(c, campaign.StatusActive)
}

// CompleteCampaign closes out an active or paused campaign. Terminal; the
// scheduler will not pick it up again.
func (h Handlers) CompleteCampaign(c *gin.Context) {
	h.campaignTransition(c, campaign.StatusCompleted)
}

func (h Handlers) GetCampaign(c *gin.Context) {
	workspaceID, err := auth.WorkspaceID(c.Request.Context())
	if err != nil || workspaceID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
		return
	}
	camp, err := h.Campaigns.Get(c.Request.Context(), workspaceID, c.Param("campaign_id"))
	if errors.Is(err, campaign.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaign lookup failed"})
		return
	}
	c.JSON(http.StatusOK, camp)
}

// --- Reporting ---

// CampaignStats recomputes the campaign summary from stored call records.
func (h Handlers) CampaignStats(c *gin.Context) {
	workspaceID, err := auth.WorkspaceID(c.Request.Context())
	if err != nil || workspaceID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
		return
	}
	summary, err := h.Reporting.CampaignSummary(c.Request.Context(), reporting.SummaryRequest{
		WorkspaceID: workspaceID,
		CampaignID:  c.Param("campaign_id"),
	})
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// CampaignQueueStatus reports the live dial queue shape for a campaign.
func (h Handlers) CampaignQueueStatus(c *gin.Context) {
	workspaceID, err := auth.WorkspaceID(c.Request.Context())
	if err != nil || workspaceID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
		return
	}
	campaignID := c.Param("campaign_id")
	pending, err := h.Queue.CountPending(c.Request.Context(), workspaceID, campaignID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "queue lookup failed"})
		return
	}
	inFlight, err := h.Queue.ListCallingLeadIDs(c.Request.Context(), workspaceID, campaignID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "queue lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"campaign_id": campaignID,
		"pending":     pending,
		"in_flight":   len(inFlight),
	})
}

func (h Handlers) GetQueueItem(c *gin.Context) {
	workspaceID, err := auth.WorkspaceID(c.Request.Context())
	if err != nil || workspaceID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
		return
	}
	item, err := h.Queue.Get(c.Request.Context(), workspaceID, c.Param("item_id"))
	if errors.Is(err, queue.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "queue item not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "queue lookup failed"})
		return
	}
	c.JSON(http.StatusOK, item)
}

// --- Compliance ---

const complianceLogDefaultLimit = 100

// CampaignComplianceLog returns the most recent compliance check entries for
// a campaign. The trail is append-only; this is a read-only view.
func (h Handlers) CampaignComplianceLog(c *gin.Context) {
	workspaceID, err := auth.WorkspaceID(c.Request.Context())
	if err != nil || workspaceID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
		return
	}
	limit := complianceLogDefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	entries, err := h.ComplianceLog.ListByCampaign(c.Request.Context(), workspaceID, c.Param("campaign_id"), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "compliance log lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// --- Admin ---

// InvalidateCredentials drops the cached provider credentials for the caller's
// workspace so the next call re-reads storage. Use after rotating keys.
// RBAC: owner or super_admin.
func (h Handlers) InvalidateCredentials(c *gin.Context) {
	if h.Credentials == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "credential cache not configured"})
		return
	}
	workspaceID, err := auth.WorkspaceID(c.Request.Context())
	if err != nil || workspaceID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
		return
	}
	h.Credentials.Invalidate(workspaceID)
	if h.Audit != nil {
		userID, _ := auth.UserID(c.Request.Context())
		role, _ := auth.Role(c.Request.Context())
		if err := h.Audit.LogCredentialChange(c.Request.Context(), workspaceID, userID, role, c.ClientIP(), "credential cache invalidated"); err != nil && h.Logger != nil {
			h.Logger.Warn("audit write failed", "error", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"invalidated": workspaceID})
}

// Convenience middleware bundles.

func RequireWorkspaceAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireWorkspace(), rbac.RequireAnyRole(roles...)}
}
