package main

import (
	"net/http"

	"dialer-platform/internal/httpapi"
	"dialer-platform/internal/rbac"
	"dialer-platform/internal/telephony"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, webhook *telephony.WebhookHandler, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks (public, secret-gated inside the handler).
	r.POST("/webhooks/vapi", webhook.Handle)

	// AUTH routes (token issuance).
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	v1.Use(rbac.RequireWorkspace())
	{
		// CAMPAIGN routes. Analysts get read access; control actions need
		// an operator or above.
		campaigns := v1.Group("/campaigns")
		campaigns.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleOperator, rbac.RoleAnalyst, rbac.RoleSuperAdmin))
		{
			campaigns.GET("/:campaign_id", h.GetCampaign)
			campaigns.GET("/:campaign_id/stats", h.CampaignStats)
			campaigns.GET("/:campaign_id/queue", h.CampaignQueueStatus)
			campaigns.GET("/:campaign_id/compliance-log", h.CampaignComplianceLog)

			control := campaigns.Group("")
			control.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleOperator, rbac.RoleSuperAdmin))
			{
				control.POST("/:campaign_id/start", h.StartCampaign)
				control.POST("/:campaign_id/pause", h.PauseCampaign)
				control.POST("/:campaign_id/resume", h.ResumeCampaign)
				control.POST("/:campaign_id/complete", h.CompleteCampaign)
			}
		}

		// QUEUE inspection
		queueGroup := v1.Group("/queue")
		queueGroup.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleOperator, rbac.RoleAnalyst, rbac.RoleSuperAdmin))
		{
			queueGroup.GET("/:item_id", h.GetQueueItem)
		}

		// ADMIN routes. Owner/super_admin only.
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleSuperAdmin))
		{
			admin.POST("/credentials/invalidate", h.InvalidateCredentials)
		}
	}
}
