package telephony

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dialer-platform/pkg/logger"
)

const headerWebhookSecret = "X-Vapi-Secret"

// WebhookHandler receives end-of-call reports from the voice provider.
//
// Delivery contract: once the secret checks out, the handler ALWAYS returns
// 200, even when the payload is malformed or the sink fails. A non-2xx makes
// the provider redeliver, and redelivering a payload we cannot process only
// duplicates work; the sweeper catches anything truly lost.
type WebhookHandler struct {
	Secret string
	Sink   EventSink
}

type webhookEnvelope struct {
	Message struct {
		Type string `json:"type"`
		Call struct {
			ID       string `json:"id"`
			Customer struct {
				Number string `json:"number"`
			} `json:"customer"`
			Metadata struct {
				WorkspaceID string `json:"workspace_id"`
			} `json:"metadata"`
		} `json:"call"`
		EndedReason  string     `json:"endedReason"`
		Cost         float64    `json:"cost"`
		Transcript   string     `json:"transcript"`
		RecordingURL string     `json:"recordingUrl"`
		StartedAt    *time.Time `json:"startedAt"`
		EndedAt      *time.Time `json:"endedAt"`
	} `json:"message"`
}

func (h *WebhookHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Secret != "" {
		got := c.GetHeader(headerWebhookSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
			return
		}
	}

	var env webhookEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		log.Warn("webhook payload unreadable, acknowledging anyway", "error", err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if env.Message.Type != "end-of-call-report" {
		// status-update, transcript chunks and the like are not consumed
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	event := CallEndedEvent{
		WorkspaceID:     env.Message.Call.Metadata.WorkspaceID,
		ProviderCallID:  env.Message.Call.ID,
		PhoneNumber:     env.Message.Call.Customer.Number,
		EndedReason:     env.Message.EndedReason,
		CostMinor:       int64(env.Message.Cost * 100),
		Transcript:      env.Message.Transcript,
		RecordingURL:    env.Message.RecordingURL,
		StartedAt:       env.Message.StartedAt,
		EndedAt:         env.Message.EndedAt,
		Source:          "webhook",
	}
	if event.StartedAt != nil && event.EndedAt != nil {
		event.DurationSeconds = int(event.EndedAt.Sub(*event.StartedAt).Seconds())
	}

	if event.ProviderCallID == "" || event.WorkspaceID == "" {
		log.Warn("webhook event missing identifiers, acknowledging anyway",
			"provider_call_id", event.ProviderCallID, "workspace_id", event.WorkspaceID)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if err := h.Sink.HandleCallEnded(event); err != nil {
		log.Error("call ended event not applied", "provider_call_id", event.ProviderCallID, "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
