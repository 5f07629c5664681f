package blocking

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/salonflow/salonflow-backend/pkg/common"
	"github.com/salonflow/salonflow-backend/pkg/middleware"
)

// Handler handles HTTP requests for the blocking engine
type Handler struct {
	engine *Engine
}

// NewHandler creates a new blocking handler
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes registers blocking routes on a router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/decision", h.MakeDecision)
	rg.POST("/rules", h.CreateRule)
	rg.POST("/whitelist", h.AddToWhitelist)
	rg.POST("/blacklist", h.AddToBlacklist)
	rg.POST("/events/:event_id/override", h.OverrideEvent)
	rg.POST("/events/:event_id/resolve", h.ResolveEvent)
	rg.GET("/analytics", h.GetAnalytics)
}

// MakeDecision evaluates a payment attempt and returns a blocking decision
func (h *Handler) MakeDecision(c *gin.Context) {
	var req struct {
		UserID            uuid.UUID `json:"user_id" binding:"required"`
		PaymentID         uuid.UUID `json:"payment_id" binding:"required"`
		Amount            float64   `json:"amount" binding:"required,gt=0"`
		PaymentMethod     string    `json:"payment_method" binding:"required"`
		IPAddress         string    `json:"ip_address" binding:"required,ip"`
		UserAgent         string    `json:"user_agent" binding:"required"`
		DeviceFingerprint string    `json:"device_fingerprint"`
		Email             string    `json:"email"`
		Phone             string    `json:"phone"`
		CardNumber        string    `json:"card_number"`
		Country           string    `json:"country"`
		ISP               string    `json:"isp"`
		FraudScore        float64   `json:"fraud_score" binding:"gte=0,lte=100"`
		RiskLevel         string    `json:"risk_level" binding:"omitempty,oneof=low medium high critical"`
	}

	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	attempt := &PaymentAttemptContext{
		UserID:            req.UserID,
		PaymentID:         req.PaymentID,
		Amount:            req.Amount,
		PaymentMethod:     req.PaymentMethod,
		IPAddress:         req.IPAddress,
		UserAgent:         req.UserAgent,
		DeviceFingerprint: req.DeviceFingerprint,
		Email:             req.Email,
		Phone:             req.Phone,
		CardNumber:        req.CardNumber,
		Country:           req.Country,
		ISP:               req.ISP,
		FraudScore:        req.FraudScore,
		RiskLevel:         Severity(req.RiskLevel),
	}

	decision := h.engine.MakeDecision(c.Request.Context(), attempt)
	common.SuccessResponse(c, decision)
}

// CreateRule stores a new blocking rule (admin only)
func (h *Handler) CreateRule(c *gin.Context) {
	var rule BlockingRule
	if !middleware.ValidateAndBind(c, &rule) {
		return
	}

	if err := h.engine.CreateRule(c.Request.Context(), &rule); err != nil {
		if _, ok := err.(*UnknownFieldError); ok {
			common.ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to create rule")
		return
	}

	common.CreatedResponse(c, rule)
}

type listEntryRequest struct {
	Type      string     `json:"type" binding:"required,oneof=user ip_address email phone card_number device_fingerprint country isp"`
	Value     string     `json:"value" binding:"required"`
	Reason    string     `json:"reason" binding:"required"`
	Severity  string     `json:"severity" binding:"omitempty,oneof=low medium high critical"`
	AddedBy   uuid.UUID  `json:"added_by" binding:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// AddToWhitelist adds an identity value to the whitelist (admin only)
func (h *Handler) AddToWhitelist(c *gin.Context) {
	var req listEntryRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	entry := &WhitelistEntry{
		Type:      ListEntryType(req.Type),
		Value:     req.Value,
		Reason:    req.Reason,
		AddedBy:   req.AddedBy,
		ExpiresAt: req.ExpiresAt,
	}

	if err := h.engine.AddToWhitelist(c.Request.Context(), entry); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	common.CreatedResponse(c, entry)
}

// AddToBlacklist adds an identity value to the blacklist (admin only)
func (h *Handler) AddToBlacklist(c *gin.Context) {
	var req listEntryRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	entry := &BlacklistEntry{
		Type:      ListEntryType(req.Type),
		Value:     req.Value,
		Reason:    req.Reason,
		Severity:  Severity(req.Severity),
		AddedBy:   req.AddedBy,
		ExpiresAt: req.ExpiresAt,
	}

	if err := h.engine.AddToBlacklist(c.Request.Context(), entry); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	common.CreatedResponse(c, entry)
}

// OverrideEvent records an admin override of a blocking event
func (h *Handler) OverrideEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("event_id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid event id")
		return
	}

	var req struct {
		AdminID uuid.UUID `json:"admin_id" binding:"required"`
		Reason  string    `json:"reason" binding:"required"`
	}
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	if err := h.engine.OverrideEvent(c.Request.Context(), eventID, req.AdminID, req.Reason); err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to override event")
		return
	}

	common.SuccessResponse(c, gin.H{"event_id": eventID, "overridden": true})
}

// ResolveEvent marks a blocking event as resolved
func (h *Handler) ResolveEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("event_id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid event id")
		return
	}

	var req struct {
		Note string `json:"note" binding:"required"`
	}
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	if err := h.engine.ResolveEvent(c.Request.Context(), eventID, req.Note); err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to resolve event")
		return
	}

	common.SuccessResponse(c, gin.H{"event_id": eventID, "resolved": true})
}

// GetAnalytics aggregates blocking events for a timeframe
func (h *Handler) GetAnalytics(c *gin.Context) {
	timeframe := c.DefaultQuery("timeframe", "24h")

	analytics, err := h.engine.GetAnalytics(c.Request.Context(), timeframe)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	common.SuccessResponse(c, analytics)
}
