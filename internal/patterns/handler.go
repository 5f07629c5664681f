package patterns

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/salonflow/salonflow-backend/pkg/common"
	"github.com/salonflow/salonflow-backend/pkg/middleware"
)

// Handler exposes pattern profiling and anomaly analysis over HTTP
type Handler struct {
	builder *ProfileBuilder
	scorer  *AnomalyScorer
}

// NewHandler creates a patterns handler
func NewHandler(builder *ProfileBuilder, scorer *AnomalyScorer) *Handler {
	return &Handler{builder: builder, scorer: scorer}
}

// RegisterRoutes registers pattern analysis routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.AnalyzePayment)
	rg.GET("/profile/:user_id", h.GetProfile)
}

type analyzeRequest struct {
	UserID            string  `json:"user_id" binding:"required,uuid"`
	Amount            float64 `json:"amount" binding:"required,gt=0"`
	PaymentMethod     string  `json:"payment_method" binding:"required"`
	Country           string  `json:"country"`
	DeviceFingerprint string  `json:"device_fingerprint"`
	Timestamp         string  `json:"timestamp"`
}

// AnalyzePayment scores one payment attempt against the user's profile
func (h *Handler) AnalyzePayment(c *gin.Context) {
	var req analyzeRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		common.ErrorResponse(c, 400, "invalid user_id")
		return
	}

	ts := time.Now()
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			common.ErrorResponse(c, 400, "timestamp must be RFC3339")
			return
		}
		ts = parsed
	}

	input := &PaymentInput{
		UserID:            userID,
		Amount:            req.Amount,
		PaymentMethod:     req.PaymentMethod,
		Country:           req.Country,
		DeviceFingerprint: req.DeviceFingerprint,
		Timestamp:         ts,
	}

	profile := h.builder.Build(c.Request.Context(), userID)
	result := h.scorer.Analyze(c.Request.Context(), input, profile)
	common.SuccessResponse(c, result)
}

// GetProfile returns the behavioral profile for one user
func (h *Handler) GetProfile(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		common.ErrorResponse(c, 400, "invalid user_id")
		return
	}

	profile := h.builder.Build(c.Request.Context(), userID)
	common.SuccessResponse(c, profile)
}
