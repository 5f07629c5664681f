package points

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/salonflow/salonflow-backend/pkg/common"
	"github.com/salonflow/salonflow-backend/pkg/middleware"
)

// Handler exposes point validation over HTTP
type Handler struct {
	service *Service
}

// NewHandler creates a points handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers point validation routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/earning/validate", h.ValidateEarning)
	rg.POST("/redemption/validate", h.ValidateRedemption)
	rg.GET("/limits/:user_id", h.GetLimits)
	rg.POST("/influencer/validate", h.ValidateInfluencer)
}

type earningRequest struct {
	UserID            string  `json:"user_id" binding:"required,uuid"`
	TransactionAmount float64 `json:"transaction_amount" binding:"required,gt=0"`
	IsInfluencer      bool    `json:"is_influencer"`
}

// ValidateEarning validates a point-earning request
func (h *Handler) ValidateEarning(c *gin.Context) {
	var req earningRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		common.ErrorResponse(c, 400, "invalid user_id")
		return
	}

	result := h.service.ValidatePointEarning(c.Request.Context(), userID, req.TransactionAmount, req.IsInfluencer)
	common.SuccessResponse(c, result)
}

type redemptionRequest struct {
	UserID         string  `json:"user_id" binding:"required,uuid"`
	PointsToRedeem int     `json:"points_to_redeem" binding:"required,gt=0"`
	PaymentAmount  float64 `json:"payment_amount" binding:"required,gt=0"`
}

// ValidateRedemption validates a point-redemption request
func (h *Handler) ValidateRedemption(c *gin.Context) {
	var req redemptionRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		common.ErrorResponse(c, 400, "invalid user_id")
		return
	}

	result := h.service.ValidatePointRedemption(c.Request.Context(), userID, req.PointsToRedeem, req.PaymentAmount)
	common.SuccessResponse(c, result)
}

// GetLimits reports the user's remaining daily and monthly earning headroom
func (h *Handler) GetLimits(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		common.ErrorResponse(c, 400, "invalid user_id")
		return
	}

	result := h.service.ValidateDailyLimits(c.Request.Context(), userID)
	common.SuccessResponse(c, result)
}

type influencerRequest struct {
	UserID         string  `json:"user_id" binding:"required,uuid"`
	Followers      int     `json:"followers" binding:"min=0"`
	EngagementRate float64 `json:"engagement_rate" binding:"min=0"`
}

// ValidateInfluencer checks influencer eligibility thresholds
func (h *Handler) ValidateInfluencer(c *gin.Context) {
	var req influencerRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		common.ErrorResponse(c, 400, "invalid user_id")
		return
	}

	result := h.service.ValidateInfluencerStatus(userID, req.Followers, req.EngagementRate)
	common.SuccessResponse(c, result)
}
