package controller

import (
	"cbseprep_backend/internal/model"
	"cbseprep_backend/internal/service"
	"cbseprep_backend/internal/util"
	"time"

	"github.com/gin-gonic/gin"
)

type SubscriptionController struct {
	Service *service.EntitlementService
}

func NewSubscriptionController(svc *service.EntitlementService) *SubscriptionController {
	return &SubscriptionController{Service: svc}
}

type activateRequest struct {
	StudentID    uint           `json:"studentId" binding:"required"`
	PlanTier     model.PlanTier `json:"planTier" binding:"required"`
	BillingCycle string         `json:"billingCycle"`
	StartDate    time.Time      `json:"startDate"`
}

// @Summary Activate a subscription (billing callback)
// @Tags subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body activateRequest true "subscription"
// @Success 201 {object} util.Response
// @Router /api/admin/subscriptions [post]
func (c *SubscriptionController) Activate(ctx *gin.Context) {
	var req activateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if req.BillingCycle == "" {
		req.BillingCycle = "monthly"
	}
	if req.StartDate.IsZero() {
		req.StartDate = time.Now()
	}

	sub, err := c.Service.ActivateSubscription(req.StudentID, req.PlanTier, req.BillingCycle, req.StartDate)
	if err != nil {
		util.WorkflowError(ctx, err)
		return
	}

	util.Created(ctx, sub)
}

// @Summary My usage summary
// @Tags subscriptions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/subscriptions/usage [get]
func (c *SubscriptionController) Usage(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)

	summary, err := c.Service.GetUsageSummary(user.UserID)
	if err != nil {
		util.WorkflowError(ctx, err)
		return
	}

	util.Success(ctx, summary)
}

// @Summary My subscription history
// @Tags subscriptions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/subscriptions/history [get]
func (c *SubscriptionController) History(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)

	subs, err := c.Service.History(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, subs)
}
