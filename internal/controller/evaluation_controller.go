package controller

import (
	"cbseprep_backend/internal/service"
	"cbseprep_backend/internal/util"
	"encoding/json"

	"github.com/gin-gonic/gin"
)

type EvaluationController struct {
	Service *service.EvaluationService
}

func NewEvaluationController(svc *service.EvaluationService) *EvaluationController {
	return &EvaluationController{Service: svc}
}

type assignRequest struct {
	SessionID uint `json:"sessionId" binding:"required"`
	TeacherID uint `json:"teacherId" binding:"required"`
	SlaHours  int  `json:"slaHours"`
}

// @Summary Assign a submitted session to a teacher
// @Tags evaluations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body assignRequest true "assignment"
// @Success 201 {object} util.Response
// @Router /api/admin/evaluations [post]
func (c *EvaluationController) Assign(ctx *gin.Context) {
	var req assignRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	evaluation, err := c.Service.AssignEvaluation(req.SessionID, req.TeacherID, req.SlaHours)
	if err != nil {
		util.WorkflowError(ctx, err)
		return
	}

	util.Created(ctx, evaluation)
}

// @Summary Start grading
// @Tags evaluations
// @Produce json
// @Security BearerAuth
// @Param id path int true "evaluation id"
// @Success 200 {object} util.Response
// @Router /api/teacher/evaluations/{id}/start [post]
func (c *EvaluationController) Start(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	evaluationID, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid evaluation id")
		return
	}

	evaluation, err := c.Service.StartEvaluation(evaluationID, user.UserID)
	if err != nil {
		util.WorkflowError(ctx, err)
		return
	}

	util.Success(ctx, evaluation)
}

type submitMarksRequest struct {
	Marks       []service.QuestionMarkEntry `json:"marks"`
	Annotations json.RawMessage             `json:"annotations,omitempty"`
}

// @Summary Submit a batch of question marks (all or nothing)
// @Tags evaluations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "evaluation id"
// @Param body body submitMarksRequest true "marks"
// @Success 200 {object} util.Response
// @Router /api/teacher/evaluations/{id}/marks [put]
func (c *EvaluationController) SubmitMarks(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	evaluationID, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid evaluation id")
		return
	}

	var req submitMarksRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Service.SubmitQuestionMarks(evaluationID, user.UserID, req.Marks, req.Annotations); err != nil {
		util.WorkflowError(ctx, err)
		return
	}

	util.Success(ctx, nil)
}

// @Summary Complete the evaluation and finalize the session score
// @Tags evaluations
// @Produce json
// @Security BearerAuth
// @Param id path int true "evaluation id"
// @Success 200 {object} util.Response
// @Router /api/teacher/evaluations/{id}/complete [post]
func (c *EvaluationController) Complete(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	evaluationID, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid evaluation id")
		return
	}

	evaluation, err := c.Service.CompleteEvaluation(evaluationID, user.UserID)
	if err != nil {
		util.WorkflowError(ctx, err)
		return
	}

	util.Success(ctx, evaluation)
}

// @Summary Get one evaluation with its marks
// @Tags evaluations
// @Produce json
// @Security BearerAuth
// @Param id path int true "evaluation id"
// @Success 200 {object} util.Response
// @Router /api/teacher/evaluations/{id} [get]
func (c *EvaluationController) Get(ctx *gin.Context) {
	evaluationID, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid evaluation id")
		return
	}

	evaluation, err := c.Service.GetEvaluation(evaluationID)
	if err != nil {
		util.WorkflowError(ctx, err)
		return
	}
	marks, err := c.Service.GetMarks(evaluationID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"evaluation": evaluation, "marks": marks})
}

// @Summary List my assigned evaluations
// @Tags evaluations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/teacher/evaluations [get]
func (c *EvaluationController) ListMine(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	page, limit := pagination(ctx)

	evaluations, total, err := c.Service.ListByTeacher(user.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{List: evaluations, Total: total, Page: page, Limit: limit})
}
