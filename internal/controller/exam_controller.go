package controller

import (
	"cbseprep_backend/internal/service"
	"cbseprep_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ExamController struct {
	Service *service.ExamService
	Storage *service.StorageService
}

func NewExamController(svc *service.ExamService, storage *service.StorageService) *ExamController {
	return &ExamController{Service: svc, Storage: storage}
}

type startSessionRequest struct {
	TemplateID uint `json:"templateId" binding:"required"`
}

// @Summary Start an exam attempt
// @Tags exams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body startSessionRequest true "template"
// @Success 201 {object} util.Response
// @Router /api/exams/sessions [post]
func (c *ExamController) StartSession(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	var req startSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	session, err := c.Service.StartSession(user.UserID, req.TemplateID)
	if err != nil {
		util.WorkflowError(ctx, err)
		return
	}

	util.Created(ctx, session)
}

type recordAnswerRequest struct {
	QuestionNumber int    `json:"questionNumber" binding:"required"`
	Choice         string `json:"choice" binding:"required"`
}

// @Summary Record an objective answer (last write wins)
// @Tags exams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "session id"
// @Param body body recordAnswerRequest true "answer"
// @Success 200 {object} util.Response
// @Router /api/exams/sessions/{id}/answers [put]
func (c *ExamController) RecordAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	sessionID, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid session id")
		return
	}

	var req recordAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Service.RecordObjectiveAnswer(sessionID, user.UserID, req.QuestionNumber, req.Choice); err != nil {
		util.WorkflowError(ctx, err)
		return
	}

	util.Success(ctx, nil)
}

// @Summary Submit the objective section for auto-grading
// @Tags exams
// @Produce json
// @Security BearerAuth
// @Param id path int true "session id"
// @Success 200 {object} util.Response
// @Router /api/exams/sessions/{id}/submit [post]
func (c *ExamController) SubmitObjective(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	sessionID, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid session id")
		return
	}

	session, err := c.Service.SubmitObjective(sessionID, user.UserID)
	if err != nil {
		util.WorkflowError(ctx, err)
		return
	}

	util.Success(ctx, session)
}

type beginUploadRequest struct {
	Pages int `json:"pages" binding:"required,min=1,max=50"`
}

// @Summary Request presigned upload slots for answer-sheet pages
// @Tags exams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "session id"
// @Param body body beginUploadRequest true "page count"
// @Success 200 {object} util.Response
// @Router /api/exams/sessions/{id}/uploads [post]
func (c *ExamController) BeginUpload(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	sessionID, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid session id")
		return
	}

	var req beginUploadRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	session, err := c.Service.BeginUpload(sessionID, user.UserID)
	if err != nil {
		util.WorkflowError(ctx, err)
		return
	}

	slots, err := c.Storage.PresignAnswerSheetPages(ctx.Request.Context(), session.ID, req.Pages)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"session": session, "slots": slots})
}

type markUploadedRequest struct {
	ObjectKeys []string `json:"objectKeys" binding:"required,min=1"`
}

// @Summary Confirm answer-sheet pages are uploaded
// @Tags exams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "session id"
// @Param body body markUploadedRequest true "uploaded keys"
// @Success 200 {object} util.Response
// @Router /api/exams/sessions/{id}/uploads/confirm [post]
func (c *ExamController) MarkUploaded(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	sessionID, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid session id")
		return
	}

	var req markUploadedRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	session, err := c.Service.MarkUploaded(sessionID, user.UserID, req.ObjectKeys)
	if err != nil {
		util.WorkflowError(ctx, err)
		return
	}

	util.Success(ctx, session)
}

// @Summary Release the session to the evaluation queue
// @Tags exams
// @Produce json
// @Security BearerAuth
// @Param id path int true "session id"
// @Success 200 {object} util.Response
// @Router /api/exams/sessions/{id}/finish [post]
func (c *ExamController) MarkPendingEvaluation(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	sessionID, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid session id")
		return
	}

	session, err := c.Service.MarkPendingEvaluation(sessionID, user.UserID)
	if err != nil {
		util.WorkflowError(ctx, err)
		return
	}

	util.Success(ctx, session)
}

// @Summary Get one exam session
// @Tags exams
// @Produce json
// @Security BearerAuth
// @Param id path int true "session id"
// @Success 200 {object} util.Response
// @Router /api/exams/sessions/{id} [get]
func (c *ExamController) GetSession(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	sessionID, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid session id")
		return
	}

	session, err := c.Service.GetSession(sessionID)
	if err != nil {
		util.WorkflowError(ctx, err)
		return
	}
	if session.StudentID != user.UserID && user.Role == "student" {
		util.Forbidden(ctx)
		return
	}

	util.Success(ctx, session)
}

// @Summary List my exam sessions
// @Tags exams
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/exams/sessions [get]
func (c *ExamController) ListSessions(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	page, limit := pagination(ctx)

	sessions, total, err := c.Service.ListSessions(user.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{List: sessions, Total: total, Page: page, Limit: limit})
}

func pathID(ctx *gin.Context, name string) (uint, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, strconv.ErrSyntax
	}
	return uint(id), nil
}

func pagination(ctx *gin.Context) (int, int) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
