package controller

import (
	"cbseprep_backend/internal/service"
	"cbseprep_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type TemplateController struct {
	Service *service.TemplateService
}

func NewTemplateController(svc *service.TemplateService) *TemplateController {
	return &TemplateController{Service: svc}
}

// @Summary Create an exam template
// @Tags templates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.TemplateCreateRequest true "template"
// @Success 201 {object} util.Response
// @Router /api/admin/templates [post]
func (c *TemplateController) Create(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	var req service.TemplateCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	template, err := c.Service.CreateTemplate(user.UserID, req)
	if err != nil {
		util.WorkflowError(ctx, err)
		return
	}

	util.Created(ctx, template)
}

// @Summary List exam templates
// @Tags templates
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/templates [get]
func (c *TemplateController) List(ctx *gin.Context) {
	page, limit := pagination(ctx)
	classLevel, _ := strconv.Atoi(ctx.DefaultQuery("classLevel", "0"))
	activeOnly := ctx.DefaultQuery("active", "true") == "true"

	templates, total, err := c.Service.ListTemplates(classLevel, activeOnly, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{List: templates, Total: total, Page: page, Limit: limit})
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// @Summary Activate or retire a template
// @Tags templates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "template id"
// @Param body body setActiveRequest true "flag"
// @Success 200 {object} util.Response
// @Router /api/admin/templates/{id}/active [put]
func (c *TemplateController) SetActive(ctx *gin.Context) {
	templateID, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid template id")
		return
	}

	var req setActiveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	template, err := c.Service.SetTemplateActive(templateID, *req.Active)
	if err != nil {
		util.WorkflowError(ctx, err)
		return
	}

	util.Success(ctx, template)
}

// @Summary Create a bank question
// @Tags questions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.QuestionRequest true "question"
// @Success 201 {object} util.Response
// @Router /api/admin/questions [post]
func (c *TemplateController) CreateQuestion(ctx *gin.Context) {
	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	q, err := c.Service.CreateQuestion(req)
	if err != nil {
		util.WorkflowError(ctx, err)
		return
	}

	util.Created(ctx, q)
}

// @Summary Update a bank question
// @Tags questions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "question id"
// @Param body body service.QuestionRequest true "question"
// @Success 200 {object} util.Response
// @Router /api/admin/questions/{id} [put]
func (c *TemplateController) UpdateQuestion(ctx *gin.Context) {
	questionID, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid question id")
		return
	}

	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	q, err := c.Service.UpdateQuestion(questionID, req)
	if err != nil {
		util.WorkflowError(ctx, err)
		return
	}

	util.Success(ctx, q)
}

// @Summary Delete a bank question
// @Tags questions
// @Produce json
// @Security BearerAuth
// @Param id path int true "question id"
// @Success 200 {object} util.Response
// @Router /api/admin/questions/{id} [delete]
func (c *TemplateController) DeleteQuestion(ctx *gin.Context) {
	questionID, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid question id")
		return
	}

	if err := c.Service.DeleteQuestion(questionID); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, nil)
}

// @Summary List bank questions
// @Tags questions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/admin/questions [get]
func (c *TemplateController) ListQuestions(ctx *gin.Context) {
	page, limit := pagination(ctx)
	classLevel, _ := strconv.Atoi(ctx.DefaultQuery("classLevel", "0"))
	qtype := ctx.Query("type")

	qs, total, err := c.Service.ListQuestions(classLevel, qtype, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{List: qs, Total: total, Page: page, Limit: limit})
}
