package controller

import (
	"cbseprep_backend/internal/service"
	"cbseprep_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type WorkloadController struct {
	Service *service.WorkloadService
	Exams   *service.ExamService
}

func NewWorkloadController(svc *service.WorkloadService, exams *service.ExamService) *WorkloadController {
	return &WorkloadController{Service: svc, Exams: exams}
}

// @Summary My grading workload
// @Tags workload
// @Produce json
// @Security BearerAuth
// @Param deadlines query int false "number of upcoming deadlines"
// @Success 200 {object} util.Response
// @Router /api/teacher/workload [get]
func (c *WorkloadController) MyWorkload(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)

	n, _ := strconv.Atoi(ctx.DefaultQuery("deadlines", "5"))
	if n < 1 || n > 50 {
		n = 5
	}

	workload, err := c.Service.Workload(user.UserID, n)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, workload)
}

// @Summary Evaluations currently past their deadline
// @Tags workload
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/admin/evaluations/overdue [get]
func (c *WorkloadController) Overdue(ctx *gin.Context) {
	overdue, err := c.Service.OverdueList()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, overdue)
}

// @Summary Sessions waiting for assignment
// @Tags workload
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/admin/evaluations/queue [get]
func (c *WorkloadController) AssignmentQueue(ctx *gin.Context) {
	sessions, err := c.Exams.PendingEvaluationQueue(100)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, sessions)
}
