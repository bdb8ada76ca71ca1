package controller

import (
	"cbseprep_backend/internal/model"
	"cbseprep_backend/internal/repository"
	"cbseprep_backend/internal/util"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CalendarController manages the holiday overrides that feed deadline
// arithmetic. Admin only.
type CalendarController struct {
	Holidays *repository.HolidayRepository
}

func NewCalendarController(holidays *repository.HolidayRepository) *CalendarController {
	return &CalendarController{Holidays: holidays}
}

type holidayRequest struct {
	Date         string `json:"date" binding:"required"`
	Name         string `json:"name"`
	IsWorkingDay bool   `json:"isWorkingDay"`
}

// @Summary Declare a holiday or working-Sunday override
// @Tags calendar
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body holidayRequest true "override"
// @Success 201 {object} util.Response
// @Router /api/admin/holidays [post]
func (c *CalendarController) Create(ctx *gin.Context) {
	var req holidayRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		util.BadRequest(ctx, "date must be YYYY-MM-DD")
		return
	}

	h := &model.Holiday{Date: date, Name: req.Name, IsWorkingDay: req.IsWorkingDay}
	if err := c.Holidays.Create(h); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			util.Error(ctx, 409, "an override for this date already exists")
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Created(ctx, h)
}

// @Summary List calendar overrides
// @Tags calendar
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/admin/holidays [get]
func (c *CalendarController) List(ctx *gin.Context) {
	hs, err := c.Holidays.List()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, hs)
}

// @Summary Remove a calendar override
// @Tags calendar
// @Produce json
// @Security BearerAuth
// @Param id path int true "override id"
// @Success 200 {object} util.Response
// @Router /api/admin/holidays/{id} [delete]
func (c *CalendarController) Delete(ctx *gin.Context) {
	id, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid holiday id")
		return
	}
	if err := c.Holidays.Delete(id); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
