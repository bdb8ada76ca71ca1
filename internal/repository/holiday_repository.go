package repository

import (
	"cbseprep_backend/internal/calendar"
	"cbseprep_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type HolidayRepository struct {
	DB *gorm.DB
}

func NewHolidayRepository(db *gorm.DB) *HolidayRepository {
	return &HolidayRepository{DB: db}
}

func (r *HolidayRepository) Create(h *model.Holiday) error {
	return r.DB.Create(h).Error
}

func (r *HolidayRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Holiday{}, id).Error
}

func (r *HolidayRepository) List() ([]model.Holiday, error) {
	var hs []model.Holiday
	err := r.DB.Order("date asc").Find(&hs).Error
	return hs, err
}

// LoadCalendar materializes the holiday table into the pure calendar used
// for deadline arithmetic.
func (r *HolidayRepository) LoadCalendar() (calendar.Calendar, error) {
	hs, err := r.List()
	if err != nil {
		return calendar.Calendar{}, err
	}
	overrides := make(map[time.Time]bool, len(hs))
	for _, h := range hs {
		overrides[h.Date] = h.IsWorkingDay
	}
	return calendar.New(overrides), nil
}
