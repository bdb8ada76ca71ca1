package repository

import (
	"cbseprep_backend/internal/model"

	"gorm.io/gorm"
)

type SubscriptionRepository struct {
	DB *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{DB: db}
}

func (r *SubscriptionRepository) FindActiveByStudent(db *gorm.DB, studentID uint) (*model.Subscription, error) {
	var s model.Subscription
	err := db.Where("student_id = ? AND status = ?", studentID, model.SubscriptionActive).First(&s).Error
	return &s, err
}

func (r *SubscriptionRepository) ListByStudent(studentID uint) ([]model.Subscription, error) {
	var ss []model.Subscription
	err := r.DB.Where("student_id = ?", studentID).Order("start_date desc").Find(&ss).Error
	return ss, err
}

// ResetPeriod moves the usage counter into a new billing period with a
// compare-and-swap on the stored period key, so two racing accessors at a
// boundary reset at most once.
func (r *SubscriptionRepository) ResetPeriod(db *gorm.DB, id uint, fromKey, toKey string) (bool, error) {
	res := db.Model(&model.Subscription{}).
		Where("id = ? AND period_key = ?", id, fromKey).
		Updates(map[string]interface{}{"exams_used": 0, "period_key": toKey})
	return res.RowsAffected == 1, res.Error
}

// ReserveExam increments the usage counter only while it is still under
// the limit and still in the expected period. The conditional update is
// the atomic unit that keeps two concurrent reserves from both crossing
// the boundary.
func (r *SubscriptionRepository) ReserveExam(db *gorm.DB, id uint, periodKey string) (bool, error) {
	res := db.Model(&model.Subscription{}).
		Where("id = ? AND period_key = ? AND exams_used < exam_limit", id, periodKey).
		Update("exams_used", gorm.Expr("exams_used + 1"))
	return res.RowsAffected == 1, res.Error
}

// Retire takes a subscription out of the active slot, freeing the unique
// active key for a successor.
func (r *SubscriptionRepository) Retire(db *gorm.DB, id uint, status model.SubscriptionStatus) error {
	return db.Model(&model.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "active_key": nil}).Error
}

func (r *SubscriptionRepository) Create(db *gorm.DB, s *model.Subscription) error {
	return db.Create(s).Error
}
