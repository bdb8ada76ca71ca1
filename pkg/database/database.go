package database

import (
	"cbseprep_backend/internal/config"
	"cbseprep_backend/internal/model"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Info),
		TranslateError: true,
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	seedHolidays(db)

	return db, nil
}

// Migrate applies the schema for every workflow entity. Tests reuse it
// against an in-memory database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Question{},
		&model.ExamTemplate{},
		&model.ExamSession{},
		&model.StudentAnswer{},
		&model.Evaluation{},
		&model.QuestionMark{},
		&model.Subscription{},
		&model.Holiday{},
		&model.AnswerSheetUpload{},
	)
}

// seedHolidays inserts the fixed national holidays on an empty table so a
// fresh deployment computes sane deadlines out of the box. Admin tooling
// maintains the rest.
func seedHolidays(db *gorm.DB) {
	var count int64
	db.Model(&model.Holiday{}).Count(&count)
	if count > 0 {
		return
	}

	year := time.Now().Year()
	defaults := []model.Holiday{
		{Date: time.Date(year, time.January, 26, 0, 0, 0, 0, time.Local), Name: "Republic Day"},
		{Date: time.Date(year, time.August, 15, 0, 0, 0, 0, time.Local), Name: "Independence Day"},
		{Date: time.Date(year, time.October, 2, 0, 0, 0, 0, time.Local), Name: "Gandhi Jayanti"},
	}
	for _, h := range defaults {
		db.Create(&h)
	}
}
