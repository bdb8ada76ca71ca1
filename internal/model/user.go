package model

import "time"

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Name       string    `gorm:"size:100;not null" json:"name"`
	Email      string    `gorm:"size:100;unique;not null" json:"email"`
	Password   string    `gorm:"size:100;not null" json:"-"`
	Role       UserRole  `gorm:"type:varchar(20);default:'student'" json:"role"`
	ClassLevel int       `gorm:"default:0" json:"classLevel"` // CBSE class (6-12), students only
	Phone      string    `gorm:"size:20" json:"phone"`
	Disabled   bool      `gorm:"default:false" json:"disabled"`
	LastLogin  time.Time `json:"lastLogin"`
}

func (User) TableName() string {
	return "users"
}

// CanEvaluate reports whether the account may be assigned marking work.
func (u *User) CanEvaluate() bool {
	return u.Role == Teacher || u.Role == Admin
}
