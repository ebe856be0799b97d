package projects

import (
	"math"
	"time"

	"metareview/internal/domain/users"
)

type Category string

const (
	CategoryHealth         Category = "HEALTH"
	CategoryTechnology     Category = "TECHNOLOGY"
	CategoryEducation      Category = "EDUCATION"
	CategorySocialSciences Category = "SOCIAL_SCIENCES"
	CategoryEngineering    Category = "ENGINEERING"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryHealth, CategoryTechnology, CategoryEducation, CategorySocialSciences, CategoryEngineering:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusPaused   Status = "PAUSED"
	StatusFinished Status = "FINISHED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusFinished:
		return true
	default:
		return false
	}
}

const MaxNameLength = 255

type Project struct {
	ID          uint     `gorm:"primaryKey"`
	Name        string   `gorm:"type:varchar(255);not null"`
	Category    Category `gorm:"type:varchar(32);not null;default:'HEALTH';index"`
	Status      Status   `gorm:"type:varchar(16);not null;default:'ACTIVE';index"`
	Description string   `gorm:"type:text"`

	OwnerID uint `gorm:"not null;index"`
	Owner   *users.User

	TotalArticles  int `gorm:"not null;default:0"`
	WorkedArticles int `gorm:"not null;default:0"`

	Memberships []Membership

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Progress is the share of approved articles, rounded to two decimals.
func (p Project) Progress() float64 {
	if p.TotalArticles == 0 {
		return 0
	}
	return round2(float64(p.WorkedArticles) / float64(p.TotalArticles) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
