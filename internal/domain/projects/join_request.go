package projects

import (
	"time"

	"metareview/internal/domain/users"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected:
		return true
	default:
		return false
	}
}

type JoinRequest struct {
	ID          uint `gorm:"primaryKey"`
	UserID      uint `gorm:"not null;index"`
	User        *users.User
	ProjectID   uint          `gorm:"not null;index"`
	Project     *Project      `gorm:"constraint:OnDelete:CASCADE"`
	Status      RequestStatus `gorm:"type:varchar(16);not null;default:'PENDING';index"`
	Message     string        `gorm:"type:text"`
	RespondedBy *uint
	RespondedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
