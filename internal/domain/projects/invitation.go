package projects

import (
	"time"

	"metareview/internal/domain/users"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationExpired  InvitationStatus = "EXPIRED"
)

func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationPending, InvitationAccepted, InvitationExpired:
		return true
	default:
		return false
	}
}

type Invitation struct {
	ID           uint     `gorm:"primaryKey"`
	ProjectID    uint     `gorm:"not null;index"`
	Project      *Project `gorm:"constraint:OnDelete:CASCADE"`
	InvitedByID  uint     `gorm:"not null"`
	InvitedBy    *users.User
	Email        string           `gorm:"not null;index"`
	Token        string           `gorm:"type:varchar(64);not null;uniqueIndex"`
	Role         Role             `gorm:"type:varchar(16);not null"`
	Status       InvitationStatus `gorm:"type:varchar(16);not null;default:'PENDING'"`
	ExpiresAt    time.Time
	AcceptedByID *uint
	AcceptedAt   *time.Time

	CreatedAt time.Time
}

func (i Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
