// internal/models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	BaseModel
	Username     string     `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Email        string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Phone        string     `json:"phone" gorm:"size:20"`
	PasswordHash string     `json:"-" gorm:"size:255;not null"`
	UserType     UserType   `json:"user_type" gorm:"type:varchar(20);not null"`
	Status       UserStatus `json:"status" gorm:"type:varchar(20);default:'active'"`
	ReferrerID   *uuid.UUID `json:"referrer_id" gorm:"type:uuid;index"`
	ProfileData  JSONB      `json:"profile_data" gorm:"type:jsonb"`
	LastLoginAt  *time.Time `json:"last_login_at"`

	// Relationships
	Referrer *User  `json:"referrer,omitempty" gorm:"foreignKey:ReferrerID"`
	Agent    *Agent `json:"agent,omitempty" gorm:"foreignKey:UserID"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

// Agent is a fulfillment worker profile attached to a user account. PSM
// agents additionally carry the pickup site they manage.
type Agent struct {
	BaseModel
	UserID      uuid.UUID  `json:"user_id" gorm:"type:uuid;uniqueIndex;not null"`
	AgentType   AgentRole  `json:"agent_type" gorm:"type:varchar(20);not null;index"`
	Status      UserStatus `json:"status" gorm:"type:varchar(20);default:'active'"`
	SiteName    string     `json:"site_name" gorm:"size:100"`
	SiteAddress string     `json:"site_address" gorm:"size:255"`
	SiteData    JSONB      `json:"site_data" gorm:"type:jsonb"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
