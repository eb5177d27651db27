// internal/models/confirmation.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Confirmation is one custody hand-off verification event. Rows are
// append-only: never updated, never deleted, kept after the order closes.
type Confirmation struct {
	BaseModel
	OrderID          uuid.UUID          `json:"order_id" gorm:"type:uuid;not null;index:idx_confirmations_order_type"`
	ConfirmationType ConfirmationType   `json:"confirmation_type" gorm:"type:varchar(20);not null;index:idx_confirmations_order_type"`
	ConfirmerRole    AgentRole          `json:"confirmer_role" gorm:"type:varchar(20);not null"`
	ConfirmerAgentID uuid.UUID          `json:"confirmer_agent_id" gorm:"type:uuid;not null"`
	Method           VerificationMethod `json:"verification_method" gorm:"type:varchar(20);not null"`
	CodePresented    string             `json:"verification_code_presented" gorm:"size:16"`
	EvidencePhotos   pq.StringArray     `json:"evidence_photos" gorm:"type:text[]"`
	Result           ConfirmationResult `json:"result" gorm:"type:varchar(10);not null"`

	// Relationships
	Order          Order `json:"order,omitempty" gorm:"foreignKey:OrderID"`
	ConfirmerAgent Agent `json:"confirmer_agent,omitempty" gorm:"foreignKey:ConfirmerAgentID"`
}
