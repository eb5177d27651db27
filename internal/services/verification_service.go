// internal/services/verification_service.go
package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/sokoni/sokoni-backend/internal/config"
	"github.com/sokoni/sokoni-backend/internal/models"
	"github.com/sokoni/sokoni-backend/internal/utils"
)

// VerificationService issues and checks the hand-off codes. It never
// mutates state; all methods are pure lookup/compare.
type VerificationService struct {
	secret []byte
}

func NewVerificationService(cfg *config.Config) *VerificationService {
	return &VerificationService{
		secret: []byte(cfg.Fulfillment.DepositCodeSecret),
	}
}

// DepositCode is a deterministic function of (order, PDA agent). It is a
// convenience identifier, not a secret: the same HMAC also yields an OTP a
// PSM terminal can derive without network access to the stored code.
func (s *VerificationService) DepositCode(orderID, pdaAgentID uuid.UUID) string {
	mac := s.mac(orderID, pdaAgentID)
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(mac)[:8]
}

// DepositOTP derives the offline-checkable 6-digit form of the deposit code.
func (s *VerificationService) DepositOTP(orderID, pdaAgentID uuid.UUID) string {
	mac := s.mac(orderID, pdaAgentID)
	return fmt.Sprintf("%06d", binary.BigEndian.Uint32(mac[:4])%1000000)
}

// GeneratePickupCode returns a random order-scoped buyer code. It is only
// called when an order enters delivered_to_psm; before that point no pickup
// code exists to guess.
func (s *VerificationService) GeneratePickupCode() (string, error) {
	return utils.GenerateNumericCode(6)
}

// VerifyDeposit checks a code presented by the PSM against the stored
// deposit code and the derived OTP.
func (s *VerificationService) VerifyDeposit(order *models.Order, presented string) (models.VerificationMethod, bool) {
	if order.PDAAgentID == nil || presented == "" {
		return "", false
	}

	if order.PDADepositCode != "" && codesEqual(order.PDADepositCode, presented) {
		return models.VerificationMethodDepositCode, true
	}

	if codesEqual(s.DepositOTP(order.ID, *order.PDAAgentID), presented) {
		return models.VerificationMethodDepositOTP, true
	}

	return "", false
}

// VerifyPickup checks a code presented on buyer collection.
func (s *VerificationService) VerifyPickup(order *models.Order, presented string) (models.VerificationMethod, bool) {
	if order.BuyerPickupCode == "" || presented == "" {
		return "", false
	}

	if codesEqual(order.BuyerPickupCode, presented) {
		return models.VerificationMethodPickupCode, true
	}

	return "", false
}

func (s *VerificationService) mac(orderID, pdaAgentID uuid.UUID) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(orderID.String() + ":" + pdaAgentID.String()))
	return h.Sum(nil)
}

func codesEqual(expected, presented string) bool {
	return hmac.Equal([]byte(expected), []byte(presented))
}
