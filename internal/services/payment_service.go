// internal/services/payment_service.go
package services

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/refund"
	"gorm.io/gorm"

	"github.com/sokoni/sokoni-backend/internal/config"
	"github.com/sokoni/sokoni-backend/internal/models"
	"github.com/sokoni/sokoni-backend/internal/utils"
)

// PaymentService fronts Stripe for order checkout. Orders only come into
// existence through ConfirmOrderPayment: the state machine never sees an
// order whose payment was not captured.
type PaymentService struct {
	db     *gorm.DB
	config *config.Config
	orders *OrderService
}

type CreateOrderIntentRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
}

type PaymentIntentResponse struct {
	ClientSecret string  `json:"client_secret"`
	PaymentID    string  `json:"payment_id"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Status       string  `json:"status"`
}

type ConfirmOrderPaymentRequest struct {
	PaymentIntentID string                `json:"payment_intent_id" validate:"required"`
	ProductID       uuid.UUID             `json:"product_id" validate:"required"`
	DeliveryMethod  models.DeliveryMethod `json:"delivery_method" validate:"required,oneof=pickup home"`
}

func NewPaymentService(db *gorm.DB, config *config.Config, orders *OrderService) *PaymentService {
	stripe.Key = config.Payment.StripeSecretKey

	return &PaymentService{
		db:     db,
		config: config,
		orders: orders,
	}
}

// CreateOrderIntent opens a Stripe PaymentIntent for the product's selling
// price. The price is derived server-side; the client never supplies an
// amount.
func (s *PaymentService) CreateOrderIntent(buyerID uuid.UUID, req *CreateOrderIntentRequest) (*PaymentIntentResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var product models.Product
	if err := s.db.First(&product, "id = ?", req.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("product not found")
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if product.Status != models.ProductStatusActive {
		return nil, errors.New("product is not available for purchase")
	}

	sellingPrice := math.Round(product.PurchasingPrice*s.config.Fulfillment.MarkupFactor*100) / 100
	amountInCents := int64(math.Round(sellingPrice * 100))

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountInCents),
		Currency: stripe.String(s.config.Payment.Currency),
	}
	params.AddMetadata("buyer_id", buyerID.String())
	params.AddMetadata("product_id", product.ID.String())

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &PaymentIntentResponse{
		ClientSecret: pi.ClientSecret,
		PaymentID:    pi.ID,
		Amount:       sellingPrice,
		Currency:     s.config.Payment.Currency,
		Status:       string(pi.Status),
	}, nil
}

// ConfirmOrderPayment verifies the intent succeeded and belongs to this
// buyer and product, then creates the order in confirmed.
func (s *PaymentService) ConfirmOrderPayment(buyerID uuid.UUID, req *ConfirmOrderPaymentRequest) (*models.Order, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	pi, err := paymentintent.Get(req.PaymentIntentID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("payment not completed, status is %s", pi.Status)
	}
	if pi.Metadata["buyer_id"] != buyerID.String() || pi.Metadata["product_id"] != req.ProductID.String() {
		return nil, errors.New("payment intent does not match this purchase")
	}

	// One intent, one order
	var existing models.Order
	if err := s.db.Where("payment_reference = ?", pi.ID).First(&existing).Error; err == nil {
		return &existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check payment reference: %w", err)
	}

	return s.orders.CreateOrder(buyerID, &CreateOrderRequest{
		ProductID:        req.ProductID,
		DeliveryMethod:   req.DeliveryMethod,
		PaymentReference: pi.ID,
	})
}

// RefundOrder pushes a full refund back through Stripe for a cancelled
// order. Safe to retry: an already-refunded order is a no-op.
func (s *PaymentService) RefundOrder(orderID uuid.UUID, reason string) error {
	var order models.Order
	if err := s.db.First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("failed to load order: %w", err)
	}

	if order.Status != models.OrderStatusCancelled {
		return errors.New("can only refund cancelled orders")
	}
	if order.PaymentReference == "" {
		return errors.New("order has no payment to refund")
	}
	if order.RefundedAt != nil {
		return nil
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(order.PaymentReference),
		Reason:        stripe.String("requested_by_customer"),
	}
	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("failed to process refund: %w", err)
	}

	now := time.Now()
	if err := s.db.Model(&order).Updates(map[string]interface{}{
		"refunded_at":   &now,
		"refund_reason": reason,
	}).Error; err != nil {
		return fmt.Errorf("failed to record refund: %w", err)
	}

	return nil
}
