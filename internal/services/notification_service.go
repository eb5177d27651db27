// internal/services/notification_service.go
package services

import (
	"fmt"
	"net/smtp"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/sokoni/sokoni-backend/internal/config"
	"github.com/sokoni/sokoni-backend/internal/models"
)

// NotificationService projects order transitions onto recipient+message
// pairs and records them. It makes no business decisions and runs outside
// the state machine's transaction: a failed notification is logged and the
// transition stands.
type NotificationService struct {
	db     *gorm.DB
	config *config.Config
}

type RecipientRole string

const (
	RecipientBuyer  RecipientRole = "buyer"
	RecipientSeller RecipientRole = "seller"
	RecipientPDA    RecipientRole = "pda"
	RecipientPSM    RecipientRole = "psm"
)

type transitionKey struct {
	From models.OrderStatus
	To   models.OrderStatus
}

type fanoutRule struct {
	Recipient RecipientRole
	Type      string
	Title     string
	Message   string // one %s verb: the order number
}

// transitionFanout is the static projection of transitions to recipients.
var transitionFanout = map[transitionKey][]fanoutRule{
	{"", models.OrderStatusConfirmed}: {
		{RecipientBuyer, "order_confirmed", "Order confirmed", "Your order %s is confirmed and awaiting a delivery agent."},
		{RecipientSeller, "new_order", "New order", "You have a new order %s. A delivery agent will collect it soon."},
	},
	{models.OrderStatusConfirmed, models.OrderStatusAssignedToPDA}: {
		{RecipientPDA, "delivery_assigned", "New delivery assignment", "Order %s has been assigned to you for collection."},
		{RecipientSeller, "agent_assigned", "Delivery agent assigned", "A delivery agent has been assigned to order %s."},
	},
	{models.OrderStatusAssignedToPDA, models.OrderStatusPDAEnRouteSeller}: {
		{RecipientSeller, "agent_en_route", "Agent on the way", "The delivery agent is on the way to collect order %s."},
	},
	{models.OrderStatusPDAEnRouteSeller, models.OrderStatusPDAAtSeller}: {
		{RecipientSeller, "agent_arrived", "Agent arrived", "The delivery agent has arrived to collect order %s."},
	},
	{models.OrderStatusPDAAtSeller, models.OrderStatusPickedFromSeller}: {
		{RecipientSeller, "order_picked", "Order picked up", "Order %s has been picked up by the delivery agent."},
		{RecipientBuyer, "order_picked", "Order on the move", "Your order %s has been collected from the seller."},
	},
	{models.OrderStatusPickedFromSeller, models.OrderStatusEnRouteToPSM}: {
		{RecipientBuyer, "order_in_transit", "Order in transit", "Your order %s is on its way to the pickup site."},
	},
	{models.OrderStatusPickedFromSeller, models.OrderStatusEnRouteToBuyer}: {
		{RecipientBuyer, "order_out_for_delivery", "Out for delivery", "Your order %s is out for delivery. Have your pickup code ready."},
	},
	{models.OrderStatusEnRouteToPSM, models.OrderStatusDeliveredToPSM}: {
		{RecipientSeller, "payout_released", "Payout released", "Order %s reached the pickup site. Your payout has been released."},
		{RecipientBuyer, "order_at_site", "Order at pickup site", "Your order %s has arrived at the pickup site."},
		{RecipientPSM, "deposit_recorded", "Deposit recorded", "Order %s is now in your site's custody."},
	},
	{models.OrderStatusDeliveredToPSM, models.OrderStatusReadyForPickup}: {
		{RecipientBuyer, "ready_for_pickup", "Ready for pickup", "Your order %s is ready for pickup. Present your pickup code at the site."},
	},
	{models.OrderStatusReadyForPickup, models.OrderStatusCollectedByBuyer}: {
		{RecipientBuyer, "order_collected", "Order collected", "Thank you for collecting order %s."},
	},
	{models.OrderStatusCollectedByBuyer, models.OrderStatusCompleted}: {
		{RecipientPDA, "commission_released", "Commission released", "Your commission for order %s has been released."},
		{RecipientPSM, "commission_released", "Commission released", "Your commission for order %s has been released."},
	},
	{models.OrderStatusEnRouteToBuyer, models.OrderStatusCompleted}: {
		{RecipientBuyer, "order_delivered", "Order delivered", "Your order %s has been delivered. Thank you for shopping with us."},
		{RecipientSeller, "payout_released", "Payout released", "Order %s was delivered. Your payout has been released."},
		{RecipientPDA, "commission_released", "Commission released", "Your commission for order %s has been released."},
	},
}

// cancellation fans out to everyone involved regardless of the prior status
var cancellationFanout = []fanoutRule{
	{RecipientBuyer, "order_cancelled", "Order cancelled", "Your order %s has been cancelled."},
	{RecipientSeller, "order_cancelled", "Order cancelled", "Order %s has been cancelled."},
	{RecipientPDA, "order_cancelled", "Order cancelled", "Order %s has been cancelled."},
	{RecipientPSM, "order_cancelled", "Order cancelled", "Order %s has been cancelled."},
}

func NewNotificationService(db *gorm.DB, config *config.Config) *NotificationService {
	return &NotificationService{
		db:     db,
		config: config,
	}
}

// NotifyTransition emits the notifications mapped to one transition.
// Best-effort by contract: errors are logged, never returned.
func (s *NotificationService) NotifyTransition(order *models.Order, from, to models.OrderStatus) {
	rules, ok := transitionFanout[transitionKey{From: from, To: to}]
	if to == models.OrderStatusCancelled {
		rules = cancellationFanout
	} else if !ok {
		return
	}

	for _, rule := range rules {
		userID, found := s.resolveRecipient(order, rule.Recipient)
		if !found {
			continue
		}

		data := models.JSONB{
			"order_number": order.OrderNumber,
			"status":       string(to),
		}
		if rule.Recipient == RecipientBuyer && order.BuyerPickupCode != "" &&
			(to == models.OrderStatusReadyForPickup || to == models.OrderStatusEnRouteToBuyer) {
			data["pickup_code"] = order.BuyerPickupCode
		}

		notification := &models.Notification{
			UserID:  userID,
			Type:    rule.Type,
			Title:   rule.Title,
			Message: fmt.Sprintf(rule.Message, order.OrderNumber),
			OrderID: &order.ID,
			Data:    data,
		}

		if err := s.db.Create(notification).Error; err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"order_id":  order.ID,
				"recipient": rule.Recipient,
				"type":      rule.Type,
			}).Error("Failed to record notification")
			continue
		}

		s.emailBestEffort(userID, notification.Title, notification.Message)
	}
}

func (s *NotificationService) resolveRecipient(order *models.Order, role RecipientRole) (uuid.UUID, bool) {
	switch role {
	case RecipientBuyer:
		return order.BuyerID, true
	case RecipientSeller:
		return order.SellerID, true
	case RecipientPDA:
		return s.agentUser(order.PDAAgentID)
	case RecipientPSM:
		return s.agentUser(order.PSMAgentID)
	}
	return uuid.Nil, false
}

func (s *NotificationService) agentUser(agentID *uuid.UUID) (uuid.UUID, bool) {
	if agentID == nil {
		return uuid.Nil, false
	}

	var agent models.Agent
	if err := s.db.First(&agent, "id = ?", *agentID).Error; err != nil {
		logrus.WithError(err).WithField("agent_id", agentID).Warn("Failed to resolve agent for notification")
		return uuid.Nil, false
	}
	return agent.UserID, true
}

func (s *NotificationService) emailBestEffort(userID uuid.UUID, subject, body string) {
	if s.config.Email.SMTPHost == "" {
		return
	}

	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to load user for email notification")
		return
	}

	if err := s.sendEmail(user.Email, subject, body); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to send email notification")
	}
}

func (s *NotificationService) sendEmail(to, subject, body string) error {
	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s", to, subject, body))

	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}

// MarkRead flags a notification as read by its owner.
func (s *NotificationService) MarkRead(userID, notificationID uuid.UUID) error {
	result := s.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", notificationID, userID).
		Update("read_at", gorm.Expr("CURRENT_TIMESTAMP"))
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	return nil
}

// ListForUser returns a user's notifications, newest first.
func (s *NotificationService) ListForUser(userID uuid.UUID, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var notifications []models.Notification
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("failed to load notifications: %w", err)
	}
	return notifications, nil
}
