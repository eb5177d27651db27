// internal/services/order_service_test.go
package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sokoni/sokoni-backend/internal/config"
	"github.com/sokoni/sokoni-backend/internal/models"
)

type OrderServiceTestSuite struct {
	suite.Suite
	db           *gorm.DB
	cfg          *config.Config
	orders       *OrderService
	settlement   *SettlementService
	verification *VerificationService

	buyer    *models.User
	seller   *models.User
	pdaUser  *models.User
	psmUser  *models.User
	pdaAgent *models.Agent
	psmAgent *models.Agent
	product  *models.Product
}

func TestOrderServiceTestSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceTestSuite))
}

func (s *OrderServiceTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)

	// one connection keeps every session on the same in-memory database
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	s.Require().NoError(db.AutoMigrate(
		&models.User{},
		&models.Agent{},
		&models.Product{},
		&models.Order{},
		&models.StatusHistory{},
		&models.Confirmation{},
		&models.CommissionLedgerEntry{},
		&models.Notification{},
	))

	s.db = db
	s.cfg = &config.Config{Fulfillment: testFulfillmentConfig()}
	s.verification = NewVerificationService(s.cfg)
	s.settlement = NewSettlementService()
	notifications := NewNotificationService(db, s.cfg)
	s.orders = NewOrderService(db, s.cfg, s.verification, s.settlement, notifications)

	s.buyer = s.createUser(models.UserTypeBuyer, nil)
	s.seller = s.createUser(models.UserTypeSeller, nil)
	s.pdaUser, s.pdaAgent = s.createAgent(models.AgentRolePDA)
	s.psmUser, s.psmAgent = s.createAgent(models.AgentRolePSM)
	s.product = s.createProduct(s.seller.ID, models.MarketplacePhysical, 100.00)
}

func (s *OrderServiceTestSuite) createUser(userType models.UserType, referrerID *uuid.UUID) *models.User {
	tag := uuid.New().String()[:8]
	user := &models.User{
		Username:   fmt.Sprintf("%s_%s", userType, tag),
		Email:      fmt.Sprintf("%s_%s@example.com", userType, tag),
		UserType:   userType,
		Status:     models.UserStatusActive,
		ReferrerID: referrerID,
	}
	s.Require().NoError(user.SetPassword("Password123!"))
	s.Require().NoError(s.db.Create(user).Error)
	return user
}

func (s *OrderServiceTestSuite) createAgent(role models.AgentRole) (*models.User, *models.Agent) {
	user := s.createUser(models.UserTypeAgent, nil)
	agent := &models.Agent{
		UserID:    user.ID,
		AgentType: role,
		Status:    models.UserStatusActive,
	}
	if role == models.AgentRolePSM {
		agent.SiteName = "Central Pickup Site"
	}
	s.Require().NoError(s.db.Create(agent).Error)
	return user, agent
}

func (s *OrderServiceTestSuite) createProduct(sellerID uuid.UUID, marketplace models.MarketplaceType, price float64) *models.Product {
	product := &models.Product{
		SellerID:        sellerID,
		Title:           "Test Product",
		PurchasingPrice: price,
		MarketplaceType: marketplace,
		Status:          models.ProductStatusActive,
	}
	s.Require().NoError(s.db.Create(product).Error)
	return product
}

func (s *OrderServiceTestSuite) adminActor() Actor {
	return Actor{UserID: uuid.New(), UserType: models.UserTypeAdmin}
}

func (s *OrderServiceTestSuite) agentActor(user *models.User, agent *models.Agent) Actor {
	return Actor{
		UserID:    user.ID,
		UserType:  models.UserTypeAgent,
		AgentID:   &agent.ID,
		AgentRole: agent.AgentType,
	}
}

func (s *OrderServiceTestSuite) buyerActor() Actor {
	return Actor{UserID: s.buyer.ID, UserType: models.UserTypeBuyer}
}

func (s *OrderServiceTestSuite) newPickupOrder() *models.Order {
	order, err := s.orders.CreateOrder(s.buyer.ID, &CreateOrderRequest{
		ProductID:      s.product.ID,
		DeliveryMethod: models.DeliveryMethodPickup,
	})
	s.Require().NoError(err)
	return order
}

func (s *OrderServiceTestSuite) newHomeOrder() *models.Order {
	order, err := s.orders.CreateOrder(s.buyer.ID, &CreateOrderRequest{
		ProductID:      s.product.ID,
		DeliveryMethod: models.DeliveryMethodHome,
	})
	s.Require().NoError(err)
	return order
}

// advanceTo walks the PDA through its drivable steps up to and including the
// target status, resuming from wherever the order currently sits.
func (s *OrderServiceTestSuite) advanceTo(order *models.Order, target models.OrderStatus) *models.Order {
	actor := s.agentActor(s.pdaUser, s.pdaAgent)
	steps := []models.OrderStatus{
		models.OrderStatusPDAEnRouteSeller,
		models.OrderStatusPDAAtSeller,
		models.OrderStatusPickedFromSeller,
	}
	if order.DeliveryMethod == models.DeliveryMethodHome || order.MarketplaceType == models.MarketplaceLocalGrocery {
		steps = append(steps, models.OrderStatusEnRouteToBuyer)
	} else {
		steps = append(steps, models.OrderStatusEnRouteToPSM)
	}

	latest, err := s.orders.GetOrderState(order.ID)
	s.Require().NoError(err)

	chain := chainFor(latest)
	for _, step := range steps {
		if statusIndex(chain, step) <= statusIndex(chain, latest.Status) {
			continue
		}
		latest, err = s.orders.AdvancePDAStatus(order.ID, actor, step, nil)
		s.Require().NoError(err)
		if step == target {
			break
		}
	}
	s.Require().Equal(target, latest.Status)
	return latest
}

func (s *OrderServiceTestSuite) ledgerEntry(orderID uuid.UUID, role models.BeneficiaryRole) *models.CommissionLedgerEntry {
	var entry models.CommissionLedgerEntry
	s.Require().NoError(s.db.Where("order_id = ? AND beneficiary_role = ?", orderID, role).First(&entry).Error)
	return &entry
}

func (s *OrderServiceTestSuite) TestCreateOrderBuildsLedger() {
	order := s.newPickupOrder()

	s.Equal(models.OrderStatusConfirmed, order.Status)
	s.Equal(100.00, order.PurchasingPrice)
	s.Equal(121.00, order.SellingPrice)
	s.NotEmpty(order.OrderNumber)
	s.Empty(order.PDADepositCode)
	s.Empty(order.BuyerPickupCode)

	entries, err := s.orders.GetCommissionLedger(order.ID)
	s.Require().NoError(err)
	s.Len(entries, 3) // seller, pda, psm; no referrer

	sellerEntry := s.ledgerEntry(order.ID, models.BeneficiarySeller)
	s.Equal(100.00, sellerEntry.Amount)
	s.Equal(models.ReleaseStatusPending, sellerEntry.Status)

	pdaEntry := s.ledgerEntry(order.ID, models.BeneficiaryPDA)
	s.Equal(14.70, pdaEntry.Amount)

	psmEntry := s.ledgerEntry(order.ID, models.BeneficiaryPSM)
	s.Equal(3.15, psmEntry.Amount)

	history, err := s.orders.GetStatusHistory(order.ID)
	s.Require().NoError(err)
	s.Len(history, 1)
	s.Equal(models.OrderStatusConfirmed, history[0].NewStatus)
}

func (s *OrderServiceTestSuite) TestCreateOrderRejectsOwnProduct() {
	_, err := s.orders.CreateOrder(s.seller.ID, &CreateOrderRequest{
		ProductID:      s.product.ID,
		DeliveryMethod: models.DeliveryMethodPickup,
	})
	s.Error(err)
}

func (s *OrderServiceTestSuite) TestCreateOrderRejectsInactiveProduct() {
	suspended := s.createProduct(s.seller.ID, models.MarketplacePhysical, 50.00)
	s.Require().NoError(s.db.Model(suspended).Update("status", models.ProductStatusSuspended).Error)

	_, err := s.orders.CreateOrder(s.buyer.ID, &CreateOrderRequest{
		ProductID:      suspended.ID,
		DeliveryMethod: models.DeliveryMethodPickup,
	})
	s.Error(err)
}

func (s *OrderServiceTestSuite) TestReferredBuyerGetsReferralEntry() {
	referrer := s.createUser(models.UserTypeBuyer, nil)
	referred := s.createUser(models.UserTypeBuyer, &referrer.ID)

	order, err := s.orders.CreateOrder(referred.ID, &CreateOrderRequest{
		ProductID:      s.product.ID,
		DeliveryMethod: models.DeliveryMethodPickup,
	})
	s.Require().NoError(err)

	entries, err := s.orders.GetCommissionLedger(order.ID)
	s.Require().NoError(err)
	s.Len(entries, 4)

	referralEntry := s.ledgerEntry(order.ID, models.BeneficiaryReferrer)
	s.Equal(1.00, referralEntry.Amount)
	s.Equal(&referrer.ID, referralEntry.BeneficiaryUserID)

	// bonus off the top shrinks the percentage split
	s.Equal(14.00, s.ledgerEntry(order.ID, models.BeneficiaryPDA).Amount)
	s.Equal(3.00, s.ledgerEntry(order.ID, models.BeneficiaryPSM).Amount)
}

func (s *OrderServiceTestSuite) TestAssignPDA() {
	order := s.newPickupOrder()

	assigned, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)

	s.Equal(models.OrderStatusAssignedToPDA, assigned.Status)
	s.Require().NotNil(assigned.PDAAgentID)
	s.Equal(s.pdaAgent.ID, *assigned.PDAAgentID)
	s.Len(assigned.PDADepositCode, 8)
	s.NotNil(assigned.AssignedAt)

	// deterministic: matches the derived code for the same pair
	s.Equal(s.verification.DepositCode(order.ID, s.pdaAgent.ID), assigned.PDADepositCode)
}

func (s *OrderServiceTestSuite) TestAssignPDARequiresAdmin() {
	order := s.newPickupOrder()

	_, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.buyerActor())
	s.ErrorIs(err, ErrUnauthorizedActor)

	_, err = s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.agentActor(s.pdaUser, s.pdaAgent))
	s.ErrorIs(err, ErrUnauthorizedActor)
}

func (s *OrderServiceTestSuite) TestAssignPDARejectsPSMAgent() {
	order := s.newPickupOrder()

	_, err := s.orders.AssignPDA(order.ID, s.psmAgent.ID, s.adminActor())
	s.ErrorIs(err, ErrUnauthorizedActor)
}

func (s *OrderServiceTestSuite) TestAssignPDAReplayIsIdempotent() {
	order := s.newPickupOrder()

	first, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)

	replay, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)
	s.Equal(first.Status, replay.Status)
	s.Equal(first.PDADepositCode, replay.PDADepositCode)

	// a different agent cannot steal an assigned order
	_, otherAgent := s.createAgent(models.AgentRolePDA)
	_, err = s.orders.AssignPDA(order.ID, otherAgent.ID, s.adminActor())
	s.ErrorIs(err, ErrInvalidTransition)

	history, err := s.orders.GetStatusHistory(order.ID)
	s.Require().NoError(err)
	s.Len(history, 2) // created + assigned, no row for the replay
}

func (s *OrderServiceTestSuite) TestAdvanceRejectsUnassignedAgent() {
	order := s.newPickupOrder()
	_, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)

	otherUser, otherAgent := s.createAgent(models.AgentRolePDA)
	_, err = s.orders.AdvancePDAStatus(order.ID, s.agentActor(otherUser, otherAgent), models.OrderStatusPDAEnRouteSeller, nil)
	s.ErrorIs(err, ErrUnauthorizedActor)
}

func (s *OrderServiceTestSuite) TestAdvanceRejectsSkippedStep() {
	order := s.newPickupOrder()
	_, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)

	actor := s.agentActor(s.pdaUser, s.pdaAgent)

	// skipping pda_en_route_to_seller
	_, err = s.orders.AdvancePDAStatus(order.ID, actor, models.OrderStatusPDAAtSeller, nil)
	s.ErrorIs(err, ErrInvalidTransition)

	// en_route_to_buyer is not on the pickup chain
	s.advanceTo(order, models.OrderStatusPickedFromSeller)
	_, err = s.orders.AdvancePDAStatus(order.ID, actor, models.OrderStatusEnRouteToBuyer, nil)
	s.ErrorIs(err, ErrInvalidTransition)

	// deposit transitions are not PDA-drivable
	s.advanceTo(order, models.OrderStatusEnRouteToPSM)
	_, err = s.orders.AdvancePDAStatus(order.ID, actor, models.OrderStatusDeliveredToPSM, nil)
	s.ErrorIs(err, ErrInvalidTransition)
}

func (s *OrderServiceTestSuite) TestAdvanceReplayIsIdempotent() {
	order := s.newPickupOrder()
	_, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)

	actor := s.agentActor(s.pdaUser, s.pdaAgent)
	_, err = s.orders.AdvancePDAStatus(order.ID, actor, models.OrderStatusPDAEnRouteSeller, nil)
	s.Require().NoError(err)

	replay, err := s.orders.AdvancePDAStatus(order.ID, actor, models.OrderStatusPDAEnRouteSeller, nil)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusPDAEnRouteSeller, replay.Status)

	history, err := s.orders.GetStatusHistory(order.ID)
	s.Require().NoError(err)
	s.Len(history, 3) // created, assigned, en_route; no replay row
}

func (s *OrderServiceTestSuite) TestConfirmDepositReleasesSellerPayout() {
	order := s.newPickupOrder()
	_, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)
	order = s.advanceTo(order, models.OrderStatusEnRouteToPSM)

	deposited, err := s.orders.ConfirmPDADeposit(order.ID, s.psmAgent.ID, order.PDADepositCode, []string{"photo1.jpg"})
	s.Require().NoError(err)

	s.Equal(models.OrderStatusDeliveredToPSM, deposited.Status)
	s.Require().NotNil(deposited.PSMAgentID)
	s.Equal(s.psmAgent.ID, *deposited.PSMAgentID)
	s.Len(deposited.BuyerPickupCode, 6)
	s.NotNil(deposited.DepositedAt)
	s.Equal(models.ReleaseStatusReleased, deposited.SellerPayoutStatus)
	s.Equal(models.ReleaseStatusPending, deposited.PDACommissionStatus)

	sellerEntry := s.ledgerEntry(order.ID, models.BeneficiarySeller)
	s.Equal(models.ReleaseStatusReleased, sellerEntry.Status)
	s.NotNil(sellerEntry.ReleasedAt)
	s.Equal("custody_transferred_to_psm", sellerEntry.ReleaseReason)

	s.Equal(models.ReleaseStatusPending, s.ledgerEntry(order.ID, models.BeneficiaryPDA).Status)

	confirmations, err := s.orders.GetConfirmationHistory(order.ID)
	s.Require().NoError(err)
	s.Require().Len(confirmations, 1)
	s.Equal(models.ConfirmationTypePDADeposit, confirmations[0].ConfirmationType)
	s.Equal(models.ConfirmationResultConfirmed, confirmations[0].Result)
	s.Equal(models.VerificationMethodDepositCode, confirmations[0].Method)
}

func (s *OrderServiceTestSuite) TestConfirmDepositAcceptsOTP() {
	order := s.newPickupOrder()
	_, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)
	s.advanceTo(order, models.OrderStatusEnRouteToPSM)

	otp := s.verification.DepositOTP(order.ID, s.pdaAgent.ID)
	deposited, err := s.orders.ConfirmPDADeposit(order.ID, s.psmAgent.ID, otp, nil)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusDeliveredToPSM, deposited.Status)

	confirmations, err := s.orders.GetConfirmationHistory(order.ID)
	s.Require().NoError(err)
	s.Require().Len(confirmations, 1)
	s.Equal(models.VerificationMethodDepositOTP, confirmations[0].Method)
}

func (s *OrderServiceTestSuite) TestConfirmDepositRejectsWrongCode() {
	order := s.newPickupOrder()
	_, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)
	s.advanceTo(order, models.OrderStatusEnRouteToPSM)

	_, err = s.orders.ConfirmPDADeposit(order.ID, s.psmAgent.ID, "WRONG123", nil)
	s.ErrorIs(err, ErrInvalidVerificationCode)

	// order untouched, seller payout still pending
	state, err := s.orders.GetOrderState(order.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusEnRouteToPSM, state.Status)
	s.Equal(models.ReleaseStatusPending, s.ledgerEntry(order.ID, models.BeneficiarySeller).Status)

	// the failed attempt is still on the record
	confirmations, err := s.orders.GetConfirmationHistory(order.ID)
	s.Require().NoError(err)
	s.Require().Len(confirmations, 1)
	s.Equal(models.ConfirmationResultRejected, confirmations[0].Result)
	s.Equal("WRONG123", confirmations[0].CodePresented)
}

func (s *OrderServiceTestSuite) TestConfirmDepositRejectsEarlyPresentation() {
	order := s.newPickupOrder()
	_, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)
	order = s.advanceTo(order, models.OrderStatusPickedFromSeller)

	_, err = s.orders.ConfirmPDADeposit(order.ID, s.psmAgent.ID, order.PDADepositCode, nil)
	s.ErrorIs(err, ErrInvalidTransition)
}

func (s *OrderServiceTestSuite) TestConfirmDepositRequiresPSMAgent() {
	order := s.newPickupOrder()
	_, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)
	order = s.advanceTo(order, models.OrderStatusEnRouteToPSM)

	_, err = s.orders.ConfirmPDADeposit(order.ID, s.pdaAgent.ID, order.PDADepositCode, nil)
	s.ErrorIs(err, ErrUnauthorizedActor)
}

func (s *OrderServiceTestSuite) TestConfirmDepositReplayDoesNotReleaseTwice() {
	order := s.newPickupOrder()
	_, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)
	order = s.advanceTo(order, models.OrderStatusEnRouteToPSM)

	_, err = s.orders.ConfirmPDADeposit(order.ID, s.psmAgent.ID, order.PDADepositCode, nil)
	s.Require().NoError(err)

	replay, err := s.orders.ConfirmPDADeposit(order.ID, s.psmAgent.ID, order.PDADepositCode, nil)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusDeliveredToPSM, replay.Status)

	confirmations, err := s.orders.GetConfirmationHistory(order.ID)
	s.Require().NoError(err)
	s.Len(confirmations, 1)

	sellerEntry := s.ledgerEntry(order.ID, models.BeneficiarySeller)
	s.Equal(models.ReleaseStatusReleased, sellerEntry.Status)
}

func (s *OrderServiceTestSuite) TestFullPickupFlow() {
	order := s.newPickupOrder()
	_, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)
	order = s.advanceTo(order, models.OrderStatusEnRouteToPSM)

	deposited, err := s.orders.ConfirmPDADeposit(order.ID, s.psmAgent.ID, order.PDADepositCode, nil)
	s.Require().NoError(err)

	ready, err := s.orders.MarkReadyForPickup(order.ID, s.agentActor(s.psmUser, s.psmAgent))
	s.Require().NoError(err)
	s.Equal(models.OrderStatusReadyForPickup, ready.Status)

	completed, err := s.orders.ConfirmBuyerPickup(order.ID, s.psmAgent.ID, deposited.BuyerPickupCode)
	s.Require().NoError(err)

	s.Equal(models.OrderStatusCompleted, completed.Status)
	s.NotNil(completed.CollectedAt)
	s.NotNil(completed.CompletedAt)
	s.Equal(models.ReleaseStatusReleased, completed.PDACommissionStatus)
	s.Equal(models.ReleaseStatusReleased, completed.PSMCommissionStatus)

	pdaEntry := s.ledgerEntry(order.ID, models.BeneficiaryPDA)
	s.Equal(models.ReleaseStatusReleased, pdaEntry.Status)
	s.Equal(&s.pdaUser.ID, pdaEntry.BeneficiaryUserID)
	s.Equal("buyer_pickup_confirmed", pdaEntry.ReleaseReason)

	psmEntry := s.ledgerEntry(order.ID, models.BeneficiaryPSM)
	s.Equal(models.ReleaseStatusReleased, psmEntry.Status)
	s.Equal(&s.psmUser.ID, psmEntry.BeneficiaryUserID)

	// the pickup chain records both the collected and completed hops
	history, err := s.orders.GetStatusHistory(order.ID)
	s.Require().NoError(err)
	last := history[len(history)-1]
	s.Equal(models.OrderStatusCollectedByBuyer, last.OldStatus)
	s.Equal(models.OrderStatusCompleted, last.NewStatus)
	s.Equal(models.OrderStatusCollectedByBuyer, history[len(history)-2].NewStatus)

	confirmations, err := s.orders.GetConfirmationHistory(order.ID)
	s.Require().NoError(err)
	s.Len(confirmations, 2)
}

func (s *OrderServiceTestSuite) TestFullHomeDeliveryFlow() {
	order := s.newHomeOrder()

	entries, err := s.orders.GetCommissionLedger(order.ID)
	s.Require().NoError(err)
	s.Len(entries, 2) // seller and pda; no site involved

	_, err = s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)
	order = s.advanceTo(order, models.OrderStatusEnRouteToBuyer)

	// buyer code exists only once the final leg starts
	s.Len(order.BuyerPickupCode, 6)

	completed, err := s.orders.ConfirmBuyerPickup(order.ID, s.pdaAgent.ID, order.BuyerPickupCode)
	s.Require().NoError(err)

	s.Equal(models.OrderStatusCompleted, completed.Status)
	s.Equal(models.ReleaseStatusReleased, completed.SellerPayoutStatus)
	s.Equal(models.ReleaseStatusReleased, completed.PDACommissionStatus)

	// with no deposit step the seller payout rides on completion
	sellerEntry := s.ledgerEntry(order.ID, models.BeneficiarySeller)
	s.Equal(models.ReleaseStatusReleased, sellerEntry.Status)
	s.Equal("buyer_pickup_confirmed", sellerEntry.ReleaseReason)

	s.Equal(models.ReleaseStatusReleased, s.ledgerEntry(order.ID, models.BeneficiaryPDA).Status)
}

func (s *OrderServiceTestSuite) TestHomeOrderHasNoPickupCodeBeforeFinalLeg() {
	order := s.newHomeOrder()
	_, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)
	order = s.advanceTo(order, models.OrderStatusPickedFromSeller)

	s.Empty(order.BuyerPickupCode)
}

func (s *OrderServiceTestSuite) TestLocalGroceryAlwaysRunsHomeChain() {
	grocery := s.createProduct(s.seller.ID, models.MarketplaceLocalGrocery, 30.00)

	order, err := s.orders.CreateOrder(s.buyer.ID, &CreateOrderRequest{
		ProductID:      grocery.ID,
		DeliveryMethod: models.DeliveryMethodPickup, // overridden
	})
	s.Require().NoError(err)
	s.Equal(models.DeliveryMethodHome, order.DeliveryMethod)

	entries, err := s.orders.GetCommissionLedger(order.ID)
	s.Require().NoError(err)
	s.Len(entries, 2) // no psm share on a couriered order

	// a regular PDA cannot take a grocery order
	_, err = s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.ErrorIs(err, ErrUnauthorizedActor)

	courierUser, courier := s.createAgent(models.AgentRoleFastDelivery)
	assigned, err := s.orders.AssignPDA(order.ID, courier.ID, s.adminActor())
	s.Require().NoError(err)
	s.Equal(models.OrderStatusAssignedToPDA, assigned.Status)

	actor := s.agentActor(courierUser, courier)
	for _, step := range []models.OrderStatus{
		models.OrderStatusPDAEnRouteSeller,
		models.OrderStatusPDAAtSeller,
		models.OrderStatusPickedFromSeller,
		models.OrderStatusEnRouteToBuyer,
	} {
		assigned, err = s.orders.AdvancePDAStatus(order.ID, actor, step, nil)
		s.Require().NoError(err)
	}

	completed, err := s.orders.ConfirmBuyerPickup(order.ID, courier.ID, assigned.BuyerPickupCode)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusCompleted, completed.Status)
}

func (s *OrderServiceTestSuite) TestMarkReadyRequiresBoundPSM() {
	order := s.newPickupOrder()
	_, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)
	order = s.advanceTo(order, models.OrderStatusEnRouteToPSM)

	_, err = s.orders.ConfirmPDADeposit(order.ID, s.psmAgent.ID, order.PDADepositCode, nil)
	s.Require().NoError(err)

	otherUser, otherPSM := s.createAgent(models.AgentRolePSM)
	_, err = s.orders.MarkReadyForPickup(order.ID, s.agentActor(otherUser, otherPSM))
	s.ErrorIs(err, ErrUnauthorizedActor)

	ready, err := s.orders.MarkReadyForPickup(order.ID, s.agentActor(s.psmUser, s.psmAgent))
	s.Require().NoError(err)
	s.Equal(models.OrderStatusReadyForPickup, ready.Status)

	// replay returns the same state without a new history row
	replay, err := s.orders.MarkReadyForPickup(order.ID, s.agentActor(s.psmUser, s.psmAgent))
	s.Require().NoError(err)
	s.Equal(ready.Status, replay.Status)
}

func (s *OrderServiceTestSuite) TestPickupBeforeReadyIsRejected() {
	order := s.newPickupOrder()
	_, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)
	order = s.advanceTo(order, models.OrderStatusEnRouteToPSM)

	deposited, err := s.orders.ConfirmPDADeposit(order.ID, s.psmAgent.ID, order.PDADepositCode, nil)
	s.Require().NoError(err)

	// correct code, wrong stage: still delivered_to_psm, not shelved yet
	_, err = s.orders.ConfirmBuyerPickup(order.ID, s.psmAgent.ID, deposited.BuyerPickupCode)
	s.ErrorIs(err, ErrInvalidTransition)
}

func (s *OrderServiceTestSuite) TestPickupRejectsWrongCode() {
	order := s.newPickupOrder()
	_, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)
	order = s.advanceTo(order, models.OrderStatusEnRouteToPSM)

	deposited, err := s.orders.ConfirmPDADeposit(order.ID, s.psmAgent.ID, order.PDADepositCode, nil)
	s.Require().NoError(err)
	_, err = s.orders.MarkReadyForPickup(order.ID, s.agentActor(s.psmUser, s.psmAgent))
	s.Require().NoError(err)

	wrong := "000000"
	if deposited.BuyerPickupCode == wrong {
		wrong = "000001"
	}
	_, err = s.orders.ConfirmBuyerPickup(order.ID, s.psmAgent.ID, wrong)
	s.ErrorIs(err, ErrInvalidVerificationCode)

	state, err := s.orders.GetOrderState(order.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusReadyForPickup, state.Status)
	s.Equal(models.ReleaseStatusPending, s.ledgerEntry(order.ID, models.BeneficiaryPDA).Status)

	confirmations, err := s.orders.GetConfirmationHistory(order.ID)
	s.Require().NoError(err)
	s.Len(confirmations, 2) // deposit confirmed + pickup rejected
	s.Equal(models.ConfirmationResultRejected, confirmations[1].Result)
}

func (s *OrderServiceTestSuite) TestPickupReplayDoesNotReleaseTwice() {
	order := s.newPickupOrder()
	_, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)
	order = s.advanceTo(order, models.OrderStatusEnRouteToPSM)

	deposited, err := s.orders.ConfirmPDADeposit(order.ID, s.psmAgent.ID, order.PDADepositCode, nil)
	s.Require().NoError(err)
	_, err = s.orders.MarkReadyForPickup(order.ID, s.agentActor(s.psmUser, s.psmAgent))
	s.Require().NoError(err)
	_, err = s.orders.ConfirmBuyerPickup(order.ID, s.psmAgent.ID, deposited.BuyerPickupCode)
	s.Require().NoError(err)

	replay, err := s.orders.ConfirmBuyerPickup(order.ID, s.psmAgent.ID, deposited.BuyerPickupCode)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusCompleted, replay.Status)

	confirmations, err := s.orders.GetConfirmationHistory(order.ID)
	s.Require().NoError(err)
	s.Len(confirmations, 2)

	// second release attempt against the ledger is refused outright
	err = s.settlement.ReleaseSellerPayout(s.db, replay)
	s.ErrorIs(err, ErrAlreadyReleased)
}

func (s *OrderServiceTestSuite) TestBuyerCancelOnlyBeforeAssignment() {
	order := s.newPickupOrder()

	cancelled, err := s.orders.CancelOrder(order.ID, s.buyerActor(), "changed my mind")
	s.Require().NoError(err)
	s.Equal(models.OrderStatusCancelled, cancelled.Status)
	s.Equal("changed my mind", cancelled.CancelReason)
	s.NotNil(cancelled.CancelledAt)

	// ledger entries stay pending on a cancelled order
	s.Equal(models.ReleaseStatusPending, s.ledgerEntry(order.ID, models.BeneficiarySeller).Status)

	second := s.newPickupOrder()
	_, err = s.orders.AssignPDA(second.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)

	_, err = s.orders.CancelOrder(second.ID, s.buyerActor(), "too late now")
	s.ErrorIs(err, ErrInvalidTransition)
}

func (s *OrderServiceTestSuite) TestAdminCancelMidFlight() {
	order := s.newPickupOrder()
	_, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)
	s.advanceTo(order, models.OrderStatusEnRouteToPSM)

	cancelled, err := s.orders.CancelOrder(order.ID, s.adminActor(), "pda unreachable")
	s.Require().NoError(err)
	s.Equal(models.OrderStatusCancelled, cancelled.Status)

	// replay is a no-op
	replay, err := s.orders.CancelOrder(order.ID, s.adminActor(), "pda unreachable")
	s.Require().NoError(err)
	s.Equal(models.OrderStatusCancelled, replay.Status)
}

func (s *OrderServiceTestSuite) TestAdminCannotCancelCompletedOrder() {
	order := s.newPickupOrder()
	_, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)
	order = s.advanceTo(order, models.OrderStatusEnRouteToPSM)

	deposited, err := s.orders.ConfirmPDADeposit(order.ID, s.psmAgent.ID, order.PDADepositCode, nil)
	s.Require().NoError(err)
	_, err = s.orders.MarkReadyForPickup(order.ID, s.agentActor(s.psmUser, s.psmAgent))
	s.Require().NoError(err)
	_, err = s.orders.ConfirmBuyerPickup(order.ID, s.psmAgent.ID, deposited.BuyerPickupCode)
	s.Require().NoError(err)

	_, err = s.orders.CancelOrder(order.ID, s.adminActor(), "no")
	s.ErrorIs(err, ErrInvalidTransition)
}

func (s *OrderServiceTestSuite) TestCancelRequiresReason() {
	order := s.newPickupOrder()
	_, err := s.orders.CancelOrder(order.ID, s.adminActor(), "")
	s.Error(err)
}

func (s *OrderServiceTestSuite) TestSellerCannotCancel() {
	order := s.newPickupOrder()
	_, err := s.orders.CancelOrder(order.ID, Actor{UserID: s.seller.ID, UserType: models.UserTypeSeller}, "undo")
	s.ErrorIs(err, ErrUnauthorizedActor)
}

func (s *OrderServiceTestSuite) TestListStaleOrders() {
	stale := s.newPickupOrder()
	_, err := s.orders.AssignPDA(stale.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)

	fresh := s.newPickupOrder()
	_, err = s.orders.AssignPDA(fresh.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)

	// a confirmed order with no agent is not a custody problem however old
	unassigned := s.newPickupOrder()

	old := time.Now().Add(-72 * time.Hour)
	s.Require().NoError(s.db.Model(&models.Order{}).Where("id = ?", stale.ID).
		UpdateColumn("updated_at", old).Error)
	s.Require().NoError(s.db.Model(&models.Order{}).Where("id = ?", unassigned.ID).
		UpdateColumn("updated_at", old).Error)

	orders, err := s.orders.ListStaleOrders(48 * time.Hour)
	s.Require().NoError(err)
	s.Require().Len(orders, 1)
	s.Equal(stale.ID, orders[0].ID)
}

func (s *OrderServiceTestSuite) TestOrderNotFound() {
	_, err := s.orders.GetOrderState(uuid.New())
	s.ErrorIs(err, ErrOrderNotFound)

	_, err = s.orders.AssignPDA(uuid.New(), s.pdaAgent.ID, s.adminActor())
	s.ErrorIs(err, ErrOrderNotFound)
}

func (s *OrderServiceTestSuite) TestAssignUnknownAgent() {
	order := s.newPickupOrder()
	_, err := s.orders.AssignPDA(order.ID, uuid.New(), s.adminActor())
	s.ErrorIs(err, ErrAgentNotFound)
}

func (s *OrderServiceTestSuite) TestBuyerNotifiedWithPickupCode() {
	order := s.newPickupOrder()
	_, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)
	order = s.advanceTo(order, models.OrderStatusEnRouteToPSM)

	deposited, err := s.orders.ConfirmPDADeposit(order.ID, s.psmAgent.ID, order.PDADepositCode, nil)
	s.Require().NoError(err)
	_, err = s.orders.MarkReadyForPickup(order.ID, s.agentActor(s.psmUser, s.psmAgent))
	s.Require().NoError(err)

	var notification models.Notification
	s.Require().NoError(s.db.Where("user_id = ? AND type = ?", s.buyer.ID, "ready_for_pickup").
		First(&notification).Error)
	s.Equal(deposited.BuyerPickupCode, notification.Data["pickup_code"])
	s.Equal(order.OrderNumber, notification.Data["order_number"])
}

func (s *OrderServiceTestSuite) TestCancellationNotifiesAllParties() {
	order := s.newPickupOrder()
	_, err := s.orders.AssignPDA(order.ID, s.pdaAgent.ID, s.adminActor())
	s.Require().NoError(err)

	_, err = s.orders.CancelOrder(order.ID, s.adminActor(), "stock damaged")
	s.Require().NoError(err)

	var count int64
	s.Require().NoError(s.db.Model(&models.Notification{}).
		Where("order_id = ? AND type = ?", order.ID, "order_cancelled").
		Count(&count).Error)
	s.EqualValues(3, count) // buyer, seller, pda; no psm bound yet
}

func (s *OrderServiceTestSuite) TestMarkNotificationRead() {
	order := s.newPickupOrder()

	notifications := NewNotificationService(s.db, s.cfg)
	listed, err := notifications.ListForUser(s.buyer.ID, 10)
	s.Require().NoError(err)
	s.Require().NotEmpty(listed)
	s.Nil(listed[0].ReadAt)
	s.Require().NotNil(listed[0].OrderID)
	s.Equal(order.ID, *listed[0].OrderID)

	s.Require().NoError(notifications.MarkRead(s.buyer.ID, listed[0].ID))

	var updated models.Notification
	s.Require().NoError(s.db.First(&updated, "id = ?", listed[0].ID).Error)
	s.NotNil(updated.ReadAt)
}
