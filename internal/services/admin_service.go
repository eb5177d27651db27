// internal/services/admin_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoni/sokoni-backend/internal/database"
	"github.com/sokoni/sokoni-backend/internal/models"
	"github.com/sokoni/sokoni-backend/internal/utils"
)

// AdminService covers the back-office surface: agent provisioning, user
// moderation, and the operations dashboard.
type AdminService struct {
	db *gorm.DB
}

type AdminDashboardStats struct {
	TotalUsers        int64   `json:"total_users"`
	ActiveAgents      int64   `json:"active_agents"`
	TotalOrders       int64   `json:"total_orders"`
	OrdersThisMonth   int64   `json:"orders_this_month"`
	OpenOrders        int64   `json:"open_orders"`
	CompletedOrders   int64   `json:"completed_orders"`
	CancelledOrders   int64   `json:"cancelled_orders"`
	MonthlyRevenue    float64 `json:"monthly_revenue"`
	PendingReleases   int64   `json:"pending_releases"`
	ReleasedThisMonth float64 `json:"released_this_month"`
}

type CreateAgentRequest struct {
	Username    string           `json:"username" validate:"required,username"`
	Email       string           `json:"email" validate:"required,email"`
	Phone       string           `json:"phone,omitempty"`
	Password    string           `json:"password" validate:"required,strong_password"`
	AgentType   models.AgentRole `json:"agent_type" validate:"required"`
	SiteName    string           `json:"site_name,omitempty"`
	SiteAddress string           `json:"site_address,omitempty"`
}

type AdminAgentFilter struct {
	utils.PaginationParams
	AgentType *models.AgentRole  `json:"agent_type,omitempty"`
	Status    *models.UserStatus `json:"status,omitempty"`
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{db: db}
}

func (s *AdminService) GetDashboardStats() (*AdminDashboardStats, error) {
	stats := &AdminDashboardStats{}
	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	s.db.Model(&models.User{}).Count(&stats.TotalUsers)
	s.db.Model(&models.Agent{}).Where("status = ?", models.UserStatusActive).Count(&stats.ActiveAgents)

	s.db.Model(&models.Order{}).Count(&stats.TotalOrders)
	s.db.Model(&models.Order{}).Where("created_at >= ?", monthStart).Count(&stats.OrdersThisMonth)
	s.db.Model(&models.Order{}).
		Where("status NOT IN ?", []models.OrderStatus{models.OrderStatusCompleted, models.OrderStatusCancelled}).
		Count(&stats.OpenOrders)
	s.db.Model(&models.Order{}).Where("status = ?", models.OrderStatusCompleted).Count(&stats.CompletedOrders)
	s.db.Model(&models.Order{}).Where("status = ?", models.OrderStatusCancelled).Count(&stats.CancelledOrders)

	s.db.Model(&models.Order{}).
		Where("status = ? AND completed_at >= ?", models.OrderStatusCompleted, monthStart).
		Select("COALESCE(SUM(total_amount), 0)").Scan(&stats.MonthlyRevenue)

	s.db.Model(&models.CommissionLedgerEntry{}).
		Where("status = ?", models.ReleaseStatusPending).Count(&stats.PendingReleases)
	s.db.Model(&models.CommissionLedgerEntry{}).
		Where("status = ? AND released_at >= ?", models.ReleaseStatusReleased, monthStart).
		Select("COALESCE(SUM(amount), 0)").Scan(&stats.ReleasedThisMonth)

	return stats, nil
}

// CreateAgent provisions the user account and the agent profile together.
// Agents never self-register.
func (s *AdminService) CreateAgent(req *CreateAgentRequest) (*models.Agent, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if !req.AgentType.Valid() {
		return nil, errors.New("invalid agent type")
	}
	if req.AgentType == models.AgentRolePSM && req.SiteName == "" {
		return nil, errors.New("site name is required for site managers")
	}

	var existing models.User
	if err := s.db.Where("email = ? OR username = ?", req.Email, req.Username).First(&existing).Error; err == nil {
		return nil, errors.New("user with this email or username already exists")
	}

	var agent *models.Agent
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		user := &models.User{
			Username: req.Username,
			Email:    req.Email,
			Phone:    req.Phone,
			UserType: models.UserTypeAgent,
			Status:   models.UserStatusActive,
		}
		if err := user.SetPassword(req.Password); err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("failed to create agent user: %w", err)
		}

		agent = &models.Agent{
			UserID:      user.ID,
			AgentType:   req.AgentType,
			Status:      models.UserStatusActive,
			SiteName:    req.SiteName,
			SiteAddress: req.SiteAddress,
		}
		if err := tx.Create(agent).Error; err != nil {
			return fmt.Errorf("failed to create agent profile: %w", err)
		}

		agent.User = *user
		return nil
	})
	if err != nil {
		return nil, err
	}

	return agent, nil
}

func (s *AdminService) ListAgents(filter *AdminAgentFilter) ([]models.Agent, int64, error) {
	query := s.db.Model(&models.Agent{})

	if filter.AgentType != nil {
		query = query.Where("agent_type = ?", *filter.AgentType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count agents: %w", err)
	}

	allowedSortFields := []string{"created_at", "agent_type", "status"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var agents []models.Agent
	if err := query.Preload("User").Find(&agents).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch agents: %w", err)
	}

	return agents, total, nil
}

func (s *AdminService) GetAgent(agentID uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	if err := s.db.Preload("User").First(&agent, "id = ?", agentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &agent, nil
}

// SetAgentStatus suspends or reinstates an agent. Suspension blocks new
// assignments; in-flight orders keep their assigned agent.
func (s *AdminService) SetAgentStatus(agentID uuid.UUID, status models.UserStatus) (*models.Agent, error) {
	if status != models.UserStatusActive && status != models.UserStatusSuspended {
		return nil, errors.New("invalid agent status")
	}

	var agent models.Agent
	if err := s.db.First(&agent, "id = ?", agentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	agent.Status = status
	if err := s.db.Save(&agent).Error; err != nil {
		return nil, fmt.Errorf("failed to update agent status: %w", err)
	}

	return &agent, nil
}

func (s *AdminService) ListUsers(params utils.PaginationParams, userType string) ([]models.User, int64, error) {
	query := s.db.Model(&models.User{})

	if userType != "" {
		query = query.Where("user_type = ?", userType)
	}
	if params.Search != "" {
		search := "%" + params.Search + "%"
		query = query.Where("username ILIKE ? OR email ILIKE ?", search, search)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	allowedSortFields := []string{"created_at", "username", "user_type"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}

	return users, total, nil
}
