// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthUserExists         = "auth.user_exists"
	KeyAuthLoginSuccess       = "auth.login_success"
	KeyAuthLogoutSuccess      = "auth.logout_success"
	KeyAuthRegisterSuccess    = "auth.register_success"

	// User Management
	KeyUserProfileUpdated = "user.profile_updated"
	KeyUserNotFound       = "user.not_found"
	KeyUserSuspended      = "user.suspended"

	// Products
	KeyProductCreated  = "product.created"
	KeyProductUpdated  = "product.updated"
	KeyProductNotFound = "product.not_found"

	// Orders
	KeyOrderCreated         = "order.created"
	KeyOrderNotFound        = "order.not_found"
	KeyOrderCancelled       = "order.cancelled"
	KeyOrderAssigned        = "order.assigned"
	KeyOrderStatusAdvanced  = "order.status_advanced"
	KeyOrderDepositRecorded = "order.deposit_recorded"
	KeyOrderReadyForPickup  = "order.ready_for_pickup"
	KeyOrderCompleted       = "order.completed"
	KeyOrderInvalidCode     = "order.invalid_code"
	KeyOrderInvalidStep     = "order.invalid_step"
	KeyOrderNotYours        = "order.not_yours"

	// Agents
	KeyAgentCreated   = "agent.created"
	KeyAgentNotFound  = "agent.not_found"
	KeyAgentSuspended = "agent.suspended"

	// Payments
	KeyPaymentSuccess  = "payment.success"
	KeyPaymentFailed   = "payment.failed"
	KeyPaymentRefunded = "payment.refunded"

	// Admin
	KeyAdminActionSuccess = "admin.action_success"
	KeyAdminAccessDenied  = "admin.access_denied"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"

	// File Upload
	KeyFileUploadSuccess = "file.upload_success"
	KeyFileUploadFailed  = "file.upload_failed"
	KeyFileInvalidType   = "file.invalid_type"
	KeyFileTooLarge      = "file.too_large"

	// Notifications
	KeyNotificationRead = "notification.read"
)
