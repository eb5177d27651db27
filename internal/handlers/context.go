// internal/handlers/context.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sokoni/sokoni-backend/internal/models"
	"github.com/sokoni/sokoni-backend/internal/services"
	"github.com/sokoni/sokoni-backend/internal/utils"
)

// actorFromContext rebuilds the authenticated principal from the claims the
// auth middleware stashed on the request.
func actorFromContext(c *gin.Context) (services.Actor, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		return services.Actor{}, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return services.Actor{}, false
	}

	actor := services.Actor{UserID: userID}

	if userType, ok := utils.GetUserTypeFromContext(c); ok {
		actor.UserType = models.UserType(userType)
	}
	if agentIDStr, ok := utils.GetAgentIDFromContext(c); ok {
		if agentID, err := uuid.Parse(agentIDStr); err == nil {
			actor.AgentID = &agentID
		}
	}
	if agentType, ok := utils.GetAgentTypeFromContext(c); ok {
		actor.AgentRole = models.AgentRole(agentType)
	}

	return actor, true
}

func userIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}
