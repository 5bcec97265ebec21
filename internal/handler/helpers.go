package handler

import (
	"errors"
	"net/http"

	"retailpos/internal/apperr"
	"retailpos/internal/middleware"
	"retailpos/internal/model"
	"retailpos/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Roles allowed to move stock by hand or receive supplier invoices.
var stockManagers = []string{model.RoleAdmin, model.RoleManager, model.RoleInventoryManager}

// writeError maps a core error kind onto status and code. Storage failures
// and constraint violations never leak driver detail to the terminal.
func writeError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		_ = c.Error(err)
		msg = "Internal error, please retry"
	case errors.Is(err, apperr.ErrDuplicateIdentifier):
		// carries the driver's constraint text
		_ = c.Error(err)
		msg = apperr.ErrDuplicateIdentifier.Error()
	}
	c.JSON(status, response.ErrorWithCode(status, apperr.Code(err), msg))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, response.ErrorWithCode(http.StatusBadRequest, apperr.Code(apperr.ErrInvalidInput), msg))
}

// currentActor returns the actor set by the auth middleware or aborts.
func currentActor(c *gin.Context) (model.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
	}
	return actor, ok
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// optionalUUIDQuery parses an optional query parameter; ok is false after a
// 400 has been written.
func optionalUUIDQuery(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(c, "Invalid "+name)
		return nil, false
	}
	return &id, true
}

// Authorizer builds the role gate placed in front of every route.
type Authorizer interface {
	RequireRole(allowedRoles ...string) gin.HandlerFunc
}
