package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/auth"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/service"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/storage"
)

func GetConnections(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := auth.CurrentUser(c)
		conns, err := service.ListConnections(c.Request.Context(), app.Connections(), user)
		if err != nil {
			HandleError(c, app.Logger(), err, http.StatusInternalServerError, "Failed to list connections")
			return
		}
		HandleSuccess(c, app.Logger(), conns, nil)
	}
}

func PutConnection(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := auth.CurrentUser(c)
		provider, ok := service.ResolveProvider(app.Syncer().Providers(), c.Param("provider"))
		if !ok {
			HandleError(c, app.Logger(), errors.New(c.Param("provider")), http.StatusNotFound, "No service found for provider: "+c.Param("provider"))
			return
		}

		var req service.ConnectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid request: access_token required")
			return
		}
		if err := service.ValidateConnectRequest(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Connection validation failed")
			return
		}

		conn, err := service.Connect(c.Request.Context(), app.Connections(), user, provider, &req)
		if err != nil {
			HandleError(c, app.Logger(), err, http.StatusInternalServerError, "Failed to save connection")
			return
		}
		HandleSuccess(c, app.Logger(), conn.Summary(), nil)
	}
}

func DeleteConnection(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := auth.CurrentUser(c)
		provider := c.Param("provider")
		err := service.Disconnect(c.Request.Context(), app.Connections(), user, provider)
		if errors.Is(err, storage.ErrNotFound) {
			HandleError(c, app.Logger(), err, http.StatusNotFound, "No connection for provider: "+provider)
			return
		}
		if err != nil {
			HandleError(c, app.Logger(), err, http.StatusInternalServerError, "Failed to disconnect")
			return
		}
		HandleSuccess(c, app.Logger(), gin.H{"provider": provider, "is_active": false}, nil)
	}
}

// PostSync runs a sync in-line and returns only the newly created entries.
func PostSync(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := auth.CurrentUser(c)
		created, err := app.Syncer().RunSync(c.Request.Context(), user.ID, c.Param("provider"))
		if err != nil {
			HandleAppError(c, app.Logger(), err)
			return
		}
		HandleSuccess(c, app.Logger(), created, map[string]any{"created": len(created)})
	}
}
