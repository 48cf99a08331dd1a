package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/auth"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/service"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/storage"
)

func GetTimeline(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := auth.CurrentUser(c)
		entries, err := app.Entries().ListEntries(c.Request.Context(), user.ID)
		if err != nil {
			HandleError(c, app.Logger(), err, http.StatusInternalServerError, "Failed to fetch timeline")
			return
		}
		HandleSuccess(c, app.Logger(), entries, map[string]any{"count": len(entries)})
	}
}

func GetTimelineEntry(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := auth.CurrentUser(c)
		entry, err := app.Entries().GetEntry(c.Request.Context(), user.ID, c.Param("id"))
		if errors.Is(err, storage.ErrNotFound) {
			HandleError(c, app.Logger(), err, http.StatusNotFound, "Timeline entry not found")
			return
		}
		if err != nil {
			HandleError(c, app.Logger(), err, http.StatusInternalServerError, "Failed to fetch timeline entry")
			return
		}
		HandleSuccess(c, app.Logger(), entry, nil)
	}
}

func PostTimelineEntry(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := auth.CurrentUser(c)

		var req service.EntryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid request: title, event_date and entry_type required")
			return
		}
		if err := service.ValidateEntryRequest(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Timeline entry validation failed")
			return
		}

		entry, err := service.CreateEntry(c.Request.Context(), app.Entries(), user, &req)
		if err != nil {
			HandleError(c, app.Logger(), err, http.StatusInternalServerError, "Failed to save timeline entry")
			return
		}
		HandleCreated(c, app.Logger(), entry)
	}
}

func PutTimelineEntry(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := auth.CurrentUser(c)

		var req service.EntryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid request: title, event_date and entry_type required")
			return
		}
		if err := service.ValidateEntryRequest(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Timeline entry validation failed")
			return
		}

		entry, err := service.UpdateEntry(c.Request.Context(), app.Entries(), user, c.Param("id"), &req)
		switch {
		case errors.Is(err, service.ErrEntryIDMismatch):
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Entry id in body does not match the URL")
			return
		case errors.Is(err, storage.ErrNotFound):
			HandleError(c, app.Logger(), err, http.StatusNotFound, "Timeline entry not found")
			return
		case err != nil:
			HandleError(c, app.Logger(), err, http.StatusInternalServerError, "Failed to update timeline entry")
			return
		}
		HandleSuccess(c, app.Logger(), entry, nil)
	}
}

func DeleteTimelineEntry(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := auth.CurrentUser(c)
		err := app.Entries().DeleteEntry(c.Request.Context(), user.ID, c.Param("id"))
		if errors.Is(err, storage.ErrNotFound) {
			HandleError(c, app.Logger(), err, http.StatusNotFound, "Timeline entry not found")
			return
		}
		if err != nil {
			HandleError(c, app.Logger(), err, http.StatusInternalServerError, "Failed to delete timeline entry")
			return
		}
		c.Status(http.StatusNoContent)
	}
}
