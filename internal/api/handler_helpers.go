package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/response"
)

func HandleError(c *gin.Context, logger internal.Logger, err error, status int, msg string) {
	requestID := c.GetString("request_id")
	logger.Errorf("[request_id=%s] %s: %v", requestID, msg, err)
	var resp response.APIResponse
	switch status {
	case http.StatusBadRequest:
		resp = response.BadRequest(msg + ": " + err.Error())
	case http.StatusNotFound:
		resp = response.NotFound(msg)
	case http.StatusConflict:
		resp = response.Conflict(msg)
	case http.StatusInternalServerError:
		resp = response.InternalError(msg)
	default:
		resp = response.NewAppError(status, msg)
	}
	c.JSON(status, resp)
}

// HandleAppError renders an *internal.AppError as is and anything else as a
// generic 500.
func HandleAppError(c *gin.Context, logger internal.Logger, err error) {
	var appErr *internal.AppError
	if !errors.As(err, &appErr) {
		HandleError(c, logger, err, http.StatusInternalServerError, "Unexpected error")
		return
	}
	requestID := c.GetString("request_id")
	if appErr.Code >= http.StatusInternalServerError {
		logger.Errorf("[request_id=%s] %s", requestID, appErr.Message)
	} else {
		logger.Warnf("[request_id=%s] %s", requestID, appErr.Message)
	}
	c.JSON(appErr.Code, response.FromAppError(appErr))
}

func HandleSuccess(c *gin.Context, logger internal.Logger, data interface{}, meta map[string]any) {
	respond(c, logger, http.StatusOK, data, meta)
}

func HandleCreated(c *gin.Context, logger internal.Logger, data interface{}) {
	respond(c, logger, http.StatusCreated, data, nil)
}

func respond(c *gin.Context, logger internal.Logger, status int, data interface{}, meta map[string]any) {
	requestID := c.GetString("request_id")
	logger.Infof("[request_id=%s] Success", requestID)
	c.JSON(status, response.Success(data, meta))
}
