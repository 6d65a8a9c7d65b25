package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"storefront/apperr"
	"storefront/middlewares"
)

// respondError writes err as {"error": message}. Internal causes are logged
// and never sent to the client.
func respondError(c *gin.Context, err error) {
	appErr := apperr.From(err)
	if appErr.Kind == apperr.KindInternal {
		log.Error().
			Err(err).
			Str("request_id", middlewares.GetRequestID(c)).
			Str("path", c.Request.URL.Path).
			Msg(appErr.Message)
		_ = c.Error(err)
	}
	c.JSON(appErr.Status(), gin.H{"error": appErr.Message})
}

// bindJSON decodes the request body into obj, answering 400 on failure.
func bindJSON(c *gin.Context, obj any) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}

	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, io.EOF):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data provided"})
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
	}
	return false
}

func idParam(c *gin.Context, name, message string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": message})
		return 0, false
	}
	return id, true
}

func currentUser(c *gin.Context) (int, bool) {
	userID, ok := middlewares.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
	}
	return userID, ok
}
