package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/post-voting/backend/internal/errs"
)

type publicError interface {
	error
	Public() string
}

// respondError maps vote outcomes to HTTP responses. Anything unclassified
// is logged and reported as a 500 without details.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.AlreadyVoted),
		errors.Is(err, errs.NoExistingVote),
		errors.Is(err, errs.UndoWindowExpired):
		status = http.StatusForbidden
	case errors.Is(err, errs.NotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.InvalidInput):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			"event", "http_request_failed",
			"module", "handlers",
			"layer", "transport",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err.Error(),
		)
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}

	msg := err.Error()
	var pub publicError
	if errors.As(err, &pub) {
		msg = pub.Public()
	}
	c.JSON(status, gin.H{"error": msg})
}
