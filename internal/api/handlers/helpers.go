package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"ecotrack-api-server/internal/pickup"
	"ecotrack-api-server/internal/rewards"
	"ecotrack-api-server/internal/store"
	"ecotrack-api-server/internal/upload"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// respondError maps domain errors to HTTP status codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, pickup.ErrInvalidTransition),
		errors.Is(err, pickup.ErrAlreadyTaken),
		errors.Is(err, pickup.ErrDriverUnavailable):
		status = http.StatusConflict
	case errors.Is(err, pickup.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, pickup.ErrInvalidInput),
		errors.Is(err, rewards.ErrInvalidWeight),
		errors.Is(err, rewards.ErrWeightTooHigh),
		errors.Is(err, rewards.ErrUnknownWasteType),
		errors.Is(err, rewards.ErrPointsOverflow),
		errors.Is(err, upload.ErrInvalidFolder):
		status = http.StatusBadRequest
	case errors.Is(err, upload.ErrTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, upload.ErrUnsupportedType):
		status = http.StatusUnsupportedMediaType
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func queryLimit(c *gin.Context) int64 {
	limit, err := strconv.ParseInt(c.Query("limit"), 10, 64)
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// queryTime accepts RFC 3339 timestamps or plain dates. With endOfDay a plain
// date means the last instant of that day, so an inclusive upper bound keeps
// everything recorded on it.
func queryTime(c *gin.Context, key string, endOfDay bool) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}
