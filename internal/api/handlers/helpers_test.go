package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ecotrack-api-server/internal/pickup"
	"ecotrack-api-server/internal/rewards"
	"ecotrack-api-server/internal/store"
	"ecotrack-api-server/internal/upload"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func TestRespondError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{store.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("load: %w", store.ErrDuplicate), http.StatusConflict},
		{pickup.ErrAlreadyTaken, http.StatusConflict},
		{pickup.ErrDriverUnavailable, http.StatusConflict},
		{pickup.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: bad address", pickup.ErrInvalidInput), http.StatusBadRequest},
		{rewards.ErrWeightTooHigh, http.StatusBadRequest},
		{rewards.ErrPointsOverflow, http.StatusBadRequest},
		{upload.ErrInvalidFolder, http.StatusBadRequest},
		{upload.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{upload.ErrUnsupportedType, http.StatusUnsupportedMediaType},
		{errors.New("mongo: connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		c, w := testContext(http.MethodGet, "/", "")
		respondError(c, tc.err)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
	}

	c, w := testContext(http.MethodGet, "/", "")
	respondError(c, errors.New("secret connection string leaked"))
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestBindOptionalJSON(t *testing.T) {
	var req CancelPickupRequest

	c, _ := testContext(http.MethodPost, "/", "")
	require.NoError(t, bindOptionalJSON(c, &req))
	assert.Empty(t, req.Reason)

	c, _ = testContext(http.MethodPost, "/", `{"reason":"moved away"}`)
	require.NoError(t, bindOptionalJSON(c, &req))
	assert.Equal(t, "moved away", req.Reason)

	c, _ = testContext(http.MethodPost, "/", `{"reason":`)
	assert.Error(t, bindOptionalJSON(c, &req))
}

func TestQueryLimit(t *testing.T) {
	for query, want := range map[string]int64{
		"":            defaultListLimit,
		"?limit=abc":  defaultListLimit,
		"?limit=-3":   defaultListLimit,
		"?limit=10":   10,
		"?limit=5000": maxListLimit,
	} {
		c, _ := testContext(http.MethodGet, "/"+query, "")
		assert.Equal(t, want, queryLimit(c), query)
	}
}

func TestQueryTime(t *testing.T) {
	c, _ := testContext(http.MethodGet, "/?from=2024-03-01", "")
	got, err := queryTime(c, "from", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got)

	c, _ = testContext(http.MethodGet, "/?to=2024-03-01", "")
	got, err = queryTime(c, "to", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 23, 59, 59, 999999999, time.UTC), got)

	c, _ = testContext(http.MethodGet, "/?to=2024-03-01T10:00:00Z", "")
	got, err = queryTime(c, "to", true)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Hour(), "timestamps are taken as given")

	c, _ = testContext(http.MethodGet, "/", "")
	got, err = queryTime(c, "from", false)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	c, _ = testContext(http.MethodGet, "/?from=yesterday", "")
	_, err = queryTime(c, "from", false)
	assert.Error(t, err)
}

func TestValidators(t *testing.T) {
	require.NoError(t, RegisterValidators())

	type payload struct {
		Name string `json:"name" binding:"required,notblank"`
		Role string `json:"role" binding:"omitempty,role"`
	}

	c, _ := testContext(http.MethodPost, "/", `{"name":"  ","role":"user"}`)
	var p payload
	err := c.ShouldBindJSON(&p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")

	c, _ = testContext(http.MethodPost, "/", `{"name":"Ann","role":"king"}`)
	assert.Error(t, c.ShouldBindJSON(&p))

	c, _ = testContext(http.MethodPost, "/", `{"name":"Ann","role":"driver"}`)
	assert.NoError(t, c.ShouldBindJSON(&p))
}
