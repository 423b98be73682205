package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"
	"huddle/internal/core/services"
	"huddle/internal/infrastructure/middleware"
	"huddle/internal/infrastructure/repositories/memory"
	"huddle/internal/infrastructure/signal"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRouter(t *testing.T) (*gin.Engine, ports.ConferenceRepository, ports.RoomService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t).Sugar()

	repo := memory.NewMemoryConferenceRepository()
	registry := services.NewRegistry(nil)
	broadcaster := services.NewBroadcaster(signal.Encoders(), nil, logger)
	rooms := services.NewRoomService(registry, broadcaster, repo, nil, nil, logger)

	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(logger))
	api := router.Group("/api/v1")
	NewConferenceHandler(repo, rooms).SetupRoutes(api)
	NewAuthHandler(services.NewAuthService("test-secret", time.Hour), time.Hour).SetupRoutes(api)
	return router, repo, rooms
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestConferenceLifecycleOverHTTP(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/conferences", map[string]interface{}{
		"id":              "daily",
		"name":            "Daily Standup",
		"maxParticipants": 8,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Duplicate id conflicts.
	w = doJSON(t, router, http.MethodPost, "/api/v1/conferences", map[string]interface{}{
		"id":   "daily",
		"name": "Another",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/conferences/daily", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Conference domain.Conference `json:"conference"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Daily Standup", resp.Conference.Name)
	assert.Equal(t, 8, resp.Conference.MaxParticipants)

	w = doJSON(t, router, http.MethodGet, "/api/v1/conferences/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/conferences/daily", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/conferences/daily", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConferenceCreateValidation(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/conferences", map[string]interface{}{
		"name": "",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/conferences", map[string]interface{}{
		"id":   "bad id!",
		"name": "Weekly",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLockPropagatesToJoinGate(t *testing.T) {
	router, _, rooms := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/conferences", map[string]interface{}{
		"id":   "daily",
		"name": "Daily Standup",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPatch, "/api/v1/conferences/daily/lock", map[string]interface{}{
		"locked": true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// A join against the locked conference is rejected at the gate.
	client := &gateProbe{}
	err := rooms.Join(context.Background(), client, domain.JoinRequest{
		RoomID: "daily", UserID: "alice", DisplayName: "Alice",
	})
	assert.ErrorIs(t, err, domain.ErrRoomLocked)

	w = doJSON(t, router, http.MethodPatch, "/api/v1/conferences/daily/lock", map[string]interface{}{
		"locked": false,
	})
	require.Equal(t, http.StatusOK, w.Code)

	assert.NoError(t, rooms.Join(context.Background(), client, domain.JoinRequest{
		RoomID: "daily", UserID: "alice", DisplayName: "Alice",
	}))
}

func TestIssueToken(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/auth/token", map[string]interface{}{
		"displayName": "Alice",
		"isAdmin":     true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["access_token"])
	assert.NotEmpty(t, resp["user_id"])

	w = doJSON(t, router, http.MethodPost, "/api/v1/auth/token", map[string]interface{}{
		"displayName": "",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// gateProbe is the minimal client needed to exercise the join gate.
type gateProbe struct {
	roomID domain.RoomID
	userID domain.UserID
}

func (c *gateProbe) UserID() domain.UserID           { return c.userID }
func (c *gateProbe) RoomID() domain.RoomID           { return c.roomID }
func (c *gateProbe) DeviceClass() domain.DeviceClass { return domain.DeviceDesktop }
func (c *gateProbe) Bind(roomID domain.RoomID, userID domain.UserID) {
	c.roomID, c.userID = roomID, userID
}
func (c *gateProbe) Unbind()                       { c.roomID, c.userID = "", "" }
func (c *gateProbe) Send(ev *domain.Event) error   { return nil }
func (c *gateProbe) SendEncoded(data []byte) error { return nil }
func (c *gateProbe) Alive() bool                   { return true }
func (c *gateProbe) Close(reason string)           {}

func TestAdminGateOnDestructiveRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t).Sugar()

	repo := memory.NewMemoryConferenceRepository()
	registry := services.NewRegistry(nil)
	broadcaster := services.NewBroadcaster(signal.Encoders(), nil, logger)
	rooms := services.NewRoomService(registry, broadcaster, repo, nil, nil, logger)
	auth := services.NewAuthService("test-secret", time.Hour)

	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(logger))
	secured := router.Group("/api/v1", middleware.AuthMiddleware(auth))
	NewConferenceHandler(repo, rooms).SetupRoutes(secured, middleware.AdminMiddleware())

	memberToken, err := auth.GenerateToken("bob", "Bob", false)
	require.NoError(t, err)
	adminToken, err := auth.GenerateToken("alice", "Alice", true)
	require.NoError(t, err)

	authed := func(method, path, token string, body interface{}) *httptest.ResponseRecorder {
		var reader *bytes.Reader
		if body != nil {
			data, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		} else {
			reader = bytes.NewReader(nil)
		}
		req, err := http.NewRequest(method, path, reader)
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	// No token at all is rejected before the handler runs.
	w := doJSON(t, router, http.MethodGet, "/api/v1/conferences", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = authed(http.MethodPost, "/api/v1/conferences", memberToken, map[string]interface{}{
		"id":   "daily",
		"name": "Daily Standup",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Members can read but not terminate.
	w = authed(http.MethodGet, "/api/v1/conferences/daily", memberToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = authed(http.MethodDelete, "/api/v1/conferences/daily", memberToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = authed(http.MethodDelete, "/api/v1/conferences/daily", adminToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
