package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dkeye/RoomChat/internal/adapters/signal"
	"github.com/dkeye/RoomChat/internal/app"
	"github.com/dkeye/RoomChat/internal/app/orch"
	"github.com/dkeye/RoomChat/internal/config"
	"github.com/dkeye/RoomChat/internal/core"
	"github.com/dkeye/RoomChat/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *orch.Dispatcher) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Mode:        "test",
		StaticPath:  t.TempDir(),
		Secret:      "test-secret",
		ReplayLimit: 100,
	}
	d := orch.NewDispatcher(core.NewRegistry(), core.NewMessageStore(100), app.NewRoomCatalog(), app.SimplePolicy{}, orch.Options{})
	return SetupRouter(context.Background(), cfg, d), d
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type roomList struct {
	Rooms []roomResponse `json:"rooms"`
}

func TestRouter_ListRooms_Empty(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/rooms", "")

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"rooms":[]}`, w.Body.String())
}

func TestRouter_CreateAndListRooms(t *testing.T) {
	req := require.New(t)
	r, d := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/rooms", `{"id":"general","name":"General"}`)
	req.Equal(http.StatusOK, w.Code)

	d.Registry.Join("c1", "general", "Alice")
	d.Catalog.Ensure("random")

	w = do(r, http.MethodGet, "/api/rooms", "")
	req.Equal(http.StatusOK, w.Code)
	var got roomList
	req.NoError(json.Unmarshal(w.Body.Bytes(), &got))
	req.Equal([]roomResponse{
		{ID: "general", Name: "General", Members: 1},
		{ID: "random", Name: "random", Members: 0},
	}, got.Rooms)
}

func TestRouter_CreateRoom_Invalid(t *testing.T) {
	r, _ := newTestRouter(t)

	require.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/rooms", `{"name":"  "}`).Code)
	require.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/rooms", `nope`).Code)
}

func TestRouter_DeleteRoom(t *testing.T) {
	r, d := newTestRouter(t)
	d.Catalog.Ensure("old")

	require.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/api/rooms/old", "").Code)
	require.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/api/rooms/old", "").Code)
}

func TestRouter_History(t *testing.T) {
	req := require.New(t)
	r, d := newTestRouter(t)
	for _, c := range []string{"a", "b", "c"} {
		d.Store.Append("lobby", domain.Message{Username: "Alice", Content: c})
	}

	w := do(r, http.MethodGet, "/api/rooms/lobby/history?limit=2", "")
	req.Equal(http.StatusOK, w.Code)
	var hist domain.RoomHistory
	req.NoError(json.Unmarshal(w.Body.Bytes(), &hist))
	req.Equal(domain.RoomID("lobby"), hist.Room)
	req.Len(hist.Messages, 2)
	req.Equal("b", hist.Messages[0].Content)
	req.Equal(uint64(3), hist.Messages[1].Seq)

	req.Equal(http.StatusBadRequest, do(r, http.MethodGet, "/api/rooms/lobby/history?limit=0", "").Code)

	w = do(r, http.MethodGet, "/api/rooms/nowhere/history", "")
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"type":"room_history","room":"nowhere","messages":[]}`, w.Body.String())
}

func TestRouter_ClientTokenCookie(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok","connections":0}`, w.Body.String())
	require.Contains(t, w.Header().Get("Set-Cookie"), sessionName+"=")
}

func TestClientTokenMiddleware_StableAcrossRequests(t *testing.T) {
	req := require.New(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions(sessionName, cookie.NewStore([]byte("test-secret"))))
	r.Use(ClientTokenMiddleware())
	r.GET("/token", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(signal.ClientTokenKey)) })

	first := do(r, http.MethodGet, "/token", "")
	req.Equal(http.StatusOK, first.Code)
	_, err := uuid.Parse(first.Body.String())
	req.NoError(err)
	cookies := first.Result().Cookies()
	req.NotEmpty(cookies)

	again := httptest.NewRequest(http.MethodGet, "/token", nil)
	for _, ck := range cookies {
		again.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, again)
	req.Equal(first.Body.String(), w.Body.String())
	req.Empty(w.Header().Get("Set-Cookie"))
}
