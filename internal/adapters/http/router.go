package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dkeye/RoomChat/internal/adapters/signal"
	"github.com/dkeye/RoomChat/internal/app/orch"
	"github.com/dkeye/RoomChat/internal/config"
	"github.com/dkeye/RoomChat/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	sessionName     = "ChatSessions"
	maxHistoryLimit = 1000
)

// ClientTokenMiddleware gives every browser a stable token kept in the
// cookie session. It only labels connections in logs; each websocket still
// gets its own connection id.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(signal.ClientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			session.Set(signal.ClientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(signal.ClientTokenKey, token)
		c.Next()
	}
}

type roomResponse struct {
	ID      domain.RoomID `json:"id"`
	Name    string        `json:"name"`
	Members int           `json:"members"`
}

type createRoomRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, d *orch.Dispatcher) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": d.Connections()})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/rooms", func(c *gin.Context) {
		rooms := d.Catalog.List()
		out := make([]roomResponse, 0, len(rooms))
		for _, room := range rooms {
			out = append(out, roomResponse{ID: room.ID, Name: room.Name, Members: d.Registry.MemberCount(room.ID)})
		}
		c.JSON(http.StatusOK, gin.H{"rooms": out})
	})

	api.POST("/rooms", func(c *gin.Context) {
		var req createRoomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		raw := req.ID
		if raw == "" {
			raw = req.Name
		}
		id, ok := domain.ParseRoomID(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
			return
		}
		room := d.Catalog.Upsert(id, req.Name)
		c.JSON(http.StatusOK, roomResponse{ID: room.ID, Name: room.Name, Members: d.Registry.MemberCount(room.ID)})
	})

	api.DELETE("/rooms/:id", func(c *gin.Context) {
		if !d.Catalog.Remove(domain.RoomID(c.Param("id"))) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.Status(http.StatusNoContent)
	})

	api.GET("/rooms/:id/history", func(c *gin.Context) {
		id := domain.RoomID(c.Param("id"))
		limit := cfg.ReplayLimit
		if l := c.Query("limit"); l != "" {
			parsed, err := strconv.Atoi(l)
			if err != nil || parsed <= 0 || parsed > maxHistoryLimit {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = parsed
		}
		c.JSON(http.StatusOK, domain.NewRoomHistory(id, d.Store.History(id, limit)))
	})

	ctrl := signal.NewSignalWSController(d, signal.Options{
		ReadLimit:    cfg.ReadLimit,
		PingPeriod:   cfg.PingPeriod,
		PongWait:     cfg.PongWait,
		WriteWait:    cfg.WriteWait,
		SendBuffer:   cfg.SendBuffer,
		RateLimit:    cfg.RateLimit,
		RateInterval: cfg.RateInterval,
	})
	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("client", c.GetString(signal.ClientTokenKey)).Msg("ws endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	return r
}
