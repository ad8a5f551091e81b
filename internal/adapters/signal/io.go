package signal

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/RoomChat/internal/app/orch"
	"github.com/dkeye/RoomChat/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cid domain.ConnID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(cid)).Msg("readPump closing")
		ctl.limiter.Forget(cid)
		// ctx may already be cancelled on shutdown; the dispatcher reports ErrStopped then.
		if err := ctl.Orch.Submit(context.Background(), orch.Event{Kind: orch.EventDisconnect, Conn: cid}); err != nil && !errors.Is(err, orch.ErrStopped) {
			log.Error().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("submit disconnect")
		}
		c.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			logReadError(cid, err)
			return
		}
		ctl.handleSignal(ctx, cid, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, cid domain.ConnID, data []byte) {
	ev, err := decodeEvent(cid, data)
	if err == nil && rateLimited(ev.Kind) && !ctl.limiter.Allow(cid) {
		err = ErrRateLimited
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("rejected frame")
		ev = orch.Event{Kind: orch.EventFault, Conn: cid, Err: err}
	}
	if err := ctl.Orch.Submit(ctx, ev); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("submit event")
	}
}

func logReadError(cid domain.ConnID, err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("frame exceeded read limit")
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		log.Info().Str("module", "signal").Str("conn", string(cid)).Msg("client disconnected")
	default:
		log.Error().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("readPump read error")
	}
}
