// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/powpool/business/web/errs"
	"github.com/ardanlabs/powpool/foundation/blockchain/coordinator"
	"github.com/ardanlabs/powpool/foundation/events"
	"github.com/ardanlabs/powpool/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of pool endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	Coord *coordinator.Coordinator
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	id, ch := h.Evts.SubscribeID(v.TraceID)
	defer h.Evts.Unsubscribe(id)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Status returns the chain head and the task currently being mined.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	st := h.Coord.Status()
	task := h.Coord.Task()

	resp := status{
		Status: st,
		Task:   toTask(task),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Blocks returns the most recently accepted blocks, newest first.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks := h.Coord.RecentBlocks()
	if len(blocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// BlockByNumber returns the accepted block at the specified height.
func (h Handlers) BlockByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	number, err := strconv.ParseUint(web.Param(r, "number"), 10, 64)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	blk, exists := h.Coord.QueryBlock(number)
	if !exists {
		return errs.NewNotFound("block %d is not in the recent window", number)
	}

	return web.Respond(ctx, w, blk, http.StatusOK)
}

// Workers returns the registered workers.
func (h Handlers) Workers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Coord.Workers(), http.StatusOK)
}
