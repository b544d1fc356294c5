package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"kglogistics/events"
	"kglogistics/middleware"
	"kglogistics/utils"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// EventsController streams invalidation events to the admin pages.
type EventsController struct {
	Hub    *events.Hub
	Logger *logrus.Entry
}

func NewEventsController(hub *events.Hub) *EventsController {
	return &EventsController{Hub: hub, Logger: utils.Logger("events")}
}

// Upgrade rejects plain HTTP requests to the websocket endpoint.
func (ec *EventsController) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals("wsUserID", middleware.UserID(c))
	return c.Next()
}

// Stream relays hub events to one connection until either side closes.
func (ec *EventsController) Stream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("wsUserID").(string)
		log := ec.Logger.WithField("user_id", userID)

		sub := ec.Hub.Subscribe()
		defer ec.Hub.Unsubscribe(sub)
		defer conn.Close()

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		log.Info("Event stream opened")
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()

		for {
			select {
			case msg, ok := <-sub.Send:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if !ok {
					_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					log.WithError(err).Debug("Event stream write failed")
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-closed:
				log.Info("Event stream closed")
				return
			}
		}
	})
}
