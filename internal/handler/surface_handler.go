package handler

import (
	"compliance-navigator-be/internal/pkg/logger"
	"compliance-navigator-be/internal/service"
	internalWS "compliance-navigator-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// SurfaceHandler upgrades browser connections onto a workbench surface.
type SurfaceHandler struct {
	workbenches service.IWorkbenchService
	hub         *internalWS.Hub
	logger      logger.ILogger
}

func NewSurfaceHandler(workbenches service.IWorkbenchService, hub *internalWS.Hub, log logger.ILogger) *SurfaceHandler {
	return &SurfaceHandler{workbenches: workbenches, hub: hub, logger: log}
}

// RegisterRoutes is registered on the workbench route group.
func (h *SurfaceHandler) RegisterRoutes(r fiber.Router) {
	r.Get(":id/ws", h.ServeWs)
}

// ServeWs handles websocket requests from the browser.
func (h *SurfaceHandler) ServeWs(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid workbench id")
	}
	if _, err := h.workbenches.Surface(id); err != nil {
		return err
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("SurfaceHandler", "Starting surface session", map[string]interface{}{"workbench_id": id})
			internalWS.ServeWs(h.hub, conn, id)
			h.logger.Info("SurfaceHandler", "Surface session ended", map[string]interface{}{"workbench_id": id})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}
