package controller

import (
	"strconv"

	"compliance-navigator-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IRelayController interface {
	RegisterRoutes(r fiber.Router)
	Fetch(ctx *fiber.Ctx) error
}

type relayController struct {
	service service.IRelayService
	path    string
}

// NewRelayController mounts the relay at path, relative to the router it is
// registered on.
func NewRelayController(service service.IRelayService, path string) IRelayController {
	return &relayController{service: service, path: path}
}

func (c *relayController) RegisterRoutes(r fiber.Router) {
	r.Get(c.path, c.Fetch)
}

// Fetch streams the upstream bytes back with the upstream status and content
// type, so browser viewers can load third-party documents same-origin.
func (c *relayController) Fetch(ctx *fiber.Ctx) error {
	target := ctx.Query("url")
	if target == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing url query parameter")
	}

	res, err := c.service.Fetch(ctx.UserContext(), target, ctx.IP())
	if err != nil {
		return err
	}

	if res.ContentType != "" {
		ctx.Set(fiber.HeaderContentType, res.ContentType)
	}
	ctx.Set(fiber.HeaderContentLength, strconv.Itoa(len(res.Body)))
	ctx.Set(fiber.HeaderCacheControl, "private, max-age=300")
	if res.Cached {
		ctx.Set("X-Relay-Cache", "HIT")
	} else {
		ctx.Set("X-Relay-Cache", "MISS")
	}
	return ctx.Status(res.Status).Send(res.Body)
}
