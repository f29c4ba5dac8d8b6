package controller

import (
	"compliance-navigator-be/internal/dto"
	"compliance-navigator-be/internal/pkg/serverutils"
	"compliance-navigator-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IWorkbenchController interface {
	RegisterRoutes(r fiber.Router, extra ...func(fiber.Router))
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	SelectDocument(ctx *fiber.Ctx) error
	Ask(ctx *fiber.Ctx) error
	ActivateCitation(ctx *fiber.Ctx) error
	ReportRendererFailure(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type workbenchController struct {
	service service.IWorkbenchService
}

func NewWorkbenchController(service service.IWorkbenchService) IWorkbenchController {
	return &workbenchController{service: service}
}

// RegisterRoutes mounts the workbench API; extra registers additional routes
// on the same group (the surface socket).
func (c *workbenchController) RegisterRoutes(r fiber.Router, extra ...func(fiber.Router)) {
	h := r.Group("/workbench/v1")
	h.Post("", c.Create)
	h.Get(":id", c.Show)
	h.Delete(":id", c.Delete)
	h.Put(":id/document", c.SelectDocument)
	h.Post(":id/ask", c.Ask)
	h.Post(":id/citations/:ordinal/activate", c.ActivateCitation)
	h.Post(":id/renderer/failure", c.ReportRendererFailure)
	for _, register := range extra {
		register(h)
	}
}

func (c *workbenchController) Create(ctx *fiber.Ctx) error {
	res, err := c.service.Create(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create workbench", res))
}

func (c *workbenchController) Show(ctx *fiber.Ctx) error {
	id, err := workbenchID(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.Show(ctx.UserContext(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show workbench", res))
}

func (c *workbenchController) SelectDocument(ctx *fiber.Ctx) error {
	id, err := workbenchID(ctx)
	if err != nil {
		return err
	}
	var req dto.SelectDocumentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SelectDocument(ctx.UserContext(), id, &req)
	return reply(ctx, "Success select document", res, err)
}

func (c *workbenchController) Ask(ctx *fiber.Ctx) error {
	id, err := workbenchID(ctx)
	if err != nil {
		return err
	}
	var req dto.AskRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Ask(ctx.UserContext(), id, &req)
	return reply(ctx, "Success ask question", res, err)
}

func (c *workbenchController) ActivateCitation(ctx *fiber.Ctx) error {
	id, err := workbenchID(ctx)
	if err != nil {
		return err
	}
	ordinal, err := ctx.ParamsInt("ordinal")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid citation ordinal")
	}
	var req dto.ActivateCitationRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}

	res, err := c.service.ActivateCitation(ctx.UserContext(), id, ordinal, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success activate citation", res))
}

func (c *workbenchController) ReportRendererFailure(ctx *fiber.Ctx) error {
	id, err := workbenchID(ctx)
	if err != nil {
		return err
	}
	var req dto.RendererFailureRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.ReportRendererFailure(ctx.UserContext(), id, &req)
	return reply(ctx, "Success report renderer failure", res, err)
}

func (c *workbenchController) Delete(ctx *fiber.Ctx) error {
	id, err := workbenchID(ctx)
	if err != nil {
		return err
	}
	if err := c.service.Delete(ctx.UserContext(), id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete workbench", nil))
}

func workbenchID(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid workbench id")
	}
	return id, nil
}

// reply writes a workbench state. Errors that still carry state (an exhausted
// renderer chain, a failed answer) are sent with that state so the client can
// keep rendering it; a superseded request is answered with 202.
func reply(ctx *fiber.Ctx, message string, res *dto.WorkbenchResponse, err error) error {
	if err != nil {
		if res == nil {
			return err
		}
		status := serverutils.StatusFor(err)
		return ctx.Status(status).JSON(serverutils.ErrorResponseWithData(status, err.Error(), res))
	}
	if res.Superseded {
		return ctx.Status(fiber.StatusAccepted).JSON(serverutils.Response[*dto.WorkbenchResponse]{
			Success: true,
			Code:    fiber.StatusAccepted,
			Message: "Superseded by a newer request",
			Data:    res,
		})
	}
	return ctx.JSON(serverutils.SuccessResponse(message, res))
}
