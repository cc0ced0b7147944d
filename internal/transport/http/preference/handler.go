package preference

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/Additional-Code/menudesk/internal/dto"
	"github.com/Additional-Code/menudesk/internal/localstore"
	"github.com/Additional-Code/menudesk/internal/presentation/http/response"
	"github.com/Additional-Code/menudesk/pkg/errorbank"
)

// Module wires operator preference endpoints.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler reads and writes operator preferences held in the local store.
type Handler struct {
	local *localstore.Store
}

func NewHandler(local *localstore.Store) *Handler {
	return &Handler{local: local}
}

func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/preferences")
	g.GET("/auto-print", h.getAutoPrint)
	g.PUT("/auto-print", h.setAutoPrint)
}

func (h *Handler) getAutoPrint(c echo.Context) error {
	enabled := h.local.AutoPrint(c.Request().Context())
	return response.New(c).WithData(map[string]bool{"enabled": enabled}).Build()
}

func (h *Handler) setAutoPrint(c echo.Context) error {
	b := response.New(c)

	var payload dto.AutoPrintRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.Enabled == nil {
		return b.WithError(errorbank.BadRequest("enabled is required")).Build()
	}
	if err := h.local.SetAutoPrint(c.Request().Context(), *payload.Enabled); err != nil {
		return b.WithError(errorbank.Internal("failed to save preference", errorbank.WithCause(err))).Build()
	}
	return b.WithData(map[string]bool{"enabled": *payload.Enabled}).Build()
}
