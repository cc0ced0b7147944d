package menu

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/skip2/go-qrcode"
	"go.uber.org/fx"

	"github.com/Additional-Code/menudesk/internal/config"
	"github.com/Additional-Code/menudesk/internal/presentation/http/response"
	"github.com/Additional-Code/menudesk/pkg/errorbank"
)

// Module wires the menu link endpoints.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler serves printable links to a tenant's public menu.
type Handler struct {
	baseURL string
	size    int
}

func NewHandler(cfg config.Config) *Handler {
	return &Handler{baseURL: cfg.Menu.BaseURL, size: cfg.Menu.QRSize}
}

func Register(e *echo.Echo, h *Handler) {
	e.GET("/tenants/:tenant/menu/qr", h.qr)
}

// MenuURL is the customer-facing menu address for tenant.
func (h *Handler) MenuURL(tenant string) string {
	return fmt.Sprintf("%s/menu/%s", h.baseURL, url.PathEscape(tenant))
}

func (h *Handler) qr(c echo.Context) error {
	if h.baseURL == "" {
		return response.New(c).WithError(errorbank.Unprocessable("MENU_BASE_URL is not configured")).Build()
	}
	png, err := qrcode.Encode(h.MenuURL(c.Param("tenant")), qrcode.Medium, h.size)
	if err != nil {
		return response.New(c).WithError(errorbank.Internal("failed to render QR code", errorbank.WithCause(err))).Build()
	}
	c.Response().Header().Set("Cache-Control", "public, max-age=86400")
	return c.Blob(http.StatusOK, "image/png", png)
}
