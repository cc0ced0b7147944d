package http

import (
	"go.uber.org/fx"

	menutransport "github.com/Additional-Code/menudesk/internal/transport/http/menu"
	ordertransport "github.com/Additional-Code/menudesk/internal/transport/http/order"
	preferencetransport "github.com/Additional-Code/menudesk/internal/transport/http/preference"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	preferencetransport.Module,
	menutransport.Module,
)
