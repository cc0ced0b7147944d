package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/menudesk/internal/alert"
	"github.com/Additional-Code/menudesk/internal/cache"
	"github.com/Additional-Code/menudesk/internal/config"
	"github.com/Additional-Code/menudesk/internal/database"
	"github.com/Additional-Code/menudesk/internal/feed"
	"github.com/Additional-Code/menudesk/internal/localstore"
	"github.com/Additional-Code/menudesk/internal/logger"
	"github.com/Additional-Code/menudesk/internal/messaging"
	"github.com/Additional-Code/menudesk/internal/notify"
	"github.com/Additional-Code/menudesk/internal/observability"
	"github.com/Additional-Code/menudesk/internal/printing"
	repositoryorder "github.com/Additional-Code/menudesk/internal/repository/order"
	grpcserver "github.com/Additional-Code/menudesk/internal/server/grpc"
	httpserver "github.com/Additional-Code/menudesk/internal/server/http"
	serviceorder "github.com/Additional-Code/menudesk/internal/service/order"
	transporthttp "github.com/Additional-Code/menudesk/internal/transport/http"
	"github.com/Additional-Code/menudesk/internal/worker"
	workerorder "github.com/Additional-Code/menudesk/internal/worker/order"
	workerreceipt "github.com/Additional-Code/menudesk/internal/worker/receipt"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	localstore.Module,
	repositoryorder.Module,
	serviceorder.Module,
)

// HTTP wires the HTTP and gRPC transports on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Feed polls the configured tenants and prints and announces new orders.
var Feed = fx.Options(
	Core,
	printing.Module,
	alert.Module,
	notify.Module,
	feed.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
	workerreceipt.Module,
)

// All runs the HTTP surface and the feeds in one process.
var All = fx.Options(
	HTTP,
	printing.Module,
	alert.Module,
	notify.Module,
	feed.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
