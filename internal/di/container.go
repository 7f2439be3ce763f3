package di

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Jeffmuturi45/EVENTIFY/internal/gateway"
	"github.com/Jeffmuturi45/EVENTIFY/internal/handler"
	"github.com/Jeffmuturi45/EVENTIFY/internal/inventory"
	"github.com/Jeffmuturi45/EVENTIFY/internal/notification"
	"github.com/Jeffmuturi45/EVENTIFY/internal/repository"
	"github.com/Jeffmuturi45/EVENTIFY/internal/service"
	"github.com/Jeffmuturi45/EVENTIFY/internal/worker"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/config"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/database"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/kafka"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/logger"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/middleware"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/redis"
)

// Container holds all dependencies for the ticketing service
type Container struct {
	// Infrastructure
	DB        *database.PostgresDB
	Redis     *redis.Client
	Publisher kafka.Publisher

	// Repositories
	EventRepo   repository.EventRepository
	BookingRepo repository.BookingRepository
	PaymentRepo repository.PaymentRepository

	// Domain components
	Ledger     *inventory.Ledger
	Gateway    gateway.PaymentGateway
	Sink       notification.Sink
	Reconciler *service.Reconciler

	// Services
	BookingService service.BookingService
	PaymentService service.PaymentService

	// Handlers
	HealthHandler   *handler.HealthHandler
	BookingHandler  *handler.BookingHandler
	PaymentHandler  *handler.PaymentHandler
	CallbackHandler *handler.CallbackHandler

	// Workers
	ExpiryWorker      *worker.ExpiryWorker
	PaymentPollWorker *worker.PaymentPollWorker
}

// ContainerConfig contains configuration for building the container.
// Redis and Publisher are optional.
type ContainerConfig struct {
	Config    *config.Config
	DB        *database.PostgresDB
	Redis     *redis.Client
	Publisher kafka.Publisher
	// Gateway overrides the M-Pesa gateway, used by tests
	Gateway gateway.PaymentGateway
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	appCfg := cfg.Config
	loc := appCfg.App.Location()

	c := &Container{
		DB:        cfg.DB,
		Redis:     cfg.Redis,
		Publisher: cfg.Publisher,
	}

	// Initialize repositories
	c.EventRepo = repository.NewPostgresEventRepository(c.DB.Pool())
	c.BookingRepo = repository.NewPostgresBookingRepository(c.DB.Pool())
	c.PaymentRepo = repository.NewPostgresPaymentRepository(c.DB.Pool())

	// Initialize domain components
	c.Ledger = inventory.NewLedger(c.EventRepo)
	c.Gateway = cfg.Gateway
	if c.Gateway == nil {
		var store gateway.TokenStore
		if c.Redis != nil {
			store = gateway.NewRedisTokenStore(c.Redis, gateway.DefaultTokenKey)
		}
		c.Gateway = gateway.NewMPesaGateway(gateway.MPesaConfigFrom(&appCfg.MPesa, loc), store)
	}
	if c.Publisher != nil {
		c.Sink = notification.NewKafkaSink(c.Publisher, appCfg.Kafka.TicketTopic, c.EventRepo, notification.NewTicketRenderer(loc))
	} else {
		c.Sink = notification.NewLogSink(logger.Get())
	}
	c.Reconciler = service.NewReconciler(c.PaymentRepo, c.Sink, time.Now)

	// Initialize services
	c.PaymentService = service.NewPaymentService(c.BookingRepo, c.PaymentRepo, c.EventRepo, c.Gateway, c.Reconciler,
		&service.PaymentServiceConfig{Location: loc, InitiationGrace: appCfg.MPesa.InitiationGrace})
	c.BookingService = service.NewBookingService(c.EventRepo, c.BookingRepo, c.Ledger, c.PaymentService,
		&service.BookingServiceConfig{
			ReservationWindow: appCfg.Booking.ReservationWindow,
			MinQuantity:       appCfg.Booking.MinQuantity,
			MaxQuantity:       appCfg.Booking.MaxQuantity,
		})

	// Initialize handlers
	checkers := map[string]handler.HealthChecker{"postgres": c.DB}
	if c.Redis != nil {
		checkers["redis"] = c.Redis
	}
	c.HealthHandler = handler.NewHealthHandler(appCfg.App.Name, checkers)
	c.BookingHandler = handler.NewBookingHandler(c.BookingService)
	c.PaymentHandler = handler.NewPaymentHandler(c.PaymentService)
	c.CallbackHandler = handler.NewCallbackHandler(c.PaymentService, appCfg.MPesa.CallbackSecret)

	// Initialize workers
	c.ExpiryWorker = worker.NewExpiryWorker(c.BookingRepo, &worker.ExpiryWorkerConfig{
		ScanInterval: appCfg.Worker.ExpiryInterval,
		BatchSize:    appCfg.Worker.ExpiryBatchSize,
	})
	c.PaymentPollWorker = worker.NewPaymentPollWorker(c.PaymentService, &worker.PaymentPollWorkerConfig{
		PollInterval: appCfg.Worker.PollInterval,
		MinAge:       appCfg.Worker.PollMinAge,
		BatchSize:    appCfg.Worker.PollBatchSize,
	})

	return c
}

// Router builds the HTTP router over the container's handlers
func (c *Container) Router(appCfg *config.Config) *gin.Engine {
	mode := gin.ReleaseMode
	if appCfg.App.Debug {
		mode = gin.DebugMode
	}
	return handler.NewRouter(&handler.RouterConfig{
		ServiceName: appCfg.OTel.ServiceName,
		Mode:        mode,
		JWT: &middleware.JWTConfig{
			Secret: appCfg.JWT.Secret,
			Issuer: appCfg.JWT.Issuer,
		},
		Logger:   logger.Get(),
		Health:   c.HealthHandler,
		Bookings: c.BookingHandler,
		Payments: c.PaymentHandler,
		Callback: c.CallbackHandler,
	})
}
