package bootstrap

import (
	"context"
	"fmt"
	"time"

	"compliance-navigator-be/internal/config"
	"compliance-navigator-be/internal/controller"
	"compliance-navigator-be/internal/handler"
	"compliance-navigator-be/internal/model"
	"compliance-navigator-be/internal/pkg/logger"
	"compliance-navigator-be/internal/repository/memory"
	"compliance-navigator-be/internal/service"
	"compliance-navigator-be/internal/websocket"
	"compliance-navigator-be/pkg/answer"
	"compliance-navigator-be/pkg/clauseindex"
	"compliance-navigator-be/pkg/corpus"
	"compliance-navigator-be/pkg/llm/factory"
	"compliance-navigator-be/pkg/proxy"
	"compliance-navigator-be/pkg/renderer"

	pktNats "compliance-navigator-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	RelayController     controller.IRelayController
	DocumentController  controller.IDocumentController
	WorkbenchController controller.IWorkbenchController

	// WebSockets
	SurfaceHandler *handler.SurfaceHandler
	WebSocketHub   *websocket.Hub

	// Background Services (Exposed for main.go to run)
	AuditService *service.AuditService

	Logger logger.ILogger

	closers []func()
}

// NewContainer wires every dependency. NATS and Redis are optional: when they
// are not configured or unreachable the app runs without event publishing or
// cross-instance fan-out.
func NewContainer(cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	c := &Container{Logger: sysLogger}

	catalog, err := corpus.LoadFile(cfg.Corpus.DocumentsFile)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	sysLogger.Info("Bootstrap", "Corpus loaded", map[string]interface{}{"documents": len(catalog.List()), "file": cfg.Corpus.DocumentsFile})

	answers, err := NewAnswerService(cfg.Answer)
	if err != nil {
		return nil, err
	}

	// Renderer event bus: browser events in, renderer strategies out.
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	c.closers = append(c.closers, func() { pubSub.Close() })

	// NATS
	var natsPub *pktNats.Publisher
	var natsSub *pktNats.Subscriber
	if cfg.App.NatsURL != "" {
		if natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL, sysLogger); err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
		} else {
			c.closers = append(c.closers, natsPub.Close)
		}
		if natsSub, err = pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger); err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to NATS Subscriber", map[string]interface{}{"error": err.Error()})
		} else {
			c.closers = append(c.closers, natsSub.Close)
		}
	}

	// Redis
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to Redis, fan-out disabled", map[string]interface{}{"error": err.Error()})
			rdb.Close()
			rdb = nil
		} else {
			c.closers = append(c.closers, func() { rdb.Close() })
		}
		cancel()
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger(cfg.App.SurfaceLogFilePath)
	wsHub := websocket.NewHub(rdb, pubSub, wsLogger)
	go wsHub.Run()
	c.closers = append(c.closers, wsHub.Close)
	c.WebSocketHub = wsHub

	workbenchRepo := memory.NewWorkbenchRepository(cfg.Workbench.IdleTTL, func(wb *model.Workbench) {
		wsHub.RemoveSurface(wb.ID)
		sysLogger.Info("Bootstrap", "Workbench evicted", map[string]interface{}{"workbench": wb.ID})
	})

	deps := service.WorkbenchDeps{
		Repo:           workbenchRepo,
		Hub:            wsHub,
		Catalog:        catalog,
		Loader:         proxy.NewClient(cfg.Relay.ClientURL, cfg.Relay.Timeout),
		Answers:        answers,
		Indexer:        clauseindex.NewBuilder(sysLogger, cfg.Workbench.IndexCacheTTL),
		RendererEvents: pubSub,
		SDKLoader:      renderer.NewSDKLoader(cfg.Renderer.EmbedSDKURL, cfg.Renderer.EmbedReadyWait),
		Renderer:       cfg.Renderer,
		Answer:         cfg.Answer,
		Logger:         sysLogger,
	}
	if natsPub != nil {
		deps.Events = natsPub
	}

	relayService := service.NewRelayService(cfg.Relay, sysLogger)
	documentService := service.NewDocumentService(catalog, cfg.Relay.Path)
	workbenchService := service.NewWorkbenchService(deps)

	if natsSub != nil {
		auditLogger := logger.NewIsolatedLogger(cfg.App.AuditLogFilePath)
		c.AuditService = service.NewAuditService(natsSub, auditLogger, sysLogger)
	}

	c.RelayController = controller.NewRelayController(relayService, cfg.Relay.Path)
	c.DocumentController = controller.NewDocumentController(documentService)
	c.WorkbenchController = controller.NewWorkbenchController(workbenchService)
	c.SurfaceHandler = handler.NewSurfaceHandler(workbenchService, wsHub, wsLogger)

	return c, nil
}

// NewAnswerService picks the answer backend named by cfg.Provider.
func NewAnswerService(cfg config.AnswerConfig) (answer.Service, error) {
	switch cfg.Provider {
	case "llm":
		provider, err := factory.NewLLMProvider(cfg.LLMProvider, cfg.LLMModel, cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("init llm provider: %w", err)
		}
		return &answer.LLMService{Provider: provider}, nil
	case "http", "":
		return answer.NewHTTPService(cfg.ServiceURL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown answer provider %q", cfg.Provider)
	}
}

// Close releases background resources in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
