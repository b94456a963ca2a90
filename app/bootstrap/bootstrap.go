package bootstrap

import (
	"context"
	"log"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"
	"github.com/trackhub/backend-go/app/controllers"
	"github.com/trackhub/backend-go/app/middleware"
	"github.com/trackhub/backend-go/app/router"
	"github.com/trackhub/backend-go/internal/auth"
	"github.com/trackhub/backend-go/internal/config"
	"github.com/trackhub/backend-go/internal/database"
	"github.com/trackhub/backend-go/internal/kafka"
	"github.com/trackhub/backend-go/internal/knowledge"
	"github.com/trackhub/backend-go/internal/logger"
	"github.com/trackhub/backend-go/internal/search"
	"github.com/trackhub/backend-go/internal/services"
	"github.com/trackhub/backend-go/internal/storage"
	"go.uber.org/zap"
)

// App 持有需要在关闭时清理的资源
type App struct {
	cleanupTasks []func() error
}

// Init 初始化配置、日志、数据库等共享组件并完成路由装配
func Init() (*App, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	if err := logger.InitLogger(); err != nil {
		return nil, err
	}
	if err := config.LoadConfig(); err != nil {
		return nil, err
	}
	cfg := config.AppConfig

	app := &App{}
	app.cleanupTasks = append(app.cleanupTasks, func() error {
		logger.Sync()
		return nil
	})

	db, err := database.InitDB()
	if err != nil {
		return nil, err
	}
	app.cleanupTasks = append(app.cleanupTasks, database.CloseDB)

	redisClient, err := database.InitRedis()
	if err != nil {
		// 缓存与会话降级运行，检索仍可用
		logger.Warn("redis unavailable, cache and sessions degraded", zap.Error(err))
		redisClient = nil
	} else {
		app.cleanupTasks = append(app.cleanupTasks, database.CloseRedis)
	}

	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		if err := kafka.InitProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic); err != nil {
			logger.Warn("kafka unavailable, document events disabled", zap.Error(err))
		} else {
			app.cleanupTasks = append(app.cleanupTasks, func() error {
				if p := kafka.GetProducer(); p != nil {
					return p.Close()
				}
				return nil
			})
			startDocumentEventConsumer(cfg, app)
		}
	}

	// 知识库基础设施
	embedder := knowledge.NewOpenAIEmbedder(cfg.AI.OpenAIAPIKey, cfg.AI.EmbeddingModel)
	vectorStore, err := knowledge.NewMilvusVectorStore(knowledge.MilvusOptions{
		Address:          cfg.VectorStore.Milvus.Address,
		Username:         cfg.VectorStore.Milvus.Username,
		Password:         cfg.VectorStore.Milvus.Password,
		CollectionPrefix: cfg.VectorStore.Milvus.Collection,
		VectorSize:       cfg.VectorStore.Milvus.VectorSize,
		Distance:         cfg.VectorStore.Milvus.Distance,
		Database:         cfg.VectorStore.Milvus.Database,
		UseTLS:           cfg.VectorStore.Milvus.TLS,
	})
	if err != nil {
		logger.Warn("milvus unavailable, vector search disabled", zap.Error(err))
		vectorStore = &knowledge.NoopVectorStore{}
	}
	indexer, err := knowledge.NewElasticsearchIndexer(
		cfg.Elasticsearch.Addresses,
		cfg.Elasticsearch.Username,
		cfg.Elasticsearch.Password,
		cfg.Elasticsearch.APIKey,
		cfg.Elasticsearch.IndexPrefix,
	)
	if err != nil {
		logger.Warn("elasticsearch unavailable, fulltext indexing disabled", zap.Error(err))
		indexer = &knowledge.NoopFulltextIndexer{}
	}
	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	// 检索栈
	var cache *search.ResultCache
	if redisClient != nil {
		cache = search.NewResultCache(redisClient, cfg.Search.CacheTTL, logger.Logger)
	}
	adapters := []search.SourceAdapter{
		search.NewDatabaseSource(db, cfg.Search.SourceTimeout),
		search.NewRAGSource(db, embedder, vectorStore, indexer, cfg.Search.SourceTimeout),
		search.NewMCPSource(cfg.MCP.WebhookURL, cfg.MCP.AuthToken, cfg.Search.SourceTimeout),
	}
	orchestrator := search.NewOrchestrator(adapters, cache, search.Options{
		Weights: search.Weights{
			Database: cfg.Search.DatabaseWeight,
			RAG:      cfg.Search.RAGWeight,
			MCP:      cfg.Search.MCPWeight,
		},
		RequestTimeout: cfg.Search.RequestTimeout,
		ExcerptLength:  cfg.Search.ExcerptLength,
	}, logger.Logger)

	// 服务层
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.ExpiresIn)
	sessionService := services.NewSessionService(redisClient)
	userService := services.NewUserService(db, jwtService, sessionService)
	workspaceService := services.NewWorkspaceService(db)
	templateService := services.NewIssueTemplateService(db, workspaceService)
	issueService := services.NewIssueService(db, workspaceService, templateService)
	kbService := services.NewKnowledgeBaseService(db, workspaceService)
	documentService := services.NewDocumentService(db, workspaceService, kbService, objectStore, embedder, vectorStore, indexer)
	chatService := services.NewAIChatService(db, cfg.AI, kbService, embedder, vectorStore)
	searchService := services.NewSearchService(orchestrator, workspaceService)

	authFilter := middleware.NewAuthMiddleware(jwtService, sessionService)
	router.Init(router.Controllers{
		Auth:          controllers.NewAuthController(userService),
		Workspace:     controllers.NewWorkspaceController(workspaceService),
		Issue:         controllers.NewIssueController(issueService),
		Template:      controllers.NewTemplateController(templateService),
		KnowledgeBase: controllers.NewKnowledgeBaseController(kbService),
		Document:      controllers.NewDocumentController(documentService),
		Chat:          controllers.NewChatController(chatService),
		Search:        controllers.NewSearchController(searchService),
	}, authFilter)

	logger.Info("application bootstrapped",
		zap.Bool("redis", redisClient != nil),
		zap.Bool("vector_store", vectorStore.Ready()),
		zap.Bool("object_store", objectStore.Available()))

	return app, nil
}

// startDocumentEventConsumer 订阅文档事件作为审计日志
func startDocumentEventConsumer(cfg *config.Config, app *App) {
	err := kafka.InitConsumer(cfg.Kafka.Brokers, "trackhub-backend", []string{cfg.Kafka.Topic})
	if err != nil {
		logger.Warn("kafka consumer init failed, event audit disabled", zap.Error(err))
		return
	}

	consumer := kafka.GetConsumer()
	consumer.RegisterHandler(cfg.Kafka.Topic, func(ctx context.Context, message *sarama.ConsumerMessage) error {
		event, err := kafka.ParseDocumentEvent(message.Value)
		if err != nil {
			// 非法消息直接跳过，避免卡住分区
			logger.Warn("unparseable document event", zap.Error(err))
			return nil
		}
		logger.Info("document event",
			zap.String("event", event.Event),
			zap.Uint("document_id", event.DocumentID),
			zap.Uint("kb_id", event.KnowledgeBaseID),
			zap.Uint("workspace_id", event.WorkspaceID),
			zap.Int("chunk_count", event.ChunkCount))
		return nil
	})
	app.cleanupTasks = append(app.cleanupTasks, consumer.Close)
}

// Shutdown 逆序执行清理任务
func (a *App) Shutdown() {
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			log.Printf("cleanup task failed: %v", err)
		}
	}
}
