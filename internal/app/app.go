package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httpapi "github.com/shestoi/providerhub/internal/api/http"
	"github.com/shestoi/providerhub/internal/client/push"
	"github.com/shestoi/providerhub/internal/client/supabase"
	"github.com/shestoi/providerhub/internal/config"
	"github.com/shestoi/providerhub/internal/deeplink"
	eventkafka "github.com/shestoi/providerhub/internal/event/kafka"
	"github.com/shestoi/providerhub/internal/metrics"
	"github.com/shestoi/providerhub/internal/repository"
	"github.com/shestoi/providerhub/internal/repository/memory"
	"github.com/shestoi/providerhub/internal/repository/postgres"
	redisrepo "github.com/shestoi/providerhub/internal/repository/redis"
	supabaserepo "github.com/shestoi/providerhub/internal/repository/supabase"
	"github.com/shestoi/providerhub/internal/service"
	platformhealth "github.com/shestoi/providerhub/platform/health/http"
	platformlogging "github.com/shestoi/providerhub/platform/logging"
	platformobservability "github.com/shestoi/providerhub/platform/observability"
	platformshutdown "github.com/shestoi/providerhub/platform/shutdown"
	"github.com/shestoi/providerhub/platform/tasks"
)

const serviceName = "providerhub"

// App содержит все зависимости для запуска и корректного shutdown providerhub
type App struct {
	logger      *zap.Logger
	httpServer  *http.Server
	shutdownMgr *platformshutdown.Manager
	consumers   []*eventkafka.Consumer
	wg          sync.WaitGroup
}

// stores хранилища, выбранные конфигурацией
type stores struct {
	tokens        repository.TokenRepository
	notifications repository.NotificationRepository
	session       repository.SessionRepository
	processed     repository.ProcessedOrdersStore
	checks        map[string]platformhealth.Check
}

// Build создаёт и настраивает все зависимости providerhub.
// Ресурсы регистрируются в shutdown manager сразу после создания,
// при ошибке сборки уже открытые ресурсы закрываются.
func Build(cfg config.Config, logger *zap.Logger) (*App, error) {
	logger.Info("Building providerhub", zap.String("http_addr", cfg.HTTPAddr))

	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)
	app, err := build(cfg, logger, shutdownMgr)
	if err != nil {
		shutdownMgr.Shutdown()
		return nil, err
	}
	return app, nil
}

func build(cfg config.Config, logger *zap.Logger, shutdownMgr *platformshutdown.Manager) (*App, error) {
	// OpenTelemetry: при OTEL_ENABLED=false ставятся noop providers
	otelShutdown, err := platformobservability.Init(context.Background(), platformobservability.Config{
		Enabled:               cfg.OTelEnabled,
		OTLPEndpoint:          cfg.OTelEndpoint,
		SamplingRatio:         cfg.OTelSamplingRatio,
		ServiceName:           serviceName,
		DeploymentEnvironment: string(cfg.AppEnv),
	})
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}
	shutdownMgr.Add("otel", otelShutdown)

	st, err := buildStores(cfg, logger, shutdownMgr)
	if err != nil {
		return nil, err
	}

	m := metrics.New()

	// Scope фоновых задач живёт до shutdown, закрывается после HTTP сервера и consumers
	scope := tasks.NewScope(logger.Named("tasks"))
	shutdownMgr.Add("task_scope", scope.Close)

	var source service.TokenSource
	if cfg.PushTokenURL != "" {
		source = push.NewHTTPTokenSource(logger, cfg.PushTokenURL)
	} else {
		logger.Warn("PUSH_TOKEN_URL is empty, using static push token")
		source = push.NewStaticTokenSource(cfg.PushStaticToken)
	}

	tokenService := service.NewTokenService(logger.Named("token"), st.tokens, st.session, source, scope, m)
	notificationService := service.NewNotificationService(logger.Named("notification"), st.notifications, st.session, m)

	payments := deeplink.NewHandler(logger.Named("deeplink"), deeplink.Config{
		Scheme: cfg.DeepLinkScheme,
		Host:   cfg.DeepLinkHost,
	}, st.processed, deeplink.NewResultHub(), m)

	var consumers []*eventkafka.Consumer
	if cfg.Kafka.Enabled {
		consumers = buildConsumers(cfg, logger, shutdownMgr, tokenService, notificationService)
	} else {
		logger.Info("Kafka disabled, push events accepted over HTTP only")
	}

	handler := httpapi.NewHandler(logger, tokenService, payments)
	router := httpapi.NewRouter(handler, httpapi.RouterConfig{
		ServiceName:   serviceName,
		Logger:        logger,
		Metrics:       m,
		HealthChecks:  st.checks,
		HealthTimeout: 2 * time.Second,
	})

	// WriteTimeout не задан: /payments/events держит соединение открытым
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	httpServer.RegisterOnShutdown(handler.StopStreams)
	shutdownMgr.Add("http_server", platformshutdown.ShutdownHTTPServer(httpServer))

	return &App{
		logger:      logger,
		httpServer:  httpServer,
		shutdownMgr: shutdownMgr,
		consumers:   consumers,
	}, nil
}

func buildStores(cfg config.Config, logger *zap.Logger, shutdownMgr *platformshutdown.Manager) (stores, error) {
	st := stores{checks: map[string]platformhealth.Check{}}

	switch cfg.TokenStore {
	case config.StorePostgres:
		pool, err := connectPostgres(cfg, logger)
		if err != nil {
			return stores{}, err
		}
		shutdownMgr.Add("postgres_pool", platformshutdown.ClosePool(pool))

		st.tokens = postgres.NewTokenRepository(pool)
		st.notifications = postgres.NewNotificationRepository(pool)
		st.checks["postgres"] = pool.Ping

	case config.StoreSupabase:
		client, err := supabase.New(supabase.Config{URL: cfg.SupabaseURL, APIKey: cfg.SupabaseAPIKey})
		if err != nil {
			return stores{}, fmt.Errorf("create supabase client: %w", err)
		}
		logger.Info("Using Supabase token store", zap.String("url", cfg.SupabaseURL))

		st.tokens = supabaserepo.NewTokenRepository(client)
		st.notifications = supabaserepo.NewNotificationRepository(client)
		st.checks["supabase"] = client.Ping

	default:
		logger.Warn("Using in-memory token store, tokens are lost on restart")
		st.tokens = memory.NewTokenRepository()
		st.notifications = memory.NewNotificationRepository()
	}

	var redisClient *redis.Client
	if cfg.SessionStore == config.StoreRedis || cfg.ProcessedOrdersStore == config.StoreRedis {
		client, err := connectRedis(cfg, logger)
		if err != nil {
			return stores{}, err
		}
		shutdownMgr.Add("redis_client", platformshutdown.CloseWithError(client))
		st.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		redisClient = client
	}

	if cfg.SessionStore == config.StoreRedis {
		st.session = redisrepo.NewSessionRepository(redisClient, cfg.PrefsScope, logger)
	} else {
		st.session = memory.NewSessionRepository()
	}

	if cfg.ProcessedOrdersStore == config.StoreRedis {
		st.processed = redisrepo.NewProcessedOrdersStore(redisClient, cfg.PrefsScope, logger)
	} else {
		st.processed = memory.NewProcessedOrdersStore()
	}

	return st, nil
}

func connectPostgres(cfg config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	// Подключаемся к PostgreSQL
	logger.Info("Connecting to PostgreSQL")
	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("PostgreSQL connection established")

	// Применяем миграции
	logger.Info("Applying database migrations", zap.String("dir", cfg.MigrationsDir))
	db, err := goose.OpenDBWithDriver("pgx", cfg.PostgresDSN)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open migrations db: %w", err)
	}
	defer db.Close()

	if err := goose.Up(db, cfg.MigrationsDir); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	return pool, nil
}

func connectRedis(cfg config.Config, logger *zap.Logger) (*redis.Client, error) {
	// Подключаемся к Redis
	logger.Info("Connecting to Redis", zap.String("addr", cfg.RedisAddr))
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("Redis connection established")

	return client, nil
}

func buildConsumers(
	cfg config.Config,
	logger *zap.Logger,
	shutdownMgr *platformshutdown.Manager,
	tokens *service.TokenService,
	notifications *service.NotificationService,
) []*eventkafka.Consumer {
	kc := cfg.Kafka

	// Создаём DLQ publisher
	dlqPublisher := eventkafka.NewDLQPublisher(logger, kc.Brokers, kc.DLQTopic)
	shutdownMgr.Add("dlq_publisher", platformshutdown.CloseWithError(dlqPublisher))

	consumerCfg := func(topic string) eventkafka.ConsumerConfig {
		return eventkafka.ConsumerConfig{
			Brokers:     kc.Brokers,
			GroupID:     kc.GroupID,
			Topic:       topic,
			MaxAttempts: kc.RetryMaxAttempts,
			BackoffBase: kc.RetryBackoffBase,
		}
	}

	// Создаём Kafka consumers
	tokenConsumer := eventkafka.NewConsumer(
		logger,
		consumerCfg(kc.TokenTopic),
		dlqPublisher,
		eventkafka.NewTokenRefreshedHandler(logger, tokens),
	)
	messageConsumer := eventkafka.NewConsumer(
		logger,
		consumerCfg(kc.MessageTopic),
		dlqPublisher,
		eventkafka.NewMessageReceivedHandler(notifications),
	)

	shutdownMgr.Add("kafka_message_consumer", platformshutdown.CloseWithError(messageConsumer))
	shutdownMgr.Add("kafka_token_consumer", platformshutdown.CloseWithError(tokenConsumer))

	return []*eventkafka.Consumer{tokenConsumer, messageConsumer}
}

// Run запускает сервис и блокируется до получения сигнала shutdown
func (a *App) Run() error {
	defer platformlogging.Sync(a.logger)

	a.logger.Info("Starting providerhub", zap.String("addr", a.httpServer.Addr))
	a.logger.Info("Health check available", zap.String("url", "http://"+a.httpServer.Addr+"/health"))

	// Создаём контекст для consumers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Запускаем consumers, каждый в отдельной горутине
	for _, c := range a.consumers {
		a.wg.Add(1)
		go func(c *eventkafka.Consumer) {
			defer a.wg.Done()
			if err := c.Start(ctx); err != nil {
				a.logger.Error("kafka consumer error", zap.Error(err))
			}
		}(c)
	}
	if len(a.consumers) > 0 {
		a.logger.Info("Kafka consumers started", zap.Int("count", len(a.consumers)))
	}

	// Ожидаем сигнал и выполняем shutdown
	a.shutdownMgr.Wait()

	// Отменяем контекст consumers
	cancel()

	// Ждём завершения всех горутин
	a.wg.Wait()
	a.logger.Info("providerhub stopped")
	return nil
}
