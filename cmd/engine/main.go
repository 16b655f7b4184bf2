// Package main - точка входа движка накоплений и достижений Kopilka.
//
// Движок связывает четыре компонента:
// - Верификатор доказательств (идемпотентная регистрация по контентному хешу)
// - Хранилище достижений (цели и курсы с монотонной разблокировкой)
// - Классификатор уровней (ленивый пересчёт из счётчиков достижений)
// - Накопительный леджер (процент по ставке, зависящей от уровня)
//
// Postgres - источник истины, Redis держит только горячие проекции.
// Команды поступают через прикладной слой; транспорт (HTTP, gRPC)
// навешивается поверх обработчиков из internal/application.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kopilka-hub/kopilka/config"
	"github.com/kopilka-hub/kopilka/internal/application/command"
	"github.com/kopilka-hub/kopilka/internal/application/eventhandler"
	"github.com/kopilka-hub/kopilka/internal/application/query"
	"github.com/kopilka-hub/kopilka/internal/application/saga"
	"github.com/kopilka-hub/kopilka/internal/domain/admin"
	"github.com/kopilka-hub/kopilka/internal/domain/level"
	"github.com/kopilka-hub/kopilka/internal/domain/proof"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
	"github.com/kopilka-hub/kopilka/internal/infrastructure/messaging"
	"github.com/kopilka-hub/kopilka/internal/infrastructure/persistence/postgres"
	"github.com/kopilka-hub/kopilka/internal/infrastructure/persistence/projections"
	"github.com/kopilka-hub/kopilka/internal/infrastructure/persistence/redis"
	"github.com/kopilka-hub/kopilka/internal/infrastructure/service"
	"github.com/kopilka-hub/kopilka/pkg/keylock"
	"github.com/kopilka-hub/kopilka/pkg/logger"
	"github.com/kopilka-hub/kopilka/pkg/retry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	slogger := setupSlog(cfg)
	appLog := setupAppLogger(cfg)

	slogger.Info("starting Kopilka engine",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// Соседние контейнеры могут подниматься параллельно - подключаемся
	// с терпеливыми ретраями.
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("connecting to database...")

	var dbConn *postgres.Connection
	err = retry.StartupRetrier().Do(ctx, func(ctx context.Context) error {
		var connErr error
		dbConn, connErr = postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if connErr != nil {
			return retry.Retryable(connErr)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		slogger.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	slogger.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. МИГРАЦИИ СХЕМЫ
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Engine.MigrateOnStart {
		slogger.Info("checking database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		slogger.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// Движок полностью работоспособен без Redis: кеши пропускаются,
	// все чтения идут в Postgres.
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var levelCache level.Cache
	var proofCache proof.DedupCache

	if !cfg.Redis.Disabled {
		slogger.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			slogger.Warn("failed to connect to Redis, caching disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			if cfg.Features.IsEnabled(config.FeatureCacheLevels, nil) {
				levelCache = redis.NewLevelCache(redisCache)
			}
			if cfg.Features.IsEnabled(config.FeatureCacheProofDedup, nil) {
				proofCache = redis.NewProofSeenCache(redisCache)
			}
			slogger.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. РЕПОЗИТОРИИ
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("initializing repositories...")
	goalRepo := postgres.NewGoalRepository(dbConn)
	courseRepo := postgres.NewCourseRepository(dbConn)
	counterRepo := postgres.NewCounterRepository(dbConn)
	levelRepo := postgres.NewLevelRepository(dbConn)
	savingsRepo := postgres.NewSavingsRepository(dbConn)
	proofRepo := postgres.NewProofRepository(dbConn)
	materialRepo := postgres.NewMaterialRepository(dbConn)
	adminRepo := postgres.NewAdminRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. EVENT BUS И ДИСПЕТЧЕР
	// Шина создаётся до доменных сервисов: верификатор публикует
	// результаты проверок прямо в неё.
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("initializing event bus...")
	eventBusConfig := messaging.DefaultInMemoryEventBusConfig()
	eventBusConfig.Logger = slogger
	eventBusConfig.AsyncMode = cfg.Features.IsEnabled(config.FeatureEventsAsync, nil)
	eventBusConfig.WorkerPoolSize = cfg.Events.Workers
	eventBus := messaging.NewInMemoryEventBus(eventBusConfig)
	defer func() {
		slogger.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// Зеркалирование событий во внешний Redis pub/sub - по желанию.
	// Доставка best-effort: подписчики снаружи процесса не участвуют
	// в транзакциях движка.
	if redisCache != nil &&
		(cfg.Events.PublishToRedis || cfg.Features.IsEnabled(config.FeatureEventsRedisPublish, nil)) {
		relay := messaging.NewRedisRelay(redisCache, redis.PrefixPubSub, slogger)
		if err := eventBus.SubscribeAll(relay.Handle); err != nil {
			return fmt.Errorf("failed to attach redis relay: %w", err)
		}
		slogger.Info("redis event relay attached", "prefix", redis.PrefixPubSub)
	}

	dispatcherConfig := messaging.DefaultDispatcherConfig(eventBus)
	dispatcherConfig.Logger = slogger
	dispatcherConfig.WorkerPoolSize = cfg.Events.Workers
	dispatcherConfig.RetryConfig.MaxRetries = cfg.Events.MaxRetries
	dispatcherConfig.RetryConfig.InitialBackoff = cfg.Events.RetryDelay
	dispatcherConfig.DeadLetterQueueSize = cfg.Events.DLQSize
	dispatcher := messaging.NewDispatcher(dispatcherConfig)
	defer func() {
		slogger.Info("stopping event dispatcher...")
		_ = dispatcher.Stop()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ДОМЕННЫЕ СЕРВИСЫ
	// ─────────────────────────────────────────────────────────────────────────
	verifier := service.NewVerifierService(proofRepo, materialRepo, proofCache, eventBus)
	classifier := service.NewLevelService(levelRepo, counterRepo, levelCache)
	authorizer := service.NewAdminService(adminRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ПРОЕКЦИИ И ОБРАБОТЧИКИ СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	var accountView *projections.AccountView
	var accountRebuilder *projections.AccountViewRebuilder
	if cfg.Features.IsEnabled(config.FeatureCacheAccounts, nil) {
		accountView = projections.NewAccountView()
		accountRebuilder = projections.NewAccountViewRebuilder(
			accountView, goalRepo, counterRepo, savingsRepo, classifier)
	}

	var invalidator eventhandler.AccountInvalidator
	if accountView != nil {
		invalidator = accountView
	}

	onUnlocked := eventhandler.NewOnAchievementUnlockedHandler(classifier, invalidator, appLog)
	onLevelChanged := eventhandler.NewOnLevelChangedHandler(levelCache, invalidator, appLog)
	onBalanceMoved := eventhandler.NewOnBalanceMovedHandler(invalidator, appLog)

	registrations := []struct {
		eventType shared.EventType
		name      string
		handler   shared.EventHandler
	}{
		{shared.EventAchievementUnlocked, "on_achievement_unlocked", onUnlocked.Handle},
		{shared.EventCourseCompleted, "on_course_completed", onUnlocked.Handle},
		{shared.EventLevelChanged, "on_level_changed", onLevelChanged.Handle},
		{shared.EventSavingsDeposited, "on_savings_deposited", onBalanceMoved.Handle},
		{shared.EventSavingsWithdrawn, "on_savings_withdrawn", onBalanceMoved.Handle},
		{shared.EventInterestAccrued, "on_interest_accrued", onBalanceMoved.Handle},
		{shared.EventEscrowDeposited, "on_escrow_deposited", onBalanceMoved.Handle},
		{shared.EventEscrowWithdrawn, "on_escrow_withdrawn", onBalanceMoved.Handle},
		{shared.EventGoalSet, "on_goal_set", onBalanceMoved.Handle},
	}
	for _, reg := range registrations {
		if err := dispatcher.Register(reg.eventType, reg.name, reg.handler); err != nil {
			return fmt.Errorf("failed to register event handler %s: %w", reg.name, err)
		}
	}

	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start event dispatcher: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. ПРИКЛАДНОЙ СЛОЙ
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("initializing application layer...")
	locks := keylock.New()
	unlockFlow := saga.NewUnlockFlowSaga(verifier, goalRepo, courseRepo, classifier, eventBus)

	setGoalHandler := command.NewSetGoalHandler(goalRepo, eventBus, locks)
	escrowHandler := command.NewEscrowHandler(goalRepo, eventBus, locks)
	submitProofHandler := command.NewSubmitProofHandler(unlockFlow, locks)
	savingsHandler := command.NewSavingsHandler(savingsRepo, classifier, eventBus, locks)
	recomputeHandler := command.NewRecomputeLevelHandler(classifier, counterRepo, eventBus)
	configureHandler := command.NewConfigureHandler(authorizer, verifier)

	balanceQuery := query.NewGetBalanceHandler(savingsRepo, classifier)
	positionQuery := query.NewGetPositionHandler(savingsRepo)
	goalQuery := query.NewGetSavingsGoalHandler(goalRepo)
	levelQuery := query.NewGetLevelHandler(classifier, counterRepo)
	coursesQuery := query.NewCourseCompletionHandler(courseRepo)
	proofQuery := query.NewIsProofVerifiedHandler(proofRepo)

	// Транспорт поверх обработчиков подключается отдельным бинарём;
	// движок держит их готовыми.
	_ = setGoalHandler
	_ = escrowHandler
	_ = submitProofHandler
	_ = savingsHandler
	_ = recomputeHandler
	_ = configureHandler
	_ = balanceQuery
	_ = positionQuery
	_ = goalQuery
	_ = levelQuery
	_ = coursesQuery
	_ = proofQuery
	_ = accountRebuilder

	// ─────────────────────────────────────────────────────────────────────────
	// 11. ЯВНАЯ ИНИЦИАЛИЗАЦИЯ КОМПОНЕНТОВ (опционально)
	// Без неё каждый компонент забутстрапится первым защищённым вызовом.
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Engine.BootstrapAdminID != "" {
		adminID := shared.UserID(cfg.Engine.BootstrapAdminID)
		for _, comp := range cfg.Engine.BootstrapComponents {
			err := configureHandler.HandleInitialize(ctx, command.InitializeComponentCommand{
				Component: admin.Component(comp),
				AdminID:   adminID,
			})
			switch {
			case err == nil:
				slogger.Info("component initialized", "component", comp)
			case errors.Is(err, shared.ErrAlreadyInitialized):
				slogger.Info("component already initialized", "component", comp)
			default:
				return fmt.Errorf("failed to initialize component %s: %w", comp, err)
			}
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 12. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("Kopilka engine is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	slogger.Info("received shutdown signal", "signal", sig.String())

	slogger.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	slogger.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupSlog настраивает slog для инфраструктурных компонентов.
func setupSlog(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

// setupAppLogger настраивает прикладной логгер для обработчиков событий.
func setupAppLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts)
}
