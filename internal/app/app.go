package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/thrive/internal/cache"
	"github.com/templui/thrive/internal/config"
	"github.com/templui/thrive/internal/db"
	"github.com/templui/thrive/internal/i18n"
	"github.com/templui/thrive/internal/metrics"
	"github.com/templui/thrive/internal/realtime"
	"github.com/templui/thrive/internal/repository"
	"github.com/templui/thrive/internal/scheduler"
	"github.com/templui/thrive/internal/service"
	"github.com/templui/thrive/internal/service/payment"
	"github.com/templui/thrive/internal/storage"
)

const (
	cachePrefix         = "thrive:"
	cacheCleanup        = time.Minute
	jobTimeout          = 5 * time.Minute
	achievementLookback = 24 * time.Hour
	tokenRetention      = 24 * time.Hour
)

type App struct {
	Cfg        *config.Config
	DB         *sqlx.DB
	Cache      cache.Store
	Translator *i18n.Translator
	Hub        *realtime.Hub
	Broker     realtime.Broker
	Scheduler  *scheduler.Scheduler

	AuthService         *service.AuthService
	UserService         *service.UserService
	ProfileService      *service.ProfileService
	EmailService        *service.EmailService
	FileService         *service.FileService
	SubscriptionService *service.SubscriptionService
	PaymentService      payment.Provider
	NotificationService *service.NotificationService
	BadgeService        *service.BadgeService
	ChallengeService    *service.ChallengeService
	ActivityService     *service.ActivityService
	TaskService         *service.TaskService
	HealthService       *service.HealthService
	FocusService        *service.FocusService
	GoalService         *service.GoalService
	HabitService        *service.HabitService
	CalendarService     *service.CalendarService
	ExportService       *service.ExportService

	tokenRepository repository.TokenRepository
	closers         []func() error
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Cfg: cfg}

	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.DB = database
	a.closers = append(a.closers, database.Close)

	// Run database migrations
	if err := db.RunMigrations(database.DB, cfg.DBDriver); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Repositories
	userRepository := repository.NewUserRepository(database)
	profileRepository := repository.NewProfileRepository(database)
	tokenRepository := repository.NewTokenRepository(database)
	fileRepository := repository.NewFileRepository(database)
	subscriptionRepository := repository.NewSubscriptionRepository(database)
	goalRepository := repository.NewGoalRepository(database)
	goalEntryRepository := repository.NewGoalEntryRepository(database)
	taskRepository := repository.NewTaskRepository(database)
	healthRepository := repository.NewHealthLogRepository(database)
	focusRepository := repository.NewFocusSessionRepository(database)
	habitRepository := repository.NewHabitRepository(database)
	challengeRepository := repository.NewChallengeRepository(database)
	activityRepository := repository.NewActivityRepository(database)
	badgeRepository := repository.NewBadgeRepository(database)
	notificationRepository := repository.NewNotificationRepository(database)
	calendarRepository := repository.NewCalendarRepository(database)
	a.tokenRepository = tokenRepository

	// Cache
	if cfg.RedisURL != "" {
		store, err := cache.NewRedisStore(ctx, cfg.RedisURL, cachePrefix)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.Cache = store
		a.closers = append(a.closers, store.Close)
	} else {
		store := cache.NewMemoryStore()
		store.StartCleanup(cacheCleanup)
		a.Cache = store
		a.closers = append(a.closers, store.Close)
	}

	// Storage
	fileStorage, err := storage.New(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	translator, err := i18n.New(a.Cache, cfg.DefaultLocale, cfg.I18nCacheTTL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load translations: %w", err)
	}
	a.Translator = translator

	// Realtime
	a.Hub = realtime.NewHub()
	a.Hub.OnChange = metrics.SetRealtimeSubscribers
	a.Hub.OnDrop = func(ev realtime.Event) { metrics.EventDropped(ev.Type) }
	if len(cfg.KafkaBrokers) > 0 {
		broker := realtime.NewKafkaBroker(a.Hub, cfg.KafkaBrokers, cfg.RealtimeTopic)
		broker.OnPublish = func(ev realtime.Event) { metrics.EventPublished(ev.Type) }
		a.Broker = broker
	} else {
		broker := realtime.NewLocalBroker(a.Hub)
		broker.OnPublish = func(ev realtime.Event) { metrics.EventPublished(ev.Type) }
		a.Broker = broker
	}

	// Services
	emailService, err := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.AppURL,
		cfg.AppName,
		cfg.SupportEmail,
		cfg.IsDevelopment(),
		translator,
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize email service: %w", err)
	}
	fileService := service.NewFileService(fileRepository, fileStorage)
	subscriptionService := service.NewSubscriptionService(subscriptionRepository)

	// Initialize payment provider based on config
	paymentProvider, err := payment.NewProvider(cfg, subscriptionService)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize payment provider: %w", err)
	}

	notificationService := service.NewNotificationService(notificationRepository, profileRepository, translator, a.Broker)
	badgeService := service.NewBadgeService(badgeRepository, activityRepository, notificationService, a.Broker)
	challengeService := service.NewChallengeService(
		challengeRepository,
		activityRepository,
		userRepository,
		profileRepository,
		subscriptionService,
		notificationService,
		emailService,
		a.Broker,
		a.Cache,
	)
	activityService := service.NewActivityService(activityRepository, challengeService, badgeService)

	var calendarProviders []service.CalendarProvider
	if cfg.GoogleClientID != "" {
		calendarProviders = append(calendarProviders, service.NewGoogleCalendar(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.AppURL))
	}
	if cfg.MicrosoftClientID != "" {
		calendarProviders = append(calendarProviders, service.NewMicrosoftCalendar(cfg.MicrosoftClientID, cfg.MicrosoftClientSecret, cfg.AppURL))
	}

	a.EmailService = emailService
	a.FileService = fileService
	a.SubscriptionService = subscriptionService
	a.PaymentService = paymentProvider
	a.NotificationService = notificationService
	a.BadgeService = badgeService
	a.ChallengeService = challengeService
	a.ActivityService = activityService
	a.AuthService = service.NewAuthService(
		userRepository,
		profileRepository,
		tokenRepository,
		subscriptionService,
		emailService,
		service.AuthConfig{
			JWTSecret:                cfg.JWTSecret,
			IsProduction:             cfg.IsProduction(),
			JWTExpiry:                cfg.JWTExpiry,
			TokenPasswordResetExpiry: cfg.TokenPasswordResetExpiry,
			TokenEmailChangeExpiry:   cfg.TokenEmailChangeExpiry,
			TokenMagicLinkExpiry:     cfg.TokenMagicLinkExpiry,
		},
	)
	a.UserService = service.NewUserService(userRepository, profileRepository, fileService, emailService, subscriptionService)
	a.ProfileService = service.NewProfileService(profileRepository, translator)
	a.TaskService = service.NewTaskService(taskRepository, activityService, a.Broker)
	a.HealthService = service.NewHealthService(healthRepository, activityService)
	a.FocusService = service.NewFocusService(focusRepository, taskRepository, activityService, a.Broker)
	a.GoalService = service.NewGoalService(goalRepository, goalEntryRepository, subscriptionService, notificationService, activityService, a.Broker)
	a.HabitService = service.NewHabitService(habitRepository, profileRepository, activityService, a.Broker)
	a.CalendarService = service.NewCalendarService(calendarRepository, subscriptionService, a.Cache, a.Broker, calendarProviders...)
	a.ExportService = service.NewExportService(
		userRepository,
		profileRepository,
		taskRepository,
		healthRepository,
		focusRepository,
		goalRepository,
		habitRepository,
		subscriptionService,
		fileService,
	)

	a.Scheduler = scheduler.New(jobTimeout)
	if err := a.registerJobs(); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) registerJobs() error {
	err := a.Scheduler.Add("achievements", a.Cfg.AchievementSchedule, func(ctx context.Context) error {
		_, err := a.ActivityService.Sweep(ctx, time.Now().Add(-achievementLookback))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to schedule achievements job: %w", err)
	}

	err = a.Scheduler.Add("maintenance", a.Cfg.MaintenanceSchedule, func(ctx context.Context) error {
		finalized, err := a.ChallengeService.Finalize(ctx)
		if err != nil {
			return err
		}
		removed, err := a.tokenRepository.CleanupExpired(ctx, tokenRetention)
		if err != nil {
			return err
		}
		slog.Info("maintenance complete", "challenges_finalized", finalized, "tokens_removed", removed)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to schedule maintenance job: %w", err)
	}
	return nil
}

// Start runs the broker consumer and the scheduler until ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	go func() {
		if err := a.Broker.Run(ctx); err != nil {
			slog.Error("realtime broker stopped", "error", err)
		}
	}()
	a.Scheduler.Start()
}

// Shutdown stops background work and releases resources.
func (a *App) Shutdown(ctx context.Context) {
	if a.Scheduler != nil {
		a.Scheduler.Stop(ctx)
	}
	if a.Broker != nil {
		if err := a.Broker.Close(); err != nil {
			slog.Error("failed to close realtime broker", "error", err)
		}
	}
	if a.Hub != nil {
		a.Hub.Close()
	}
	a.Close()
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Error("failed to close resource", "error", err)
		}
	}
	a.closers = nil
}
