package app

import (
	"cbseprep_backend/internal/config"
	"cbseprep_backend/internal/controller"
	"cbseprep_backend/internal/repository"
	"cbseprep_backend/internal/service"
	"cbseprep_backend/pkg/configwatcher"
	"cbseprep_backend/pkg/database"
	"cbseprep_backend/pkg/logger"
	"cbseprep_backend/pkg/monitoring"
	"cbseprep_backend/pkg/security"
	"cbseprep_backend/pkg/tracing"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services
	stop     chan struct{}
}

type repositories struct {
	user         *repository.UserRepository
	question     *repository.QuestionRepository
	exam         *repository.ExamRepository
	evaluation   *repository.EvaluationRepository
	subscription *repository.SubscriptionRepository
	holiday      *repository.HolidayRepository
}

type services struct {
	notification *service.NotificationService
	auth         *service.AuthService
	storage      *service.StorageService
	entitlement  *service.EntitlementService
	exam         *service.ExamService
	evaluation   *service.EvaluationService
	template     *service.TemplateService
	workload     *service.WorkloadService
}

type controllers struct {
	auth         *controller.AuthController
	exam         *controller.ExamController
	evaluation   *controller.EvaluationController
	subscription *controller.SubscriptionController
	workload     *controller.WorkloadController
	template     *controller.TemplateController
	calendar     *controller.CalendarController
	health       *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:         repository.NewUserRepository(db),
		question:     repository.NewQuestionRepository(db),
		exam:         repository.NewExamRepository(db),
		evaluation:   repository.NewEvaluationRepository(db),
		subscription: repository.NewSubscriptionRepository(db),
		holiday:      repository.NewHolidayRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*services, error) {
	s := &services{}

	s.notification = service.NewNotificationService(rdb)
	s.auth = service.NewAuthService(repos.user, cfg)

	storage, err := service.NewStorageService(cfg)
	if err != nil {
		return nil, err
	}
	s.storage = storage

	s.entitlement = service.NewEntitlementService(repos.subscription, cfg, s.notification, db)
	s.exam = service.NewExamService(repos.exam, repos.question, s.entitlement, db)
	s.evaluation = service.NewEvaluationService(
		repos.evaluation,
		repos.exam,
		repos.user,
		repos.subscription,
		repos.holiday,
		s.exam,
		cfg,
		s.notification,
		db,
	)
	s.template = service.NewTemplateService(repos.exam, repos.question)
	s.workload = service.NewWorkloadService(repos.evaluation, cfg, s.notification)

	return s, nil
}

func (a *App) initControllers(s *services, repos *repositories, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:         controller.NewAuthController(s.auth),
		exam:         controller.NewExamController(s.exam, s.storage),
		evaluation:   controller.NewEvaluationController(s.evaluation),
		subscription: controller.NewSubscriptionController(s.entitlement),
		workload:     controller.NewWorkloadController(s.workload, s.exam),
		template:     controller.NewTemplateController(s.template),
		calendar:     controller.NewCalendarController(repos.holiday),
		health:       controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests == 0 {
		maxRequests = 100000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window == 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(s *services) {
	a.stop = make(chan struct{})
	go s.workload.Run(a.stop)

	// SLA windows and plan allowances are tunable without a restart; the
	// services read them through the locked accessors on the shared config.
	go configwatcher.WatchConfig("configs/config.yaml", a.Config, func(reloaded interface{}) {
		newCfg, ok := reloaded.(*config.Config)
		if !ok {
			return
		}
		a.Config.ApplyReload(newCfg)
		logger.Log.Info("Config reloaded",
			zap.Int("premiumHours", newCfg.Sla.PremiumHours),
			zap.Int("defaultHours", newCfg.Sla.DefaultHours))
	})
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services, err := app.initServices(repos, cfg, db, rdb)
	if err != nil {
		logger.Log.Fatal("Failed to initialize services", zap.Error(err))
	}
	app.services = services
	controllers := app.initControllers(services, repos, db, rdb)

	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("cbseprep-backend", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)

	app.startBackgroundTasks(services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	if a.stop != nil {
		close(a.stop)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
