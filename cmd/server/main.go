package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	auditHandler "github.com/eduflow/eduflow-backend/internal/audit/handler"
	auditRepository "github.com/eduflow/eduflow-backend/internal/audit/repository"
	auditService "github.com/eduflow/eduflow-backend/internal/audit/service"
	authHandler "github.com/eduflow/eduflow-backend/internal/auth/handler"
	"github.com/eduflow/eduflow-backend/internal/auth/jwt"
	authRepository "github.com/eduflow/eduflow-backend/internal/auth/repository"
	authService "github.com/eduflow/eduflow-backend/internal/auth/service"
	"github.com/eduflow/eduflow-backend/internal/authz"
	"github.com/eduflow/eduflow-backend/internal/ratelimit"
	schoolHandler "github.com/eduflow/eduflow-backend/internal/school/handler"
	schoolRepository "github.com/eduflow/eduflow-backend/internal/school/repository"
	schoolService "github.com/eduflow/eduflow-backend/internal/school/service"
	tenantHandler "github.com/eduflow/eduflow-backend/internal/tenant/handler"
	tenantRepository "github.com/eduflow/eduflow-backend/internal/tenant/repository"
	"github.com/eduflow/eduflow-backend/internal/tenant/resolver"
	timetableHandler "github.com/eduflow/eduflow-backend/internal/timetable/handler"
	timetableRepository "github.com/eduflow/eduflow-backend/internal/timetable/repository"
	timetableService "github.com/eduflow/eduflow-backend/internal/timetable/service"
	"github.com/eduflow/eduflow-backend/pkg/config"
	"github.com/eduflow/eduflow-backend/pkg/database"
	"github.com/eduflow/eduflow-backend/pkg/httputil"
	"github.com/eduflow/eduflow-backend/pkg/logger"
	"github.com/eduflow/eduflow-backend/pkg/messaging"
)

const grantCacheTTL = 5 * time.Minute

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("eduflow-server")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("eduflow-server", cfg.Server.Environment)
	log.Info().Msg("starting EduFlow server")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Event publishers, one per exchange
	authPublisher, err := messaging.NewPublisher(rmq, messaging.ExchangeAuthEvents, "eduflow-server", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create auth event publisher")
	}
	userPublisher, err := messaging.NewPublisher(rmq, messaging.ExchangeUserEvents, "eduflow-server", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create user event publisher")
	}
	timetablePublisher, err := messaging.NewPublisher(rmq, messaging.ExchangeTimetableEvents, "eduflow-server", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create timetable event publisher")
	}
	auditPublisher, err := messaging.NewPublisher(rmq, messaging.ExchangeAuditEvents, "eduflow-server", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create audit event publisher")
	}

	// Rate-limit store: Redis when configured, in-process otherwise
	var limitStore ratelimit.Store
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		limitStore = ratelimit.NewRedisStore(redisClient)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis rate-limit store")
	} else {
		memStore := ratelimit.NewMemoryStore()
		defer memStore.Close()
		limitStore = memStore
		log.Info().Msg("using in-process rate-limit store")
	}

	apiLimiter := ratelimit.NewLimiter(ratelimit.RuleAPI, limitStore)
	authLimiter := ratelimit.NewLimiter(ratelimit.RuleAuth, limitStore)
	resetLimiter := ratelimit.NewLimiter(ratelimit.RulePasswordReset, limitStore)
	activationLimiter := ratelimit.NewLimiter(ratelimit.RuleRegistration, limitStore)
	tenantLimiter := ratelimit.NewLimiter(ratelimit.RuleTenant, limitStore)

	// Repositories
	tenantRepo := tenantRepository.NewTenantRepository(db)
	userRepo := authRepository.NewUserRepository(db)
	sessionRepo := authRepository.NewSessionRepository(db)
	auditRepo := auditRepository.NewAuditRepository(db)
	yearRepo := schoolRepository.NewAcademicYearRepository(db)
	classRepo := schoolRepository.NewClassRepository(db)
	subjectRepo := schoolRepository.NewSubjectRepository(db)
	roomRepo := schoolRepository.NewRoomRepository(db)
	slotRepo := schoolRepository.NewTimeSlotRepository(db)
	teacherRepo := schoolRepository.NewTeacherRepository(db)
	requirementRepo := schoolRepository.NewRequirementRepository(db)
	entryRepo := timetableRepository.NewEntryRepository(db)
	draftRepo := timetableRepository.NewDraftRepository(db)

	// Authorization pipeline
	jwtManager := jwt.NewManager(&cfg.JWT)
	tenantResolver := resolver.NewResolver(tenantRepo, cfg.Server.BaseDomain, log)
	grantLoader := authz.NewLoader(db, grantCacheTTL, log)
	defer grantLoader.Close()
	authn := authz.NewMiddleware(jwtManager, tenantResolver, grantLoader, log)

	// Services
	auditSvc := auditService.NewAuditService(auditRepo, auditPublisher, log)
	authSvc := authService.NewAuthService(userRepo, sessionRepo, jwtManager, auditSvc, authPublisher, userPublisher, log)
	schoolSvc := schoolService.NewSchoolService(
		yearRepo, classRepo, subjectRepo, roomRepo, slotRepo, teacherRepo, requirementRepo,
		auditSvc, log)
	solver := timetableService.NewSolver(cfg.Generator.MaxRetriesPerEntry, cfg.Generator.MaxGlobalRetries)
	timetableSvc := timetableService.NewTimetableService(
		entryRepo, draftRepo, yearRepo, classRepo, slotRepo, roomRepo, teacherRepo, requirementRepo,
		solver, auditSvc, timetablePublisher, log)

	// Handlers
	authH := authHandler.NewAuthHandler(authSvc, cfg, log)
	tenantH := tenantHandler.NewTenantHandler(tenantRepo, tenantResolver, log)
	schoolH := schoolHandler.NewSchoolHandler(schoolSvc, log)
	timetableH := timetableHandler.NewTimetableHandler(timetableSvc, log)
	auditH := auditHandler.NewAuditHandler(auditSvc, log)

	// Grant-cache invalidation consumer
	consumer, err := messaging.NewConsumer(rmq, "eduflow.server.grants", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create grant invalidation consumer")
	}
	if err := consumer.Subscribe(messaging.ExchangeUserEvents, "user.#"); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to user events")
	}
	authz.RegisterInvalidationHandlers(consumer, grantLoader, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := consumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start grant invalidation consumer")
	}

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*." + cfg.Server.BaseDomain, "http://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tenant-Id", "X-Impersonate-Tenant"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(ratelimit.Middleware(apiLimiter, ratelimit.ByIP, log))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"status":   "healthy",
			"service":  "eduflow-server",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		}
		if redisClient != nil {
			status["redis"] = redisClient.Ping(r.Context()).Err() == nil
		}
		httputil.JSON(w, http.StatusOK, status)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Authentication endpoints. Login failures count against a combined
		// address and account budget.
		r.Route("/auth", func(r chi.Router) {
			r.With(
				ratelimit.Middleware(authLimiter, ratelimit.ByIPAndEmail, log),
				authn.ResolveLoginTenant,
			).Post("/login", authH.Login)
			r.With(
				ratelimit.Middleware(resetLimiter, ratelimit.ByIPAndEmail, log),
				authn.ResolveLoginTenant,
			).Post("/password/forgot", authH.ForgotPassword)
			r.With(ratelimit.Middleware(resetLimiter, ratelimit.ByIP, log)).
				Post("/password/reset", authH.ResetPassword)
			r.With(ratelimit.Middleware(activationLimiter, ratelimit.ByIP, log)).
				Post("/activate", authH.Activate)
			r.Post("/refresh", authH.Refresh)
			r.With(authn.OptionalAuthenticate).Post("/logout", authH.Logout)
		})

		// Tenant-scoped API
		r.Group(func(r chi.Router) {
			r.Use(authn.Authenticate)
			r.Use(ratelimit.Middleware(tenantLimiter, ratelimit.ByTenant, log))

			r.Mount("/school", schoolH.Routes())
			r.Mount("/timetable", timetableH.Routes())

			r.With(authz.RequirePermission("user:invite")).Post("/users/invite", authH.InviteUser)

			r.With(authz.RequirePermission(auditHandler.PermAuditRead)).Get("/audit", auditH.List)

			// Platform administration
			r.Route("/platform/tenants", func(r chi.Router) {
				r.Use(authz.RequirePlatformOwner)
				r.Get("/", tenantH.List)
				r.Post("/", tenantH.Create)
				r.Put("/{id}/status", tenantH.UpdateStatus)
			})
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumers
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
