package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/invosuite/billdesk/internal/config"
	"github.com/invosuite/billdesk/internal/database"
	"github.com/invosuite/billdesk/internal/handlers"
	"github.com/invosuite/billdesk/internal/middleware"
	"github.com/invosuite/billdesk/internal/records"
	"github.com/invosuite/billdesk/internal/services"
	"github.com/invosuite/billdesk/internal/store"
	"github.com/invosuite/billdesk/internal/templates"
	"github.com/invosuite/billdesk/internal/types"
	"github.com/sirupsen/logrus"

	_ "github.com/invosuite/billdesk/docs/api" // Swagger docs
)

// @title BillDesk API
// @version 1.0.0
// @description Role-gated billing data console backend
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/invosuite/billdesk

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	// Connect to the document store database
	db, err := database.Connect(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to database")
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		logrus.WithError(err).Fatal("failed to run migrations")
	}

	// Wire the domain services
	docs := store.New(db)
	templateAdapter := templates.NewAdapter(docs)
	editor := templates.NewEditor(templateAdapter)
	recordAdapter := records.NewAdapter(docs)
	worksets := records.NewManager(recordAdapter, templateAdapter)
	users := services.NewUserService(docs, cfg)
	auth := middleware.NewAuth(cfg, users)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: false,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("billdesk")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Health probe
	healthHandler := &handlers.HealthHandler{Cfg: cfg, DB: db}
	app.Get("/health", healthHandler.Health)

	// API routes under /api
	api := app.Group("/api")
	api.Use(middleware.VersionMiddleware())

	// Create handlers
	clientHandler := &handlers.ClientHandler{Templates: templateAdapter}
	draftHandler := &handlers.TemplateDraftHandler{Editor: editor}
	worksetHandler := &handlers.WorksetHandler{Worksets: worksets}
	userHandler := &handlers.UserHandler{Users: users}

	// Client settings routes (admin only)
	api.Get("/clients", auth.Authenticated(), clientHandler.ListClients)
	api.Get("/clients/:clientId", auth.Authenticated(), clientHandler.GetClient)
	api.Delete("/clients/:clientId", auth.Admin(), clientHandler.DeleteClient)

	// Template draft routes (admin only)
	drafts := api.Group("/template-drafts", auth.Admin())
	drafts.Post("/", draftHandler.CreateDraft)
	drafts.Get("/:draftId", draftHandler.GetDraft)
	drafts.Delete("/:draftId", draftHandler.DiscardDraft)
	drafts.Put("/:draftId/name", draftHandler.SetName)
	drafts.Put("/:draftId/active", draftHandler.SetActive)
	drafts.Post("/:draftId/products/toggle", draftHandler.ToggleProduct)
	drafts.Post("/:draftId/fields", draftHandler.AddField)
	drafts.Put("/:draftId/fields/:fieldId", draftHandler.EditField)
	drafts.Delete("/:draftId/fields/:fieldId", draftHandler.DeleteField)
	drafts.Post("/:draftId/fields/:fieldId/move", draftHandler.MoveField)
	drafts.Post("/:draftId/save", draftHandler.SaveDraft)

	// Billing workset routes: reads for any signed-in user, mutations for
	// editing roles
	api.Post("/worksets", auth.Authenticated(), worksetHandler.OpenWorkset)
	api.Get("/worksets/:worksetId", auth.Authenticated(), worksetHandler.GetWorkset)
	api.Delete("/worksets/:worksetId", auth.Authenticated(), worksetHandler.CloseWorkset)
	api.Post("/worksets/:worksetId/filter", auth.Authenticated(), worksetHandler.Refilter)
	api.Get("/worksets/:worksetId/export", auth.Authenticated(), worksetHandler.ExportWorkset)
	api.Put("/worksets/:worksetId/records/:recordId/cells/:fieldId", auth.Editor(), worksetHandler.SetCell)
	api.Post("/worksets/:worksetId/records", auth.Editor(), worksetHandler.AddRecord)
	api.Delete("/worksets/:worksetId/records/:recordId", auth.Editor(), worksetHandler.DeleteRecord)
	api.Post("/worksets/:worksetId/save", auth.Editor(), worksetHandler.SaveWorkset)

	// User directory routes (admin only, except own password change)
	api.Get("/users", auth.Admin(), userHandler.ListUsers)
	api.Post("/users", auth.Admin(), userHandler.CreateUser)
	api.Put("/users/:uid", auth.Admin(), userHandler.UpdateUser)
	api.Delete("/users/:uid", auth.Admin(), userHandler.DeleteUser)
	api.Post("/account/password", auth.Authenticated(), userHandler.ChangePassword)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
		})
	})

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		logrus.Info("gracefully shutting down")
		_ = app.Shutdown()
	}()

	logrus.WithField("port", cfg.Port).Info("starting server")
	if err := app.Listen(":" + cfg.Port); err != nil {
		logrus.WithError(err).Fatal("failed to start server")
	}

	logrus.Info("server stopped")
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	var cerr *types.CustomError
	if errors.As(err, &cerr) {
		code = cerr.Code
		message = cerr.Message
		errorType = cerr.Type
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    code,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}
