package main

import (
	"fmt"
	"os"
	"time"

	"mailsift/classifier"
	"mailsift/config"
	"mailsift/handlers/api"
	"mailsift/middleware"
	"mailsift/storage"
	"mailsift/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	utils.Log.Info("Initializing MailSift...")

	// Load configuration
	cfg, err := config.LoadConfig("config.toml")
	if err != nil {
		utils.Log.Error("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Open the credential database
	db, err := storage.InitDB(cfg.Storage.DataDir)
	if err != nil {
		utils.Log.Error("Failed to open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	store, err := storage.NewBoltCredentialStore(db, []byte(cfg.Encryption.Key))
	if err != nil {
		utils.Log.Error("Failed to initialize credential store: %v", err)
		os.Exit(1)
	}

	// Load the trained vectorizer and classifier once at startup
	model, err := classifier.Load(cfg.Model.Vectorizer, cfg.Model.Classifier)
	if err != nil {
		utils.Log.Error("Failed to load classifier artifacts: %v", err)
		os.Exit(1)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError

			if appErr, ok := err.(*utils.AppError); ok {
				code = appErr.Code
				utils.Log.Error("Application error: %v", appErr)
			} else if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			// Internal details stay out of 5xx responses
			if code >= fiber.StatusInternalServerError {
				return c.Status(code).JSON(fiber.Map{
					"error": "Internal server error",
				})
			}

			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Add global middleware
	app.Use(recover.New()) // Recover from panics
	app.Use(logger.New())  // Request logging
	app.Use(helmet.New(helmet.Config{ // Security headers
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		ReferrerPolicy:     "no-referrer",
	}))
	app.Use(middleware.RequestID())

	// Add rate limiting (100 requests per minute per IP)
	app.Use(middleware.RateLimiter(100, time.Minute))

	// Initialize handlers
	emailHandler := api.NewEmailHandler(cfg, store, model)
	registerHandler := api.NewRegisterHandler(store)

	app.Get("/update-emails", emailHandler.HandleUpdateEmails)
	app.Post("/register", registerHandler.HandleRegister)

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Start server
	utils.Log.Info("Starting server on port %d...", cfg.Server.Port)
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		utils.Log.Error("Error starting server: %v", err)
	}
}
