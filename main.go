package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hio-competition-system/handlers"
	"hio-competition-system/middleware"
	"hio-competition-system/models"
	"hio-competition-system/services"
	"hio-competition-system/utils"
	"hio-competition-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 256 * 1024 * 1024, // 256MB — evidence video uploads
	})

	// 🔐 GLOBAL: only Gateway requests allowed (witness links excepted)
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-User-Name, X-User-Email, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Club{},
		&models.Competition{},
		&models.Entry{},
		&models.Verification{},
		&models.WitnessConfirmation{},
		&models.OutboundEmail{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}
	if err := services.EnsureIndexes(db); err != nil {
		log.Fatal("failed to create indexes:", err)
	}

	notifier := services.NewNotifier(db)
	entryService := services.NewEntryService(db)
	witnessService := services.NewWitnessService(db, notifier)
	verificationService := services.NewVerificationService(db, entryService, witnessService, notifier)
	adjudicationService := services.NewAdjudicationService(db, verificationService, entryService, notifier)
	competitionService := services.NewCompetitionService(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mailClient := workers.NewMailClient(db)
	go workers.PollOutbox(ctx, mailClient, 10*time.Second)

	verificationService.StartAutoMissScheduler()

	handlers.SetupCompetitionRoutes(app, competitionService)
	handlers.SetupClaimRoutes(app, entryService, verificationService, adjudicationService, witnessService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Email worker running (every 10s)")
	log.Printf("✅ Auto-miss sweep running (timeout: %dh)", verificationService.TimeoutHours)
	log.Println("✅ GatewayAuthMiddleware enforced globally — witness links excepted")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
