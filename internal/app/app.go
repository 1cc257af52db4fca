// Package app assembles the Fiber application: middleware chain, services
// and the route table.
package app

import (
	"orus-backend/internal/auth"
	"orus-backend/internal/checkout"
	"orus-backend/internal/config"
	"orus-backend/internal/constants"
	"orus-backend/internal/health"
	"orus-backend/internal/ledger"
	"orus-backend/internal/listings"
	"orus-backend/internal/logistics"
	"orus-backend/internal/middleware"
	"orus-backend/internal/negotiation"
	"orus-backend/internal/notify"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New builds the application with all routes registered.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "orus-backend",
		ErrorHandler: middleware.ErrorHandler,
	})

	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Session(rdb))

	publisher := notify.New(rdb)

	authHandlers := auth.NewHandlers(auth.NewService(db), rdb, cfg.AllowCrossSiteDev)
	listingHandlers := listings.NewHandlers(listings.NewService(db, publisher))
	logisticsHandlers := logistics.NewHandlers(logistics.NewService(db, publisher))
	negotiationHandlers := negotiation.NewHandlers(negotiation.NewService(db, publisher))
	ledgerHandlers := ledger.NewHandlers(ledger.NewService(db, publisher))
	checkoutHandlers := checkout.NewHandlers(checkout.NewService(db, publisher))
	healthHandlers := health.NewHandlers(health.NewService(db, rdb), cfg.HealthAdminKey)

	app.Get("/healthz", healthHandlers.Live)
	app.Get("/health/json", healthHandlers.Report)

	api := app.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandlers.Register)
	authGroup.Post("/login", authHandlers.Login)
	authGroup.Post("/logout", authHandlers.Logout)
	authGroup.Get("/me", middleware.RequireAuth(), authHandlers.Me)

	listingGroup := api.Group("/listings")
	listingGroup.Get("/", listingHandlers.Browse)
	listingGroup.Post("/", middleware.RequireAuth(), listingHandlers.Create)
	listingGroup.Get("/mine", middleware.RequireAuth(), listingHandlers.Mine)
	listingGroup.Get("/purchases", middleware.RequireAuth(), listingHandlers.MyPurchases)
	listingGroup.Get("/likes", middleware.RequireAuth(), listingHandlers.MyLikes)
	listingGroup.Get("/:id", listingHandlers.Get)
	listingGroup.Delete("/:id", middleware.RequireAuth(), listingHandlers.Withdraw)
	listingGroup.Post("/:id/like", middleware.RequireAuth(), listingHandlers.Like)
	listingGroup.Delete("/:id/like", middleware.RequireAuth(), listingHandlers.Unlike)
	listingGroup.Post("/:id/buy", middleware.RequireAuth(), checkoutHandlers.BuyNow)

	chatGroup := api.Group("/chat", middleware.RequireAuth())
	chatGroup.Post("/conversations", negotiationHandlers.StartConversation)
	chatGroup.Get("/conversations", negotiationHandlers.MyConversations)
	chatGroup.Get("/conversations/:id/messages", negotiationHandlers.GetMessages)
	chatGroup.Post("/conversations/:id/messages", negotiationHandlers.SendMessage)
	chatGroup.Get("/conversations/:id/offers", negotiationHandlers.ListOffers)
	chatGroup.Post("/conversations/:id/offers", negotiationHandlers.MakeOffer)
	chatGroup.Post("/offers/:id/respond", negotiationHandlers.RespondToOffer)
	chatGroup.Post("/offers/:id/pay", checkoutHandlers.PayOffer)

	walletGroup := api.Group("/wallet", middleware.RequireAuth())
	walletGroup.Get("/", ledgerHandlers.GetWallet)
	walletGroup.Get("/history", ledgerHandlers.GetWalletHistory)
	walletGroup.Post("/topup", ledgerHandlers.TopUpWallet)
	walletGroup.Get("/transactions", ledgerHandlers.MyTransactions)
	walletGroup.Get("/payouts", ledgerHandlers.MyPayouts)
	walletGroup.Post("/payouts", ledgerHandlers.RequestPayout)

	adminGroup := api.Group("/admin", middleware.RequireAuth())
	adminGroup.Get("/moderation", middleware.AuthorizePermission(constants.ModerateListings), listingHandlers.ModerationQueue)
	adminGroup.Post("/moderation/:id", middleware.AuthorizePermission(constants.ModerateListings), listingHandlers.Moderate)
	adminGroup.Post("/listings/:id/ban", middleware.AuthorizePermission(constants.ModerateListings), listingHandlers.Ban)
	adminGroup.Get("/listings/:id/events", middleware.AuthorizePermission(constants.ModerateListings), listingHandlers.Events)
	adminGroup.Post("/scan", middleware.AuthorizePermission(constants.ScanCodes), logisticsHandlers.Scan)
	adminGroup.Get("/depot", middleware.AuthorizePermission(constants.ScanCodes), logisticsHandlers.DepotQueue)
	adminGroup.Get("/pickup", middleware.AuthorizePermission(constants.ScanCodes), logisticsHandlers.AwaitingPickup)
	adminGroup.Get("/payouts", middleware.AuthorizePermission(constants.ProcessPayouts), ledgerHandlers.ListPayouts)
	adminGroup.Post("/payouts/:id", middleware.AuthorizePermission(constants.ProcessPayouts), ledgerHandlers.ProcessPayout)
	adminGroup.Get("/transactions", middleware.AuthorizePermission(constants.ViewTransactions), ledgerHandlers.ListTransactions)

	return app
}
