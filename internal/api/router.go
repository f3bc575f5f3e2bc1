package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ismafavesco/Esifi/internal/api/handlers"
	"github.com/ismafavesco/Esifi/internal/api/middleware"
	"github.com/ismafavesco/Esifi/internal/auth"
	"github.com/ismafavesco/Esifi/internal/billing"
	"github.com/ismafavesco/Esifi/internal/cache"
	"github.com/ismafavesco/Esifi/internal/config"
	"github.com/ismafavesco/Esifi/internal/humanizer"
	"github.com/ismafavesco/Esifi/internal/llm"
	"github.com/ismafavesco/Esifi/internal/queue"
	"github.com/ismafavesco/Esifi/internal/quota"
	"github.com/ismafavesco/Esifi/internal/speech"
	"github.com/ismafavesco/Esifi/internal/store"
	"github.com/ismafavesco/Esifi/internal/subscription"
	"github.com/ismafavesco/Esifi/internal/usage"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	st    store.Store
	jwt   *auth.JWTMiddleware
	llmGW llm.Gateway
}

// NewRouter wires the service graph. A nil db pool falls back to the
// in-memory store so the API still comes up for local development.
func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	var st store.Store
	if db != nil {
		st = store.NewPostgres(db)
	} else {
		st = store.NewMemory()
	}

	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		st:    st,
		jwt:   auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
		llmGW: llm.NewGateway(cfg.LLM),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{rt.cfg.Billing.FrontendURL}))

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Core services
	var subCache *cache.Cache
	if rt.redis != nil {
		subCache = cache.NewCache(rt.redis)
	}
	ledger := usage.NewLedger(rt.st)
	resolver := subscription.NewResolver(rt.st, subCache, rt.cfg.Limits.GraceWindow)
	gate := quota.NewGate(ledger, resolver, rt.cfg.Limits.FreeLimit)

	humanizerClient := humanizer.NewClient(humanizer.Config{
		APIKey:          rt.cfg.Humanizer.APIKey,
		BaseURL:         rt.cfg.Humanizer.BaseURL,
		PollInterval:    rt.cfg.Limits.PollInterval,
		MaxPollAttempts: rt.cfg.Limits.MaxPollAttempts,
	})
	speechClient := speech.NewClient(speech.Config{
		APIKey:  rt.cfg.Speech.APIKey,
		BaseURL: rt.cfg.Speech.BaseURL,
		ModelID: rt.cfg.Speech.ModelID,
	})

	var archiver handlers.Archiver
	if rt.redis != nil {
		archiver = queue.NewClient(rt.cfg.Redis)
	}

	billingSvc := billing.NewService(rt.st, resolver, rt.cfg.Billing)
	billingH := handlers.NewBillingHandler(billingSvc, rt.cfg.Billing.WebhookSecret)

	// Stripe calls this; it authenticates by signature, not session.
	r.Post("/stripe/webhook", billingH.Webhook)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		rl := middleware.NewRateLimiter(10, 30)
		r.Use(rl.Limit)

		convH := handlers.NewConversationHandler(rt.llmGW, gate, archiver, rt.st)
		r.Post("/conversation", convH.Chat)
		r.Post("/conversation/save", convH.Save)
		r.Get("/conversations", convH.List)

		writerH := handlers.NewTextWriterHandler(rt.llmGW, humanizerClient, gate)
		r.Post("/text-writer", writerH.Write)

		speechH := handlers.NewSpeechHandler(speechClient, gate)
		r.Post("/speech", speechH.Generate)

		usageH := handlers.NewUsageHandler(gate)
		r.Get("/usage", usageH.Get)

		modelsH := handlers.NewModelsHandler(rt.llmGW)
		r.Get("/models", modelsH.List)

		r.Post("/billing/checkout", billingH.Checkout)
	})

	return r
}
