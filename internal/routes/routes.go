package routes

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/stancevote/stancevote/internal/ballot"
	"github.com/stancevote/stancevote/internal/candidate"
	"github.com/stancevote/stancevote/internal/config"
	"github.com/stancevote/stancevote/internal/deviceslot"
	"github.com/stancevote/stancevote/internal/middleware"
	"github.com/stancevote/stancevote/internal/notify"
	"github.com/stancevote/stancevote/internal/phone"
	"github.com/stancevote/stancevote/internal/ratelimit"
	"github.com/stancevote/stancevote/internal/screening"
	"github.com/stancevote/stancevote/internal/suppress"
	"github.com/stancevote/stancevote/internal/token"
	"github.com/stancevote/stancevote/internal/verify"
	"github.com/stancevote/stancevote/internal/vote"
)

// Deps aggregates shared dependencies required to wire routes. Dispatcher is
// optional; when the caller owns one (so it can drain it on shutdown) it is
// used, otherwise Setup creates its own.
type Deps struct {
	Cfg        config.Config
	DB         *pgxpool.Pool
	Cache      *redis.Client
	Logger     *slog.Logger
	Dispatcher *notify.Dispatcher
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Outside dev the stores are mandatory; memory fallbacks are for local
	// hacking and tests only.
	if !isDev(d.Cfg.AppEnv) {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	RegisterHealthRoutes(app, d)

	hasher, err := phone.NewHasher(d.Cfg.FingerprintSalt)
	if err != nil {
		return err
	}
	tokens, err := token.NewService(d.Cfg.TokenSecret, d.Cfg.CredentialTTL)
	if err != nil {
		return err
	}

	var limiter ratelimit.Limiter
	if d.Cache != nil {
		limiter = ratelimit.NewRedis(d.Cache)
	} else {
		limiter = ratelimit.NewMemory()
	}

	var slots deviceslot.Guard
	if d.Cache != nil {
		slots = deviceslot.NewRedisGuard(d.Cache, d.Cfg.DeviceSlotCap, d.Cfg.BallotLinkTTL, d.Logger)
	} else {
		slots = deviceslot.NoopGuard{}
	}

	var captcha screening.CaptchaVerifier
	if d.Cfg.CaptchaURL != "" {
		captcha = screening.NewHTTPCaptchaVerifier(d.Cfg.CaptchaURL, d.Cfg.CaptchaSecret, d.Cfg.CaptchaTimeout)
	} else if isDev(d.Cfg.AppEnv) {
		captcha = screening.StaticCaptcha{Pass: true}
	} else {
		return fmt.Errorf("CAPTCHA_VERIFY_URL is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	var screen screening.PhoneTypeScreen
	if d.Cfg.LookupURL != "" {
		screen = screening.NewHTTPPhoneTypeScreen(d.Cfg.LookupURL, d.Cfg.LookupTimeout, d.Logger)
	} else {
		// No lookup configured: everything classifies unknown and passes.
		screen = screening.StaticPhoneTypeScreen{Type: screening.LineUnknown}
	}

	var (
		verifyRepo    verify.Repository
		voteRepo      vote.Repository
		ballotRepo    ballot.Repository
		candidateRepo candidate.Repository
		suppressRepo  suppress.Repository
	)
	if d.DB != nil {
		verifyRepo = verify.NewPostgresRepository(d.DB)
		voteRepo = vote.NewPostgresRepository(d.DB)
		ballotRepo = ballot.NewPostgresRepository(d.DB)
		candidateRepo = candidate.NewPostgresRepository(d.DB)
		suppressRepo = suppress.NewPostgresRepository(d.DB)
	} else {
		verifyRepo = verify.NewMemoryRepository()
		voteRepo = vote.NewMemoryRepository()
		ballotRepo = ballot.NewMemoryRepository()
		candidateRepo = candidate.NewMemoryRepository()
		suppressRepo = suppress.NewMemoryRepository()
	}

	sender := notify.NewLoggerSender(d.Logger)
	dispatcher := d.Dispatcher
	if dispatcher == nil {
		dispatcher = notify.NewDispatcher(d.Logger)
	}
	registry := suppress.NewRegistry(suppressRepo)
	votes := vote.NewLedger(voteRepo, tokens)

	verifySvc := verify.NewService(verifyRepo, limiter, captcha, registry, tokens, sender, hasher, d.Logger, verify.Config{
		CodeLength:           d.Cfg.CodeLength,
		CodeTTL:              d.Cfg.CodeTTL,
		MaxAttempts:          d.Cfg.CodeMaxAttempts,
		CodesPerPhonePerHour: d.Cfg.CodesPerPhonePerHour,
		GlobalSMSPerHour:     d.Cfg.GlobalSMSPerHour,
		ConfirmsPerMin:       d.Cfg.ConfirmsPerPhonePerMin,
	})
	ballotSvc := ballot.NewService(ballotRepo, votes, limiter, registry, screen, slots, sender, hasher, d.Logger, ballot.Config{
		LinkTTL:             d.Cfg.BallotLinkTTL,
		BaseURL:             d.Cfg.BallotBaseURL,
		LinksPerPhonePerDay: d.Cfg.LinksPerPhonePerDay,
		GlobalSMSPerHour:    d.Cfg.GlobalSMSPerHour,
	})
	candidateSvc := candidate.NewService(candidateRepo, votes, registry, dispatcher, sender,
		d.Cfg.AdminEmail, d.Logger)

	verifyHandler := verify.NewHandler(verifySvc)
	voteHandler := vote.NewHandler(votes)
	ballotHandler := ballot.NewHandler(ballotSvc)
	candidateHandler := candidate.NewHandler(candidateSvc, ballotSvc)

	api := app.Group("/api/v1")

	api.Post("/verify/request", verifyHandler.RequestCode)
	api.Post("/verify/confirm", verifyHandler.ConfirmCode)

	api.Post("/votes", voteHandler.Cast)
	api.Get("/votes/tally", voteHandler.Tally)

	api.Post("/ballot/send", ballotHandler.Send)
	api.Get("/ballot/:token", ballotHandler.Check)
	api.Post("/ballot/:token/redeem", ballotHandler.Redeem)

	api.Get("/candidates", candidateHandler.List)
	api.Post("/candidates", candidateHandler.Register)
	api.Post("/candidates/:id/claim", candidateHandler.Claim)

	RegisterOptOutRoute(api, registry, hasher)

	return nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
