package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/sharedlists-backend/api/controllers"
	"github.com/angelmondragon/sharedlists-backend/api/middleware"
	"github.com/angelmondragon/sharedlists-backend/internal/auth"
	"github.com/angelmondragon/sharedlists-backend/internal/items"
	"github.com/angelmondragon/sharedlists-backend/internal/lists"
	"github.com/angelmondragon/sharedlists-backend/internal/members"
	"github.com/angelmondragon/sharedlists-backend/internal/suggestions"
	"github.com/angelmondragon/sharedlists-backend/pkg/auth/session"
	"github.com/angelmondragon/sharedlists-backend/pkg/config"
	"github.com/angelmondragon/sharedlists-backend/pkg/logger"
	"github.com/angelmondragon/sharedlists-backend/pkg/metrics"
	"github.com/angelmondragon/sharedlists-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface is wired to.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	Redis    *redis.Client
	Sessions session.AccessSessionChecker
	Pingers  map[string]controllers.Pinger
	Gatherer prometheus.Gatherer
	Metrics  *metrics.HTTPMetrics

	Auth        auth.Service
	Lists       lists.Service
	Items       items.Service
	Members     members.Service
	Suggestions suggestions.Service
	Live        controllers.LiveUpgrader
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
		p.Metrics.Middleware,
	)

	loginPolicy := middleware.LoginPolicy(cfg.AuthRateLimit)
	registerPolicy := middleware.RegisterPolicy(cfg.AuthRateLimit)

	// Leave the interfaces nil without Redis so the middlewares pass through.
	var (
		counter     middleware.RateCounter
		window      middleware.FixedWindowStore
		idempotency redis.IdempotencyStore
	)
	if p.Redis != nil {
		counter, window, idempotency = p.Redis, p.Redis, p.Redis
	}
	apiLimit := middleware.APIRateLimit(cfg.APIRateLimit.Limit, cfg.APIRateLimit.Window, window, logg)
	requireAuth := middleware.Auth(cfg.JWT, p.Sessions, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Pingers))
	})
	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, counter, logg), middleware.Idempotency(idempotency, logg)).
			Post("/register", controllers.AuthRegister(p.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, counter, logg)).
			Post("/login", controllers.AuthLogin(p.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.Auth, logg))

		r.Group(func(r chi.Router) {
			r.Use(requireAuth, apiLimit)
			r.Post("/logout", controllers.AuthLogout(p.Auth, logg))
			r.Get("/me", controllers.AuthProfile(p.Auth, logg))
			r.Put("/me", controllers.AuthUpdateProfile(p.Auth, logg))
			r.Put("/me/password", controllers.AuthChangePassword(p.Auth, logg))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.LiveAuth(cfg.JWT, p.Sessions, logg), apiLimit).
			Get("/realtime", controllers.RealtimeConnect(p.Live, logg))

		r.Group(func(r chi.Router) {
			r.Use(requireAuth, apiLimit, middleware.Idempotency(idempotency, logg))

			r.Route("/lists", func(r chi.Router) {
				r.Get("/", controllers.ListsIndex(p.Lists, logg))
				r.Post("/", controllers.ListsCreate(p.Lists, logg))

				r.Route("/{listId}", func(r chi.Router) {
					r.Get("/", controllers.ListsGet(p.Lists, logg))
					r.Put("/", controllers.ListsUpdate(p.Lists, logg))
					r.Delete("/", controllers.ListsDelete(p.Lists, logg))
					r.Patch("/archive", controllers.ListsArchive(p.Lists, logg))
					r.Get("/sync", controllers.ListsSync(p.Lists, logg))
					r.Post("/leave", controllers.MembersLeave(p.Members, logg))

					r.Route("/items", func(r chi.Router) {
						r.Get("/", controllers.ItemsIndex(p.Items, logg))
						r.Post("/", controllers.ItemsCreate(p.Items, logg))
						r.Post("/clear-checked", controllers.ItemsClearChecked(p.Items, logg))
						r.Post("/reorder", controllers.ItemsReorder(p.Items, logg))
						r.Put("/{itemId}", controllers.ItemsUpdate(p.Items, logg))
						r.Delete("/{itemId}", controllers.ItemsDelete(p.Items, logg))
						r.Patch("/{itemId}/check", controllers.ItemsToggleCheck(p.Items, logg))
					})

					r.Route("/members", func(r chi.Router) {
						r.Get("/", controllers.MembersIndex(p.Members, logg))
						r.Post("/", controllers.MembersAdd(p.Members, logg))
						r.Put("/{userId}", controllers.MembersUpdateRole(p.Members, logg))
						r.Delete("/{userId}", controllers.MembersRemove(p.Members, logg))
					})
				})
			})

			r.Route("/suggestions", func(r chi.Router) {
				r.Get("/", controllers.SuggestionsSearch(p.Suggestions, logg))
				r.Get("/common", controllers.SuggestionsCommon(p.Suggestions, logg))
				r.Get("/category/{category}", controllers.SuggestionsByCategory(p.Suggestions, logg))
			})
		})
	})

	return r
}
