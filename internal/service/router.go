package service

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/divvyup/divvy/internal/auth"
	"github.com/divvyup/divvy/internal/middleware"
)

// Services bundles everything the router mounts.
type Services struct {
	Auth     *AuthService
	Identity *IdentityService
	Friends  *FriendService
	Invites  *InviteService
	Groups   *GroupService
	Expenses *ExpenseService
	Admin    *AdminService
}

// NewRouter wires all HTTP routes. Everything under /v1 except auth and the
// invite preview requires a valid session token; the /v1/admin subtree
// additionally requires the operator token.
func NewRouter(svcs Services, jwtManager *auth.JWTManager, adminToken string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/register", svcs.Auth.Register)
		r.Post("/auth/login", svcs.Auth.Login)

		// Anonymous invite preview, so the landing page works before sign-in.
		r.With(middleware.OptionalAuth(jwtManager)).
			Get("/invites/{token}", svcs.Invites.Preview)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(jwtManager))

			r.Get("/identity/resolve", svcs.Identity.Resolve)
			r.Post("/identity/merge", svcs.Identity.Merge)

			r.Get("/friends", svcs.Friends.List)
			r.Post("/friends", svcs.Friends.Add)
			r.Post("/friends/merge", svcs.Identity.MergeFriends)
			r.Delete("/friends/{memberID}", svcs.Friends.Remove)

			r.Post("/invites", svcs.Invites.Create)
			r.Post("/invites/{token}/claim", svcs.Invites.Claim)

			r.Route("/groups", func(r chi.Router) {
				r.Post("/", svcs.Groups.Create)
				r.Get("/", svcs.Groups.List)
				r.Get("/{groupID}", svcs.Groups.Get)
				r.Put("/{groupID}", svcs.Groups.Update)
				r.Delete("/{groupID}", svcs.Groups.Delete)
				r.Get("/{groupID}/balances", svcs.Groups.Balances)
			})

			r.Route("/expenses", func(r chi.Router) {
				r.Post("/", svcs.Expenses.Create)
				r.Get("/", svcs.Expenses.List)
				r.Get("/{expenseID}", svcs.Expenses.Get)
				r.Put("/{expenseID}", svcs.Expenses.Update)
				r.Delete("/{expenseID}", svcs.Expenses.Delete)
			})

			r.Delete("/account", svcs.Admin.DeleteSelf)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin(adminToken))
				r.Delete("/accounts/{email}", svcs.Admin.HardDelete)
				r.Post("/janitor/run", svcs.Admin.RunJanitor)
			})
		})
	})

	return r
}
