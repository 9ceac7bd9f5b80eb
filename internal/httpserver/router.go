package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"aimarket/internal/auth"
	"aimarket/internal/httpserver/handlers"
	"aimarket/internal/models"
	"aimarket/internal/services/catalog"
	"aimarket/internal/services/mailer"
)

func NewRouter(db *gorm.DB, svc *catalog.Service, ml mailer.Mailer, chatDelay time.Duration, lg *zap.SugaredLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)

	r.Post("/v1/auth/register", handlers.Register(db, ml, lg))
	r.Post("/v1/auth/login", handlers.Login(db, lg))
	r.Post("/v1/auth/federated", handlers.Federated(db, lg))
	r.Post("/v1/auth/verify", handlers.VerifyEmail(db, lg))
	r.Post("/v1/auth/resend", handlers.ResendVerification(db, ml, lg))

	r.Get("/v1/products", handlers.ListMarketplace(svc))
	r.Get("/v1/products/{id}", handlers.GetProduct(svc))
	r.Get("/v1/products/{id}/image", handlers.ProductImage(svc))

	r.Group(func(protected chi.Router) {
		protected.Use(auth.JWTAuth(db))
		protected.Post("/v1/auth/logout", handlers.Logout(db))
		protected.Get("/v1/me", handlers.Me(db, lg))
		protected.Patch("/v1/me", handlers.UpdateMe(db, lg))
		protected.Get("/v1/logs", handlers.MyLogs(db, lg))

		protected.Group(func(verified chi.Router) {
			verified.Use(auth.RequireVerified(db))

			verified.Group(func(customer chi.Router) {
				customer.Use(auth.RequireRole(models.RoleCustomer))
				customer.Post("/v1/chat", handlers.PostChat(db, chatDelay, lg))
				customer.Get("/v1/chat", handlers.ChatHistory(db, lg))
			})

			verified.Group(func(seller chi.Router) {
				seller.Use(auth.RequireRole(models.RoleStore, models.RoleAdmin))
				seller.Get("/v1/seller/products", handlers.MyProducts(svc))
				seller.Post("/v1/seller/products", handlers.CreateProduct(svc, db, lg))
				seller.Patch("/v1/seller/products/{id}", handlers.UpdateProduct(svc, db, lg))
				seller.Delete("/v1/seller/products/{id}", handlers.DeleteProduct(svc, db, lg))
				seller.Patch("/v1/seller/products/{id}/stock", handlers.SetStock(svc, db, lg))
			})

			verified.Group(func(admin chi.Router) {
				admin.Use(auth.RequireRole(models.RoleAdmin))
				admin.Get("/v1/admin/users", handlers.ListUsers(db, lg))
				admin.Post("/v1/admin/users/promote", handlers.PromoteByEmail(db, lg))
				admin.Patch("/v1/admin/users/{id}/role", handlers.SetRole(db, lg))
			})
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}
