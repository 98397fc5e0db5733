package rest

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// NewRouter registers every endpoint. httprouter allows no static segment
// beside a wildcard at the same position, so direct issue lives under
// /items/:id and the overdue listing is top level.
func NewRouter(items *CatalogHandler, loans *LoanHandler, health *HealthHandler) http.Handler {
	r := httprouter.New()
	r.RedirectTrailingSlash = false
	r.HandleOPTIONS = false

	r.POST("/items", items.Create)
	r.GET("/items", items.List)
	r.GET("/items/:id", items.Get)
	r.PATCH("/items/:id", items.Update)
	r.DELETE("/items/:id", items.Delete)
	r.POST("/items/:id/stock", items.AdjustStock)
	r.POST("/items/:id/issue", loans.Issue)
	r.GET("/stats", items.Stats)

	r.POST("/loans", loans.Request)
	r.GET("/loans/:id", loans.Get)
	r.GET("/loans/:id/history", loans.History)
	r.POST("/loans/:id/approve", loans.Approve)
	r.POST("/loans/:id/reject", loans.Reject)
	r.POST("/loans/:id/collect", loans.Collect)
	r.POST("/loans/:id/return", loans.Return)
	r.GET("/borrowers/:id/loans", loans.ByBorrower)
	r.GET("/overdue-loans", loans.Overdue)

	r.HandlerFunc(http.MethodGet, "/health", health.Health)
	r.HandlerFunc(http.MethodGet, "/health/live", health.Live)
	r.HandlerFunc(http.MethodGet, "/health/ready", health.Ready)

	r.NotFound = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
