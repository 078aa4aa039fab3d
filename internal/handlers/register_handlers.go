package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/hanoutiya/hanoutiya-core/internal/core/services"
)

// RegisterRoutes sets up the gateway routes over the store service. The
// gateway is a caller of the core's operation API; everything it exposes
// maps 1:1 onto a core operation or a live snapshot read.
func RegisterRoutes(r *gin.Engine, store *services.StoreService) {
	r.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	v1 := r.Group("/api/v1")

	registerProductRoutes(v1, store)
	registerCustomerRoutes(v1, store)
	registerSupplierRoutes(v1, store)
	registerTransactionRoutes(v1, store)
	registerSettingsRoutes(v1, store)
}
