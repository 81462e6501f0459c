package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/maincard-gg/card-arena/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Read endpoints (public)
		v1.GET("/assets/:id", handler.GetAsset)
		v1.GET("/events/:id", handler.GetEvent)
		v1.GET("/accounts/:address/assets", handler.ListAccountAssets)
		v1.GET("/accounts/:address/nonce", handler.GetAccountNonce)
		v1.GET("/accounts/:address/balance", handler.GetAccountBalance)
		v1.GET("/accounts/:address/wagers", handler.ListAccountWagers)
		v1.GET("/accounts/:address/calls", handler.ListAccountCalls)

		// Registry operations
		v1.POST("/assets/mint", middleware.Auth(authCfg), handler.Mint)
		v1.POST("/assets/mint/paid", handler.MintPaid)
		v1.POST("/assets/merge", handler.Merge)
		v1.POST("/assets/:id/burn", handler.Burn)
		v1.POST("/assets/:id/transfer", handler.Transfer)
		v1.POST("/assets/:id/restore-life", handler.RestoreLife)
		v1.PUT("/tariffs", middleware.Auth(authCfg), handler.SetTariff)

		// Arena operations
		v1.POST("/events", middleware.Auth(authCfg), handler.CreateEvent)
		v1.POST("/events/:id/result", middleware.Auth(authCfg), handler.SetEventResult)
		v1.POST("/wagers", handler.MakeBet)
		v1.POST("/wagers/delegated", handler.MakeBetsDelegated)
		v1.POST("/wagers/:asset_id/take", handler.TakeCard)
		v1.POST("/calls", handler.CreateCall)
		v1.POST("/calls/:id/accept", handler.AcceptCall)

		// Capability administration (requires authentication)
		v1.POST("/capabilities", middleware.Auth(authCfg), handler.GrantCapability)
		v1.DELETE("/capabilities", middleware.Auth(authCfg), handler.RevokeCapability)
	}
}
