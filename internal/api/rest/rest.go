package rest

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler) {
	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		// Mint endpoints
		v1.POST("/mints", handler.CreateMint)
		v1.GET("/mints/:mint", handler.GetMint)
		v1.GET("/mints/:mint/audit", handler.AuditMint)
		v1.POST("/mints/:mint/authority", handler.SetMintAuthority)
		v1.POST("/mints/:mint/metadata", handler.AttachMetadata)
		v1.POST("/mints/:mint/mint-to", handler.MintTo)

		// Account endpoints
		v1.POST("/accounts", handler.CreateAccount)
		v1.GET("/accounts/:account", handler.GetAccount)
		v1.GET("/accounts/:account/balance", handler.GetBalance)
		v1.POST("/accounts/:account/transfer", handler.Transfer)
		v1.POST("/accounts/:account/burn", handler.Burn)
		v1.POST("/accounts/:account/approve", handler.Approve)
		v1.POST("/accounts/:account/revoke", handler.Revoke)
		v1.POST("/accounts/:account/authority", handler.SetAccountOwner)
		v1.POST("/accounts/:account/freeze", handler.FreezeAccount)
		v1.POST("/accounts/:account/thaw", handler.ThawAccount)
		v1.POST("/accounts/:account/close", handler.CloseAccount)

		// Query endpoints
		v1.GET("/owners/:owner/accounts", handler.AccountsByOwner)
		v1.GET("/receipts/:id", handler.GetReceipt)
	}
}
