package front

import (
	"github.com/edgegate/edgegate/internal/config"
	"github.com/edgegate/edgegate/internal/csrf"
	handlers "github.com/edgegate/edgegate/internal/http/api/front/handlers"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterFrontRoutes registers the user-facing routes. All of them sit
// behind the admission middleware registered on the engine.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, csrfService *csrf.Service, secureCookies bool) {
	if r == nil || db == nil {
		return
	}

	authHandler := handlers.NewAuthHandler(db, jwtCfg, csrfService, secureCookies)
	r.POST("/v0/auth/login", authHandler.Login)
	r.POST("/v0/auth/logout", authHandler.Logout)
	r.GET("/v0/csrf", authHandler.Token)

	resourceHandler := handlers.NewResourceHandler(db)
	r.GET("/v0/data", resourceHandler.ListData)
	r.POST("/v0/data", resourceHandler.CreateData)
	r.POST("/v0/data/export", resourceHandler.ExportData)
	r.POST("/v0/team/invite", resourceHandler.InviteTeamMember)
	r.POST("/v0/account/delete", resourceHandler.DeleteAccount)
	r.GET("/v0/public/status", resourceHandler.PublicStatus)

	aiHandler := handlers.NewAIHandler(db)
	r.POST("/v0/ai/complete", aiHandler.Complete)
}
