package api

import (
	"strconv"

	"locker/internal/server/config"
	"locker/internal/server/web"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupRouter creates and configures the echo router with all routes and middleware.
func SetupRouter(handler *Handler, cfg *config.Config) (*echo.Echo, error) {
	renderer, err := web.NewRenderer()
	if err != nil {
		return nil, err
	}
	bodyLimit, err := cfg.BodyLimitBytes()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer

	// Global middleware
	e.Use(RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(strconv.FormatInt(bodyLimit, 10) + "B"))
	e.Use(SessionLoader(handler.sessions))

	// Upload and login are rate-limited per IP
	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// Always reachable
	e.GET("/health", handler.HandleHealth)
	e.StaticFS("/static", web.Static())
	e.GET("/initialize", handler.HandleInitializePage)
	e.POST("/initialize", handler.HandleInitialize)

	// Everything else waits for first-run setup
	site := e.Group("", RequireInitialized(handler.locker))

	site.GET("/", handler.HandleIndex)
	site.GET("/upload", handler.HandleUploadPage)
	site.POST("/upload", handler.HandleUpload, limiter.Middleware())
	site.GET("/verify_code", handler.HandleVerifyCode)
	site.POST("/update_code_and_expiry", handler.HandleRotateCode)
	site.GET("/download", handler.HandleDownload)
	site.GET("/read_admin_config", handler.HandleReadAdminConfig)
	site.GET("/get_announcement", handler.HandleGetAnnouncement)
	site.GET("/css/all/bg.png", handler.HandleBackground)

	site.GET("/admin/login", handler.HandleLoginPage)
	site.POST("/admin/login", handler.HandleLogin, limiter.Middleware())

	admin := site.Group("/admin", RequireAdmin())
	admin.GET("/panel", handler.HandlePanel)
	admin.GET("/logout", handler.HandleLogout)
	admin.GET("/delete_file/:code", handler.HandleDeleteFile)
	admin.POST("/update_expire/:code", handler.HandleUpdateExpire)
	admin.POST("/update_settings", handler.HandleUpdateSettings)

	return e, nil
}
