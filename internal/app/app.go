// Package app wires the admission components together and runs the HTTP
// server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/edgegate/edgegate/internal/admission"
	"github.com/edgegate/edgegate/internal/block"
	"github.com/edgegate/edgegate/internal/config"
	"github.com/edgegate/edgegate/internal/csrf"
	"github.com/edgegate/edgegate/internal/db"
	"github.com/edgegate/edgegate/internal/ddos"
	adminapi "github.com/edgegate/edgegate/internal/http/api/admin"
	"github.com/edgegate/edgegate/internal/http/api/front"
	"github.com/edgegate/edgegate/internal/models"
	"github.com/edgegate/edgegate/internal/ratelimit"
	internalsettings "github.com/edgegate/edgegate/internal/settings"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Background maintenance cadences.
const (
	sweepInterval          = time.Minute
	settingsReloadInterval = 30 * time.Second
	shutdownTimeout        = 10 * time.Second
)

// ConfigExists reports whether the config file is present.
func ConfigExists(configPath string) bool {
	info, errStat := os.Stat(configPath)
	return errStat == nil && !info.IsDir()
}

// resolveDSN loads the database DSN, failing early with a pointed
// message when neither the config file nor the env override exists.
func resolveDSN(configPath string) (string, error) {
	if !ConfigExists(configPath) && strings.TrimSpace(os.Getenv(config.EnvDBConnection)) == "" {
		return "", fmt.Errorf("config file %s not found (provide -config or set %s)", configPath, config.EnvDBConnection)
	}
	return config.LoadDatabaseDSN(configPath)
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := resolveDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the admission gateway with database-backed components.
func RunServer(ctx context.Context, cfg config.AppConfig, defaultPort int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := resolveDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errReload := internalsettings.Reload(conn); errReload != nil {
		return errReload
	}

	jwtConfig, _ := config.LoadJWTConfig(configPath)
	if strings.TrimSpace(jwtConfig.Secret) == "" {
		return errors.New("jwt secret is required (set jwt.secret or env JWT_SECRET)")
	}
	admissionConfig, errAdmission := config.LoadAdmissionConfig(configPath)
	if errAdmission != nil {
		return errAdmission
	}
	csrfSecret := strings.TrimSpace(admissionConfig.CSRFSecret)
	if csrfSecret == "" {
		csrfSecret = jwtConfig.Secret
	}
	csrfService, errCSRF := csrf.NewService(csrfSecret, nil)
	if errCSRF != nil {
		return errCSRF
	}

	memoryLimiter := ratelimit.NewMemoryLimiter(admissionConfig.CounterMaxKeys, admissionConfig.CounterIdleTTL)
	limiter := ratelimit.NewManager(nil, nil, memoryLimiter, nil)
	registry := block.NewRegistry(conn, nil)
	detector := ddos.NewDetector(nil, 0)

	pipeline := &admission.Pipeline{
		DB:          conn,
		Limiter:     limiter,
		Policies:    buildPolicies(admissionConfig),
		Blocks:      registry,
		Detector:    detector,
		CSRF:        csrfService,
		Routes:      admission.DefaultRoutes().Merge(admissionConfig.ExemptPaths, admissionConfig.CSRFExemptPaths, admissionConfig.AIPaths),
		ResolveTier: resolveUserTier,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(admission.SessionMiddleware(jwtConfig.Secret))
	engine.Use(pipeline.Middleware())

	adminapi.RegisterAdminRoutes(engine, conn, jwtConfig, registry)
	front.RegisterFrontRoutes(engine, conn, jwtConfig, csrfService, pipeline.SecureCookies)

	go runMaintenance(ctx, conn, registry, memoryLimiter)

	if defaultPort <= 0 {
		defaultPort = 8318
	}
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", defaultPort),
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("starting admission gateway on %s config=%s", server.Addr, configPath)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// buildPolicies layers the config file's policy entries over the
// built-in defaults.
func buildPolicies(cfg config.AdmissionConfig) *ratelimit.Policies {
	policies := ratelimit.DefaultPolicies()
	for _, entry := range cfg.Policies {
		policies.Set(ratelimit.Policy{
			RouteClass:  ratelimit.RouteClass(strings.TrimSpace(entry.RouteClass)),
			Tier:        ratelimit.Tier(strings.TrimSpace(entry.Tier)),
			Window:      entry.Window,
			MaxRequests: entry.MaxRequests,
			Message:     entry.Message,
		})
	}
	for _, entry := range cfg.AIPolicies {
		policies.SetAI(ratelimit.Policy{
			Tier:        ratelimit.Tier(strings.TrimSpace(entry.Tier)),
			Window:      entry.Window,
			MaxRequests: entry.MaxRequests,
			Message:     entry.Message,
		})
	}
	for _, entry := range cfg.Overrides {
		policies.SetOverride(entry.Path, ratelimit.Policy{
			Window:      entry.Window,
			MaxRequests: entry.MaxRequests,
			Message:     entry.Message,
		})
	}
	return policies
}

// resolveUserTier looks up the caller's tier from the users table.
func resolveUserTier(ctx context.Context, conn *gorm.DB, userID uint64) (ratelimit.Tier, error) {
	if conn == nil || userID == 0 {
		return ratelimit.TierFree, nil
	}
	var user models.User
	if errFind := conn.WithContext(ctx).Select("tier", "active").First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ratelimit.TierFree, nil
		}
		return "", errFind
	}
	if !user.Active || user.Tier == "" {
		return ratelimit.TierFree, nil
	}
	return ratelimit.Tier(user.Tier), nil
}

// runMaintenance periodically sweeps expired state and refreshes the
// settings snapshot until the context is canceled.
func runMaintenance(ctx context.Context, conn *gorm.DB, registry *block.Registry, memoryLimiter *ratelimit.MemoryLimiter) {
	sweepTicker := time.NewTicker(sweepInterval)
	reloadTicker := time.NewTicker(settingsReloadInterval)
	defer sweepTicker.Stop()
	defer reloadTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweepTicker.C:
			if errSweep := registry.Sweep(ctx); errSweep != nil {
				log.WithError(errSweep).Warn("block sweep failed")
			}
			memoryLimiter.SweepExpired(time.Now())
		case <-reloadTicker.C:
			if errReload := internalsettings.Reload(conn); errReload != nil {
				log.WithError(errReload).Warn("settings reload failed")
			}
		}
	}
}
