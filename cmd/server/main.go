package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"workspace-portal/internal/api"
	"workspace-portal/internal/auth"
	"workspace-portal/internal/biz"
	"workspace-portal/internal/conf"
	"workspace-portal/internal/data"
	"workspace-portal/internal/server"
	"workspace-portal/internal/service"
)

var flagconf string

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	// load config
	cfg, err := conf.Load(flagconf)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// manual dependency injection
	// data layer
	sessionRepo, err := newSessionRepo(cfg.Server.SessionDB, logger)
	if err != nil {
		logger.Error("failed to init session repo", "error", err)
		os.Exit(1)
	}
	defer sessionRepo.Close()

	// auth layer
	var oidcOpts []auth.OIDCOption
	oidcOpts = append(oidcOpts, auth.WithOIDCLogger(logger))
	if cfg.Auth.Issuer != "" {
		verifier, err := auth.NewVerifier(ctx, cfg.Auth.Issuer, cfg.Auth.ClientID)
		if err != nil {
			logger.Error("failed to init ID token verifier", "error", err)
			os.Exit(1)
		}
		oidcOpts = append(oidcOpts, auth.WithVerifier(verifier))
		logger.Info("ID token signature verification enabled", "issuer", cfg.Auth.Issuer)
	}
	oidcClient := auth.NewOIDCClient(&cfg.Auth, oidcOpts...)
	gateway := auth.NewGatewayClient(cfg.Auth.APIEndpoint, cfg.Auth.APIKey, auth.WithGatewayLogger(logger))
	refresher := auth.NewRefresher(gateway, auth.WithRefresherLogger(logger))
	arborist := auth.NewArboristClient(cfg.Authorization.ArboristURI, resources(cfg.Authorization.Resources), refresher,
		auth.WithArboristLogger(logger))
	callback := auth.NewCallbackController(oidcClient, gateway, logger)
	logger.Info("OIDC login configured", "redirect_uri", cfg.Auth.RedirectURI, "idp", cfg.Auth.IdentityProvider)

	trustedProxies, err := cfg.RateLimit.ProxyPrefixes()
	if err != nil {
		logger.Error("invalid trusted proxies", "error", err)
		os.Exit(1)
	}

	// biz layer
	workspaceUsecase := biz.NewWorkspaceUsecase(data.NewWorkspaceRepo(cfg.Auth.APIEndpoint, refresher))
	// service layer
	workspaceService := service.NewWorkspaceService(workspaceUsecase)
	// api layer
	router := api.NewRouter(api.RouterDeps{
		Sessions:      sessionRepo,
		Health:        sessionRepo,
		SecureCookies: cfg.Server.CookieSecure,
		OIDC:          oidcClient,
		Arborist:      arborist,
		Auth:          api.NewAuthHandler(oidcClient, callback, arborist, logger),
		Workspaces:    api.NewWorkspaceHandler(workspaceService, arborist, logger),
		LoginThrottle: api.RateLimitByIP(api.RateLimitConfig{
			Requests:       cfg.RateLimit.Requests,
			Window:         cfg.RateLimit.Window,
			Burst:          cfg.RateLimit.Burst,
			TrustedProxies: trustedProxies,
		}, logger),
	})

	go server.NewHousekeeping(sessionRepo, cfg.Server.SessionIdle, 0, logger).Run(ctx)

	if err := server.NewHTTPServer(cfg.Server.Addr, router, logger).Run(ctx); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newSessionRepo(path string, logger *slog.Logger) (data.SessionRepo, error) {
	if path == "memory" {
		logger.Warn("sessions are kept in memory and will not survive a restart")
		return data.NewMemorySessionRepo(), nil
	}
	return data.NewSQLiteSessionRepo(path, logger)
}

func resources(r conf.Resources) auth.Resources {
	convert := func(res conf.Resource) auth.ResourceConfig {
		return auth.ResourceConfig{Resource: res.Resource, Service: res.Service}
	}
	return auth.Resources{
		Admin:   convert(r.Admin),
		Credits: convert(r.Credits),
		Grants:  convert(r.Grants),
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
