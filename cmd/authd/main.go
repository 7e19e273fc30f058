// Command authd runs the authentication service: the HTTP API backed by
// PostgreSQL for credentials and tokens and Redis for the access-token
// blacklist.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dentara/authcore"
	"github.com/dentara/authcore/httpapi"
	"github.com/dentara/authcore/internal/metrics"
	"github.com/dentara/authcore/jwt"
	"github.com/dentara/authcore/password"
	"github.com/dentara/authcore/pgstore"
)

func main() {
	fx.New(
		fx.Provide(
			authcore.LoadConfig,
			newLogger,
			newPool,
			newRedis,
			newStore,
			newBlacklist,
			newJWTManager,
			newHasher,
			newMailer,
			metrics.New,
			newTokenService,
			newAuthService,
			newHandler,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(registerHTTPServer),
	).Run()
}

func newLogger(cfg authcore.Config) (*zap.Logger, error) {
	if cfg.Production() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func newPool(lc fx.Lifecycle, cfg authcore.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})
	return pool, nil
}

func newRedis(lc fx.Lifecycle, cfg authcore.Config) redis.UniversalClient {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

func newStore(pool *pgxpool.Pool, log *zap.Logger) (authcore.CredentialStore, authcore.TokenStore) {
	store := pgstore.New(pool, log)
	return store, store
}

func newBlacklist(client redis.UniversalClient) authcore.RevocationCache {
	return authcore.NewRedisBlacklist(client)
}

func newJWTManager(cfg authcore.Config) (*jwt.Manager, error) {
	return jwt.NewManager(jwt.Config{
		Secret:    []byte(cfg.JWTSecret),
		AccessTTL: cfg.AccessTTL,
		Issuer:    cfg.JWTIssuer,
		Leeway:    30 * time.Second,
	})
}

func newHasher() (*password.Hasher, error) {
	return password.NewHasher(password.DefaultConfig())
}

func newMailer(cfg authcore.Config, log *zap.Logger) authcore.Mailer {
	if cfg.Production() {
		// Outbound mail is owned by a separate delivery worker; production
		// deployments plug a real mailer in here.
		return authcore.NopMailer{}
	}
	return authcore.LogMailer{Log: log}
}

func newTokenService(manager *jwt.Manager, store authcore.TokenStore, cache authcore.RevocationCache, cfg authcore.Config, log *zap.Logger, m *metrics.Metrics) *authcore.TokenService {
	return authcore.NewTokenService(manager, store, cache, cfg, log, m)
}

func newAuthService(creds authcore.CredentialStore, tokens *authcore.TokenService, hasher *password.Hasher, mailer authcore.Mailer, log *zap.Logger, m *metrics.Metrics) *authcore.AuthService {
	return authcore.NewAuthService(creds, tokens, hasher, mailer, log, m)
}

func newHandler(auth *authcore.AuthService, tokens *authcore.TokenService, log *zap.Logger) *httpapi.Handler {
	return httpapi.NewHandler(auth, tokens, log)
}

func registerHTTPServer(lc fx.Lifecycle, cfg authcore.Config, handler *httpapi.Handler, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
