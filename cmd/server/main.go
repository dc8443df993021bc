package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/address"
	"storefront/internal/cart"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/identity"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/notification"
	"storefront/internal/order"
	"storefront/internal/product"
	"storefront/internal/rest"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	notifyTimeout   = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()
	log := logger.L()

	database := db.InitDB(cfg)
	defer database.Close()

	if err := db.Migrate(database, "up"); err != nil {
		log.Fatal("migrations failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newServer(cfg, database)
	defer a.close()
	go a.limiter.Run(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("storefront server running", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	a.dispatcher.Wait()

	log.Info("server exited")
}

// app is the wired process: the HTTP handler plus what must be shut down.
type app struct {
	handler    http.Handler
	limiter    *middleware.Limiter
	dispatcher *notification.AsyncDispatcher
	closers    []func() error
}

func newServer(cfg *config.Config, database *sql.DB) *app {
	a := &app{}

	reg := metrics.NewRegistry()
	txm := db.NewTxManager(database)

	// Catalog, optionally behind Redis
	productRepo := product.NewRepository(database)
	var (
		lookup  product.Lookup = productRepo
		evicter product.Evicter
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, rdb.Close)
		cached := product.NewCachedLookup(productRepo, rdb, cfg.ProductCacheTTL)
		lookup, evicter = cached, cached
		logger.L().Info("product cache enabled", zap.String("addr", cfg.RedisAddr))
	}

	// Notifications
	var sender notification.Sender = notification.LogSender{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSender := notification.NewKafkaSender(cfg.KafkaBrokers, cfg.NotificationTopic)
		a.closers = append(a.closers, kafkaSender.Close)
		sender = kafkaSender
		logger.L().Info("kafka notifications enabled", zap.Strings("brokers", cfg.KafkaBrokers))
	}
	dispatcher := notification.NewAsyncDispatcher(sender, notifyTimeout, reg)
	a.dispatcher = dispatcher

	// Core
	cartRepo := cart.NewRepository(database)
	orderRepo := order.NewRepository(database)

	cartSvc := cart.NewService(cartRepo, lookup, txm, cfg.CartTTL)
	merger := cart.NewMerger(cartRepo, txm)
	builder := order.NewBuilder(order.BuilderDeps{
		Carts:    cartRepo,
		Orders:   orderRepo,
		Products: lookup,
		Stock:    productRepo,
		Regions:  address.NewRegionRepository(database),
		Evicter:  evicter,
		Notifier: dispatcher,
		Tx:       txm,
		Metrics:  reg,
	}, order.BuilderConfig{
		PriceTolerance: cfg.PriceTolerance,
		AdminEmail:     cfg.AdminNotifyEmail,
	})
	orderSvc := order.NewService(orderRepo, productRepo, evicter, dispatcher, txm, reg)

	// HTTP
	resolver := identity.NewResolver(cfg.SecretKey, cfg.CartTTL, cfg.AppEnv == "production")
	limiter := middleware.NewLimiter(cfg.InternalSecretKey, rest.StrictPaths...)
	a.limiter = limiter

	handler := rest.NewHandler(rest.HandlerDeps{
		Carts:    cartSvc,
		Merger:   merger,
		Checkout: builder,
		Orders:   orderSvc,
		Guests:   resolver,
		Metrics:  reg,
	})

	a.handler = rest.NewRouter(handler, resolver, limiter, cfg.RequestTimeout)
	return a
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			logger.L().Warn("close failed", zap.Error(err))
		}
	}
}
