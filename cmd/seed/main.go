package main

import (
	"context"
	"flag"
	"log"
	"time"

	"storefront/config"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

func main() {
	imageBase := flag.String("image-base", "https://cdn.example.com/candles/", "prefix for product image URLs")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := util.InitLogger(cfg.Server.Env, cfg.Observ.LogFile); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	db, err := store.NewStore(cfg.Database.URL, store.Options{
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	n, err := db.SeedProducts(ctx, *imageBase)
	if err != nil {
		logger.Fatal("Failed to seed products", zap.Error(err))
	}
	if n == 0 {
		logger.Info("Products table already populated, nothing to do")
		return
	}
	logger.Info("Seeded products", zap.Int("count", n))
}
