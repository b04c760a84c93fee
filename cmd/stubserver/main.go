package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/wordchain/shiritori-client/internal/config"
	"github.com/wordchain/shiritori-client/internal/stubserver"
)

func main() {
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg := config.Load()

	ctx := context.Background()
	h := stubserver.NewHub(ctx)

	// Build the router *with* the hub injected
	handler := stubserver.SetupRoutes(h, log)

	log.Info("listening", zap.String("addr", cfg.ListenAddr))
	if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		log.Fatal("serve failed", zap.Error(err))
	}
}
