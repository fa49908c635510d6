package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"storefront/internal/paymentsim"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	opts := paymentsim.DefaultOptions()
	if v := os.Getenv("PAYMENT_SIM_SUCCESS_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil || rate < 0 || rate > 1 {
			logger.Fatal("PAYMENT_SIM_SUCCESS_RATE must be between 0 and 1", zap.String("value", v))
		}
		opts.SuccessRate = rate
	}

	addr := ":5050"
	if v := os.Getenv("PAYMENT_SIM_PORT"); v != "" {
		addr = ":" + v
	}

	e := paymentsim.New(opts, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("payment simulator listening", zap.String("addr", addr), zap.Float64("success_rate", opts.SuccessRate))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("payment simulator failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.Shutdown(sctx)
}
