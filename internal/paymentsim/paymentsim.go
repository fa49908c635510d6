// Package paymentsim は外部決済のスタブサーバー。
// わざと一定割合で500を返し、応答も遅らせる（リトライの確認用）
package paymentsim

import (
	"math/rand"
	"net/http"
	"sync"
	"time"

	"storefront/internal/domain/model"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type Options struct {
	SuccessRate float64 // 0..1
	MinDelay    time.Duration
	MaxDelay    time.Duration
	Seed        int64 // 0なら時刻
}

func DefaultOptions() Options {
	return Options{
		SuccessRate: 0.8,
		MinDelay:    100 * time.Millisecond,
		MaxDelay:    500 * time.Millisecond,
	}
}

type ProcessRequest struct {
	OrderID   string      `json:"orderId"`
	Amount    model.Money `json:"amount"`
	Timestamp time.Time   `json:"timestamp"`
}

type ProcessResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transactionId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type simulator struct {
	opts   Options
	logger *zap.Logger
	sleep  func(time.Duration)

	mu  sync.Mutex
	rnd *rand.Rand
}

func New(opts Options, logger *zap.Logger) *echo.Echo {
	return newWithSleep(opts, logger, time.Sleep)
}

func newWithSleep(opts Options, logger *zap.Logger, sleep func(time.Duration)) *echo.Echo {
	if logger == nil {
		logger = zap.NewNop()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := &simulator{
		opts:   opts,
		logger: logger,
		sleep:  sleep,
		rnd:    rand.New(rand.NewSource(seed)),
	}

	e := echo.New()
	e.HideBanner = true
	e.POST("/api/payment/process", s.process)
	e.POST("/api/email/send", s.sendEmail)
	return e
}

// 乱数は共有なのでロックして引く
func (s *simulator) roll() (bool, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := s.rnd.Float64() < s.opts.SuccessRate
	delay := s.opts.MinDelay
	if span := s.opts.MaxDelay - s.opts.MinDelay; span > 0 {
		delay += time.Duration(s.rnd.Int63n(int64(span)))
	}
	return ok, delay
}

func (s *simulator) process(c echo.Context) error {
	var req ProcessRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
	}

	ok, delay := s.roll()
	s.sleep(delay)

	if !ok {
		s.logger.Info("payment rejected",
			zap.String("order_id", req.OrderID),
			zap.Stringer("amount", req.Amount),
			zap.Duration("delay", delay),
		)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "payment gateway error"})
	}

	txID := uuid.NewString()
	s.logger.Info("payment approved",
		zap.String("order_id", req.OrderID),
		zap.Stringer("amount", req.Amount),
		zap.String("transaction_id", txID),
		zap.Duration("delay", delay),
	)
	return c.JSON(http.StatusOK, ProcessResponse{Status: "approved", TransactionID: txID})
}

// メール送信はいつも成功
func (s *simulator) sendEmail(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "sent"})
}
