package payment

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/pkg/retry"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const processPath = "/api/payment/process"

// 外部決済に送る内容
type chargeRequest struct {
	OrderReference string      `json:"orderId"`
	Amount         model.Money `json:"amount"`
	Timestamp      time.Time   `json:"timestamp"`
}

// 外部決済のクライアント。
// Chargeは成功/失敗のboolだけを返し、エラーは外に出さない。
type Client struct {
	http   *resty.Client
	policy retry.Policy
	sleep  retry.Sleeper
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Client)

// WithSleeper はリトライ間の待ち方を差し替える（テスト用）
func WithSleeper(s retry.Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// timeoutは1回の呼び出しごと
func NewClient(baseURL string, timeout time.Duration, policy retry.Policy, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		policy: policy,
		sleep:  retry.SleepContext,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Charge(ctx context.Context, amount model.Money, orderRef string) bool {
	c.logger.Info("processing payment",
		zap.String("order_id", orderRef),
		zap.Stringer("amount", amount),
	)

	onRetry := func(attempt int, delay time.Duration, err error) {
		c.logger.Warn("payment retry",
			zap.String("order_id", orderRef),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	err := retry.Do(ctx, c.policy, c.sleep, onRetry, func(ctx context.Context, attempt int) error {
		return c.attempt(ctx, amount, orderRef, attempt)
	})
	if err != nil {
		c.logger.Error("payment failed after retries",
			zap.String("order_id", orderRef),
			zap.Int("max_attempts", c.policy.Retries+1),
			zap.Error(err),
		)
		return false
	}

	c.logger.Info("payment succeeded", zap.String("order_id", orderRef))
	return true
}

// 1回分の呼び出し。2xx以外はタイムアウトも含めてすべてリトライ対象
func (c *Client) attempt(ctx context.Context, amount model.Money, orderRef string, attempt int) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(chargeRequest{
			OrderReference: orderRef,
			Amount:         amount,
			Timestamp:      c.now().UTC(),
		}).
		Post(processPath)
	if err != nil {
		return fmt.Errorf("attempt %d: %w", attempt, err)
	}
	if !resp.IsSuccess() {
		c.logger.Warn("payment attempt rejected",
			zap.String("order_id", orderRef),
			zap.Int("attempt", attempt),
			zap.Int("status", resp.StatusCode()),
		)
		return fmt.Errorf("attempt %d: payment failed with status %d", attempt, resp.StatusCode())
	}
	return nil
}
