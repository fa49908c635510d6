package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Policy は試行回数と待ち時間の設定。
// Retries は初回を除いた追加の試行回数（Retries=3 なら合計4回）。
// JitterFactor>0 なら各待ち時間を ±JitterFactor の割合でばらつかせる（0..1）。
type Policy struct {
	Retries      int
	Base         time.Duration
	Max          time.Duration
	JitterFactor float64
}

// Sleeper は待ち合わせを差し替えるためのもの。テストでは記録だけする
type Sleeper func(ctx context.Context, d time.Duration) error

// OnRetry はリトライ直前に呼ばれる。attempt は次に行う試行の番号（2始まり）
type OnRetry func(attempt int, delay time.Duration, err error)

// SleepContext は ctx が終わったら途中で戻る
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Delays は各リトライ前の待ち時間を返す（Base, 2*Base, 4*Base, ...）
func (p Policy) Delays() []time.Duration {
	out := make([]time.Duration, 0, p.Retries)
	d := p.Base
	for i := 0; i < p.Retries; i++ {
		delay := d
		if p.Max > 0 && delay > p.Max {
			delay = p.Max
		}
		out = append(out, delay)
		d *= 2
	}
	return out
}

// Do は fn が成功するまで最大 Retries+1 回呼ぶ。
// 最後のエラーを返す。fn には1始まりの試行番号を渡す。
func Do(ctx context.Context, p Policy, sleep Sleeper, onRetry OnRetry, fn func(ctx context.Context, attempt int) error) error {
	if sleep == nil {
		sleep = SleepContext
	}

	var r *rand.Rand
	if p.JitterFactor > 0 {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	delays := p.Delays()
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return nil
		}

		if attempt > len(delays) {
			return err
		}

		delay := delays[attempt-1]
		if r != nil {
			jitter := 1 + p.JitterFactor*(2*r.Float64()-1)
			delay = time.Duration(float64(delay) * jitter)
		}

		if onRetry != nil {
			onRetry(attempt+1, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return errors.Join(err, serr)
		}
	}
}
