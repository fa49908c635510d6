package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"storefront/internal/domain/model"

	"github.com/segmentio/kafka-go"
)

// 決済確定イベント
type OrderSettled struct {
	OrderID     int64       `json:"order_id"`
	UserID      int64       `json:"user_id"`
	Status      string      `json:"status"`
	TotalAmount model.Money `json:"total_amount"`
	SettledAt   time.Time   `json:"settled_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafkaに決済確定を流す
type KafkaPublisher struct {
	w   messageWriter
	now func() time.Time
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 5 * time.Second,
		},
		now: time.Now,
	}
}

// 同じ注文は同じパーティションに入るよう order_id をキーにする
func (p *KafkaPublisher) PublishSettled(ctx context.Context, order model.Order) error {
	ev := OrderSettled{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Status:      order.Status.Display(),
		TotalAmount: order.TotalAmount,
		SettledAt:   p.now().UTC(),
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(order.ID, 10)),
		Value: body,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// ブローカー未設定のとき用
type NopPublisher struct{}

func (NopPublisher) PublishSettled(context.Context, model.Order) error { return nil }
func (NopPublisher) Close() error                                      { return nil }
