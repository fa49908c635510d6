package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // あれば最優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string

	JWTSecret string // JWT署名シークレット

	GoEnv string // dev/prod

	Cache     Cache
	Payment   Payment
	Reconcile Reconcile
	Kafka     Kafka

	OTLPEndpoint string // 空ならトレースは出さない
}

type Cache struct {
	Backend    string // redis / memory
	RedisAddr  string
	RedisPass  string
	RedisDB    int
	TTL        time.Duration
	MemorySize int
}

type Payment struct {
	BaseURL      string
	Timeout      time.Duration // 1回あたり
	RetryCount   int           // 追加の試行回数
	RetryBase    time.Duration
	RetryMaxWait time.Duration
	RetryJitter  float64 // 待ち時間のばらつき（0..1未満）
}

type Reconcile struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

type Kafka struct {
	Brokers []string
	Topic   string
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := atoiDefault("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	redisDB, err := atoiDefault("REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}
	memSize, err := atoiDefault("CACHE_MEMORY_SIZE", 128)
	if err != nil {
		return Config{}, err
	}
	retryCount, err := atoiDefault("PAYMENT_RETRY_ATTEMPTS", 3)
	if err != nil {
		return Config{}, err
	}
	jitter, err := floatDefault("PAYMENT_RETRY_JITTER", 0)
	if err != nil {
		return Config{}, err
	}
	batch, err := atoiDefault("RECONCILE_BATCH_SIZE", 50)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: os.Getenv("PORT"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       getenv("POSTGRES_DB", "app"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		GoEnv: getenv("GO_ENV", "dev"),

		Cache: Cache{
			Backend:    strings.ToLower(getenv("CACHE_BACKEND", "redis")),
			RedisAddr:  getenv("REDIS_ADDR", "localhost:6379"),
			RedisPass:  os.Getenv("REDIS_PASSWORD"),
			RedisDB:    redisDB,
			TTL:        envDuration("CACHE_TTL", 5*time.Minute),
			MemorySize: memSize,
		},

		Payment: Payment{
			BaseURL:      getenv("PAYMENT_BASE_URL", "http://localhost:5050"),
			Timeout:      envDuration("PAYMENT_TIMEOUT", 30*time.Second),
			RetryCount:   retryCount,
			RetryBase:    envDuration("PAYMENT_RETRY_BASE", time.Second),
			RetryMaxWait: envDuration("PAYMENT_RETRY_MAX", 0),
			RetryJitter:  jitter,
		},

		Reconcile: Reconcile{
			Interval:   envDuration("RECONCILE_INTERVAL", time.Minute),
			StaleAfter: envDuration("RECONCILE_STALE_AFTER", 5*time.Minute),
			BatchSize:  batch,
		},

		Kafka: Kafka{
			Brokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
			Topic:   getenv("KAFKA_ORDER_TOPIC", "orders.settled"),
		},

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// 必須チェック
func (c Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.DatabaseURL == "" && c.PostgresPassword == "" {
		return fmt.Errorf("DATABASE_URL or POSTGRES_PASSWORD is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.Cache.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("CACHE_BACKEND must be redis or memory: %q", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be > 0")
	}
	if c.Payment.BaseURL == "" {
		return fmt.Errorf("PAYMENT_BASE_URL is required")
	}
	if c.Payment.RetryCount < 0 {
		return fmt.Errorf("PAYMENT_RETRY_ATTEMPTS must be >= 0")
	}
	if c.Payment.RetryJitter < 0 || c.Payment.RetryJitter >= 1 {
		return fmt.Errorf("PAYMENT_RETRY_JITTER must be in [0, 1)")
	}
	if c.Payment.Timeout <= 0 {
		return fmt.Errorf("PAYMENT_TIMEOUT must be > 0")
	}
	if c.Reconcile.Interval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be > 0")
	}
	// 決済の最悪時間より短いと、処理中の注文まで拾ってしまう
	if c.Reconcile.StaleAfter <= c.Payment.WorstCase() {
		return fmt.Errorf("RECONCILE_STALE_AFTER (%v) must exceed payment worst case (%v)", c.Reconcile.StaleAfter, c.Payment.WorstCase())
	}
	return nil
}

// WorstCaseは決済1回分の最悪所要時間（タイムアウト合計 + 待ち時間合計）
func (p Payment) WorstCase() time.Duration {
	attempts := p.RetryCount + 1
	total := time.Duration(attempts) * p.Timeout

	d := p.RetryBase
	for i := 0; i < p.RetryCount; i++ {
		wait := d
		if p.RetryMaxWait > 0 && wait > p.RetryMaxWait {
			wait = p.RetryMaxWait
		}
		// ジッターで最大 (1+RetryJitter) 倍まで伸びる
		total += time.Duration(float64(wait) * (1 + p.RetryJitter))
		d *= 2
	}
	return total
}

func (c Config) IsDev() bool {
	return c.GoEnv == "dev"
}

func getenv(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func floatDefault(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func atoiDefault(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

// "1500"はミリ秒、"1.5s" "2m" などはそのままParseDuration
func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if strings.IndexFunc(v, func(r rune) bool { return r < '0' || r > '9' }) != -1 {
		d, err := time.ParseDuration(v)
		if err != nil {
			return def
		}
		return d
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
