package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env      string // "dev" | "prod"
	HTTPAddr string
	GRPCAddr string // empty disables the health server
	DBPath   string
	DevSeed  bool

	LogLevel  string
	LogFormat string

	Access    AccessConfig
	Notify    NotifyConfig
	Push      PushConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	WS        WSConfig
}

type AccessConfig struct {
	ApprovalWindow  time.Duration
	TimeoutInterval time.Duration
	TimeoutBatch    int
}

type NotifyConfig struct {
	QueueSize int
	Workers   int
}

type PushConfig struct {
	Provider        string // "log" | "fcm"
	CredentialsFile string
	ProjectID       string
}

type RedisConfig struct {
	Addr     string // empty disables redis
	Password string
	DB       int
	LockTTL  time.Duration
}

func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type RateLimitConfig struct {
	Limit int // 0 disables
	Per   time.Duration
}

type WSConfig struct {
	AllowedOrigins []string
	SendBuffer     int
}

func (c Config) IsDev() bool { return c.Env == "dev" }

var defaults = map[string]any{
	"env":                       "dev",
	"http.addr":                 ":8080",
	"grpc.addr":                 ":9090",
	"db.path":                   "./data/gatehouse.db",
	"dev.seed":                  false,
	"log.level":                 "info",
	"log.format":                "json",
	"access.approval_window":    "5m",
	"access.timeout_interval":   "60s",
	"access.timeout_batch":      100,
	"notify.queue_size":         1024,
	"notify.workers":            4,
	"push.provider":             "log",
	"push.fcm_credentials_file": "",
	"push.fcm_project_id":       "",
	"redis.addr":                "",
	"redis.password":            "",
	"redis.db":                  0,
	"redis.lock_ttl":            "90s",
	"ratelimit.limit":           120,
	"ratelimit.per":             "1m",
	"ws.allowed_origins":        "",
	"ws.send_buffer":            64,
}

// Load reads defaults, then the YAML file at path (or ./gatehouse.yaml when
// path is empty), then GATEHOUSE_* environment variables. Only an explicit
// path has to exist.
func Load(path string) (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("GATEHOUSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gatehouse")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	env := strings.ToLower(strings.TrimSpace(v.GetString("env")))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	cfg := Config{
		Env:       env,
		HTTPAddr:  v.GetString("http.addr"),
		GRPCAddr:  strings.TrimSpace(v.GetString("grpc.addr")),
		DBPath:    v.GetString("db.path"),
		DevSeed:   v.GetBool("dev.seed"),
		LogLevel:  v.GetString("log.level"),
		LogFormat: v.GetString("log.format"),
		Access: AccessConfig{
			ApprovalWindow:  v.GetDuration("access.approval_window"),
			TimeoutInterval: v.GetDuration("access.timeout_interval"),
			TimeoutBatch:    v.GetInt("access.timeout_batch"),
		},
		Notify: NotifyConfig{
			QueueSize: v.GetInt("notify.queue_size"),
			Workers:   v.GetInt("notify.workers"),
		},
		Push: PushConfig{
			Provider:        strings.ToLower(strings.TrimSpace(v.GetString("push.provider"))),
			CredentialsFile: v.GetString("push.fcm_credentials_file"),
			ProjectID:       v.GetString("push.fcm_project_id"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("redis.addr")),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			LockTTL:  v.GetDuration("redis.lock_ttl"),
		},
		RateLimit: RateLimitConfig{
			Limit: v.GetInt("ratelimit.limit"),
			Per:   v.GetDuration("ratelimit.per"),
		},
		WS: WSConfig{
			AllowedOrigins: splitCSV(v.GetString("ws.allowed_origins")),
			SendBuffer:     v.GetInt("ws.send_buffer"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	positive := map[string]time.Duration{
		"access.approval_window":  c.Access.ApprovalWindow,
		"access.timeout_interval": c.Access.TimeoutInterval,
		"redis.lock_ttl":          c.Redis.LockTTL,
		"ratelimit.per":           c.RateLimit.Per,
	}
	for k, d := range positive {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", k))
		}
	}
	if c.Access.TimeoutBatch <= 0 {
		errs = append(errs, errors.New("access.timeout_batch must be positive"))
	}
	if c.Notify.QueueSize <= 0 || c.Notify.Workers <= 0 {
		errs = append(errs, errors.New("notify.queue_size and notify.workers must be positive"))
	}
	if c.RateLimit.Limit < 0 {
		errs = append(errs, errors.New("ratelimit.limit must not be negative"))
	}
	switch c.Push.Provider {
	case "log":
	case "fcm":
		if c.Push.CredentialsFile == "" && c.Push.ProjectID == "" {
			errs = append(errs, errors.New("push.provider=fcm needs push.fcm_credentials_file or push.fcm_project_id"))
		}
	default:
		errs = append(errs, fmt.Errorf("push.provider %q: must be log or fcm", c.Push.Provider))
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("db.path is required"))
	}
	return errors.Join(errs...)
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
