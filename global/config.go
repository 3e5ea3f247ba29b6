package global

import (
	"os"
	"strconv"
	"strings"
	"time"

	"PPChat/tools"
	"PPChat/tools/errs"

	"gopkg.in/yaml.v3"
)

// 开发环境兜底密钥，生产必须通过 JWT_SECRET 覆盖
const DevJWTSecret = "fallback-jwt-secret-for-development"

type AppConfig struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Redis    RedisConfig    `yaml:"redis"`
	Mongo    MongoConfig    `yaml:"mongo"`
	JWT      JWTConfig      `yaml:"jwt"`
	Google   GoogleConfig   `yaml:"google"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ClientURL       string        `yaml:"clientURL"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type RedisConfig struct {
	Enabled      bool          `yaml:"enabled"`
	URL          string        `yaml:"url"` // redis:// 或 rediss://，优先于 Addr
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	TLS          bool          `yaml:"tls"`
	PoolSize     int           `yaml:"poolSize"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ProbeTimeout time.Duration `yaml:"probeTimeout"`
	OnlineKey    string        `yaml:"onlineKey"`
}

type MongoConfig struct {
	URI         string `yaml:"uri"`
	Database    string `yaml:"database"`
	MaxPoolSize int    `yaml:"maxPoolSize"`
}

type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

type GoogleConfig struct {
	ClientID     string `yaml:"clientID"`
	ClientSecret string `yaml:"clientSecret"`
	CallbackURL  string `yaml:"callbackURL"`
}

func (g GoogleConfig) Enabled() bool { return g.ClientID != "" }

type RealtimeConfig struct {
	OpTimeout      time.Duration `yaml:"opTimeout"`
	AuthTimeout    time.Duration `yaml:"authTimeout"`
	PingInterval   time.Duration `yaml:"pingInterval"`
	PongWait       time.Duration `yaml:"pongWait"`
	WriteWait      time.Duration `yaml:"writeWait"`
	SendQueue      int           `yaml:"sendQueue"`
	MaxMessageSize int64         `yaml:"maxMessageSize"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default 与原有 Node 服务保持一致的默认值
func Default() *AppConfig {
	return &AppConfig{
		HTTP: HTTPConfig{
			Addr:            ":5000",
			ClientURL:       "http://localhost:3000",
			ShutdownTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			Enabled:      true,
			Addr:         "localhost:6379",
			PoolSize:     20,
			DialTimeout:  10 * time.Second,
			ProbeTimeout: 500 * time.Millisecond,
			OnlineKey:    "onlineUsers",
		},
		Mongo: MongoConfig{
			URI:         "mongodb://localhost:27017",
			Database:    "chat",
			MaxPoolSize: 20,
		},
		JWT: JWTConfig{
			Secret: DevJWTSecret,
			TTL:    7 * 24 * time.Hour,
		},
		Google: GoogleConfig{
			CallbackURL: "http://localhost:5000/api/auth/google/callback",
		},
		Realtime: RealtimeConfig{
			OpTimeout:      5 * time.Second,
			AuthTimeout:    10 * time.Second,
			PingInterval:   25 * time.Second,
			PongWait:       60 * time.Second,
			WriteWait:      10 * time.Second,
			SendQueue:      256,
			MaxMessageSize: 64 << 10,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load 读取 yaml（path 为空则跳过），再用环境变量覆盖
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.WrapMsg(err, "read config file", "path", path)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, errs.WrapMsg(err, "parse config file", "path", path)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	if port := tools.GetEnv("PORT", ""); port != "" {
		cfg.HTTP.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	cfg.HTTP.ClientURL = tools.GetEnv("CLIENT_URL", cfg.HTTP.ClientURL)
	if origins := tools.SplitCSV(tools.GetEnv("ALLOWED_ORIGINS", "")); len(origins) > 0 {
		cfg.HTTP.AllowedOrigins = origins
	}

	cfg.Redis.Enabled = tools.GetEnvBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.URL = tools.GetEnv("REDIS_URL", cfg.Redis.URL)
	if host := tools.GetEnv("REDIS_HOST", ""); host != "" {
		port := tools.GetEnv("REDIS_PORT", "6379")
		cfg.Redis.Addr = host + ":" + port
	}
	cfg.Redis.Password = tools.GetEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = tools.GetEnvInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.TLS = tools.GetEnvBool("REDIS_TLS", cfg.Redis.TLS)

	cfg.Mongo.URI = tools.GetEnv("MONGO_URI", cfg.Mongo.URI)
	cfg.Mongo.Database = tools.GetEnv("MONGO_DB", cfg.Mongo.Database)

	cfg.JWT.Secret = tools.GetEnv("JWT_SECRET", cfg.JWT.Secret)
	cfg.JWT.TTL = tools.GetEnvDuration("JWT_TTL", cfg.JWT.TTL)

	cfg.Google.ClientID = tools.GetEnv("GOOGLE_CLIENT_ID", cfg.Google.ClientID)
	cfg.Google.ClientSecret = tools.GetEnv("GOOGLE_CLIENT_SECRET", cfg.Google.ClientSecret)
	cfg.Google.CallbackURL = tools.GetEnv("GOOGLE_CALLBACK_URL", cfg.Google.CallbackURL)

	cfg.Realtime.OpTimeout = tools.GetEnvDuration("REALTIME_OP_TIMEOUT", cfg.Realtime.OpTimeout)
	cfg.Realtime.PingInterval = tools.GetEnvDuration("REALTIME_PING_INTERVAL", cfg.Realtime.PingInterval)
	cfg.Realtime.PongWait = tools.GetEnvDuration("REALTIME_PONG_WAIT", cfg.Realtime.PongWait)

	cfg.Log.Level = tools.GetEnv("LOG_LEVEL", cfg.Log.Level)
}

func (c *AppConfig) Validate() error {
	if c.HTTP.Addr == "" {
		return errs.ErrArgs.WrapMsg("http.addr is required")
	}
	if c.JWT.Secret == "" {
		return errs.ErrArgs.WrapMsg("jwt.secret is required")
	}
	if c.Mongo.Database == "" {
		return errs.ErrArgs.WrapMsg("mongo.database is required")
	}
	if c.Realtime.PingInterval >= c.Realtime.PongWait {
		return errs.ErrArgs.WrapMsg("realtime.pingInterval must be shorter than realtime.pongWait",
			"pingInterval", c.Realtime.PingInterval, "pongWait", c.Realtime.PongWait)
	}
	if c.Realtime.SendQueue <= 0 {
		return errs.ErrArgs.WrapMsg("realtime.sendQueue must be positive", "sendQueue", strconv.Itoa(c.Realtime.SendQueue))
	}
	return nil
}

// Origins WebSocket 允许的来源；未配置时只放行 ClientURL
func (c *AppConfig) Origins() []string {
	if len(c.HTTP.AllowedOrigins) > 0 {
		return c.HTTP.AllowedOrigins
	}
	if c.HTTP.ClientURL != "" {
		return []string{c.HTTP.ClientURL}
	}
	return nil
}

func (c *AppConfig) UsingDevSecret() bool { return c.JWT.Secret == DevJWTSecret }
