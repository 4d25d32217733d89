// server/config/config.go
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// --- Các struct con, phản ánh cấu trúc của YAML ---

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	CORSOrigins     []string      `mapstructure:"corsOrigins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type MongoConfig struct {
	URI     string        `mapstructure:"uri"`
	DBName  string        `mapstructure:"dbName"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // mongo hoặc memory
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	Expiration string `mapstructure:"expiration"`
}

type S3Config struct {
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	AccessKeyID      string `mapstructure:"accessKeyID"`
	SecretAccessKey  string `mapstructure:"secretAccessKey"`
	CloudFrontDomain string `mapstructure:"cloudFrontDomain"`
}

type UploadConfig struct {
	MaxBytes int64  `mapstructure:"maxBytes"`
	LocalDir string `mapstructure:"localDir"`
	BaseURL  string `mapstructure:"baseURL"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type SeedConfig struct {
	AdminEmail    string `mapstructure:"adminEmail"`
	AdminPassword string `mapstructure:"adminPassword"`
}

type RateLimitConfig struct {
	LoginRPS   float64 `mapstructure:"loginRPS"`
	LoginBurst int     `mapstructure:"loginBurst"`
}

// --- Struct Config chính, bao gồm tất cả các struct con ---

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Storage   StorageConfig   `mapstructure:"storage"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	S3        S3Config        `mapstructure:"s3"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Seed      SeedConfig      `mapstructure:"seed"`
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// LoadConfig đọc cấu hình từ file và ghi đè bằng các biến môi trường.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	setDefaults(v)

	// Ví dụ: key "mongo.uri" trong YAML sẽ được ghi đè bởi biến môi trường "MONGO_URI"
	bindings := map[string]string{
		"server.port":         "SERVER_PORT",
		"server.mode":         "GIN_MODE",
		"mongo.uri":           "MONGO_URI",
		"mongo.dbName":        "MONGO_DBNAME",
		"storage.driver":      "STORAGE_DRIVER",
		"jwt.secret":          "JWT_SECRET",
		"jwt.expiration":      "JWT_EXPIRATION",
		"s3.bucket":           "S3_BUCKET",
		"s3.region":           "S3_REGION",
		"s3.accessKeyID":      "S3_ACCESS_KEY_ID",
		"s3.secretAccessKey":  "S3_SECRET_ACCESS_KEY",
		"s3.cloudFrontDomain": "S3_CLOUDFRONT_DOMAIN",
		"upload.localDir":     "UPLOAD_LOCAL_DIR",
		"redis.addr":          "REDIS_ADDR",
		"redis.password":      "REDIS_PASSWORD",
		"redis.db":            "REDIS_DB",
		"log.level":           "LOG_LEVEL",
		"seed.adminEmail":     "SEED_ADMIN_EMAIL",
		"seed.adminPassword":  "SEED_ADMIN_PASSWORD",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	// Nếu file không tồn tại, Viper sẽ chỉ sử dụng các biến môi trường.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.corsOrigins", []string{"*"})
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.dbName", "ecotrack")
	v.SetDefault("mongo.timeout", 10*time.Second)
	v.SetDefault("storage.driver", "mongo")
	v.SetDefault("jwt.expiration", "24h")
	v.SetDefault("upload.maxBytes", 5<<20)
	v.SetDefault("upload.localDir", "./uploads")
	v.SetDefault("upload.baseURL", "/uploads")
	v.SetDefault("redis.channel", "ecotrack:events")
	v.SetDefault("log.level", "info")
	v.SetDefault("rateLimit.loginRPS", 1.0)
	v.SetDefault("rateLimit.loginBurst", 5)
}

// Validate checks the values that have no safe default.
func (c Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" && c.Server.Mode != "debug" && c.Server.Mode != "test" {
		errs = append(errs, errors.New("jwt.secret is required outside debug mode"))
	}
	if _, err := c.JWTExpiration(); err != nil {
		errs = append(errs, err)
	}
	switch c.Storage.Driver {
	case "mongo", "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be mongo or memory, got %q", c.Storage.Driver))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("upload.maxBytes must be positive"))
	}
	return errors.Join(errs...)
}

// JWTExpiration parses jwt.expiration, e.g. "24h".
func (c Config) JWTExpiration() (time.Duration, error) {
	d, err := time.ParseDuration(c.JWT.Expiration)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("jwt.expiration %q is not a valid duration", c.JWT.Expiration)
	}
	return d, nil
}
