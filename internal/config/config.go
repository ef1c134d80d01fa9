package config

import (
	"os"
	"time"

	pkgconfig "github.com/JustineRobert/society-community-savings-app-sub001/pkg/config"
)

// Reuse-policy values for REUSE_POLICY. revoke_all is the conservative
// default: any detected reuse kills every active session the owner has.
const (
	ReusePolicyRevokeAll = "revoke_all"
	ReusePolicySingle    = "single"
)

type Config struct {
	ServiceName string
	ServerAddr  string
	LogLevel    string

	DatabaseURL string

	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	ReusePolicy string

	KafkaBrokers []string
	AuditTopic   string

	PurgeRetention time.Duration
}

func Load() Config {
	pkgconfig.LoadDotenv()

	cfg := Config{
		ServiceName: pkgconfig.EnvDefault("SERVICE_NAME", "auth"),
		ServerAddr:  pkgconfig.EnvDefault("SERVER_ADDR", ":8080"),
		LogLevel:    pkgconfig.EnvDefault("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		AccessSecret:  []byte(os.Getenv("JWT_SECRET")),
		RefreshSecret: []byte(os.Getenv("REFRESH_SECRET")),
		AccessTTL:     pkgconfig.EnvDurationDefault("ACCESS_TTL", 15*time.Minute),
		RefreshTTL:    pkgconfig.EnvDurationDefault("REFRESH_TTL", 7*24*time.Hour),

		ReusePolicy: pkgconfig.EnvDefault("REUSE_POLICY", ReusePolicyRevokeAll),

		KafkaBrokers: pkgconfig.CSV(os.Getenv("KAFKA_BROKERS")),
		AuditTopic:   pkgconfig.EnvDefault("AUDIT_TOPIC", "auth_events"),

		PurgeRetention: pkgconfig.EnvDurationDefault("PURGE_RETENTION", 30*24*time.Hour),
	}

	pkgconfig.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	pkgconfig.MustNonEmptyBytes(cfg.AccessSecret, "JWT_SECRET")
	pkgconfig.MustNonEmptyBytes(cfg.RefreshSecret, "REFRESH_SECRET")

	return cfg
}
