package api

import "time"

type Config struct {
	HTTPAddr        string        `envconfig:"INTEGRITY_HTTP_ADDR" default:"0.0.0.0:8080"`
	DBDSN           string        `envconfig:"INTEGRITY_DB_DSN"`
	MetricsAddr     string        `envconfig:"INTEGRITY_METRICS_ADDR" default:"0.0.0.0:9090"`
	LogLevel        string        `envconfig:"INTEGRITY_LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `envconfig:"INTEGRITY_SHUTDOWN_TIMEOUT" default:"30s"`

	JWTSecret    string `envconfig:"OPERATOR_JWT_SECRET" required:"true"`
	OperatorRole string `envconfig:"OPERATOR_ROLE" default:"admin"`

	LedgerAddr    string        `envconfig:"LEDGER_ADDR"`
	LedgerTimeout time.Duration `envconfig:"LEDGER_TIMEOUT" default:"10s"`

	MaxRetries   int `envconfig:"MAX_RETRIES" default:"3"`
	RetryDelayMS int `envconfig:"RETRY_DELAY_MS" default:"5000"`

	AlertCooldownMS int    `envconfig:"ALERT_COOLDOWN_MS" default:"1800000"`
	AlertRedisAddr  string `envconfig:"ALERT_REDIS_ADDR"`
}

func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

func (c Config) AlertCooldown() time.Duration {
	return time.Duration(c.AlertCooldownMS) * time.Millisecond
}
