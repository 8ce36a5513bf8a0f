package scanner

import "time"

type Config struct {
	DBDSN           string        `envconfig:"INTEGRITY_DB_DSN" required:"true"`
	LedgerAddr      string        `envconfig:"LEDGER_ADDR"`
	LedgerTimeout   time.Duration `envconfig:"LEDGER_TIMEOUT" default:"10s"`
	WindowHours     int           `envconfig:"WINDOW_HOURS" default:"24"`
	MaxPerRun       int           `envconfig:"MAX_PER_RUN" default:"200"`
	AlertCooldownMS int           `envconfig:"ALERT_COOLDOWN_MS" default:"1800000"`
	AlertRedisAddr  string        `envconfig:"ALERT_REDIS_ADDR"`
	Schedule        string        `envconfig:"SCAN_SCHEDULE" default:"0 * * * *"`
	RunOnStart      bool          `envconfig:"SCAN_ON_START" default:"false"`
	MetricsAddr     string        `envconfig:"INTEGRITY_METRICS_ADDR" default:"0.0.0.0:9091"`
	LogLevel        string        `envconfig:"INTEGRITY_LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `envconfig:"INTEGRITY_SHUTDOWN_TIMEOUT" default:"120s"`

	JWTSecret    string `envconfig:"OPERATOR_JWT_SECRET" required:"true"`
	OperatorRole string `envconfig:"OPERATOR_ROLE" default:"admin"`
}

func (c Config) Window() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}

func (c Config) AlertCooldown() time.Duration {
	return time.Duration(c.AlertCooldownMS) * time.Millisecond
}
