package types

// RunMode is the deployment mode the server starts in
type RunMode string

const (
	ModeLocal RunMode = "local"
	ModeAPI   RunMode = "api"
	ModeCron  RunMode = "cron"
)

// LogLevel controls the minimum severity emitted by the logger
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
