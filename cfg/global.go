package cfg

// GlobalOptions are options to be applied globally and set at the root of the config.
type GlobalOptions struct {
	LogLevel    string `yaml:"log_level" cli:"level" desc:"log level"`
	ForceColors bool   `yaml:"force_colors" cli:"colors" desc:"force colored log output"`
	SentryDSN   string `yaml:"sentry_dsn" cli:"sentry" desc:"report panics to this sentry DSN"`
	ConfigFile  string `cli:"config" desc:"YAML config file"`
}
