package config

// Application constants
const (
	AppName    = "btcforecast"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment variable, e.g. BTCF_MODEL_HORIZON
	EnvPrefix = "BTCF"

	DefaultConfigFile = "forecast.yaml"
	DefaultLogFile    = "logs/forecast.log"

	// DefaultLauncherFile is the Advanced launcher's environment file
	DefaultLauncherFile = "environment.yaml"
)
