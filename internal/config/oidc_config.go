package config

import "time"

type OidcConfig interface {
	GetProviderConfigFile() string
	GetSessionTTL() time.Duration
	GetExchangeTimeout() time.Duration
	GetReaperInterval() time.Duration
}

type Oidc struct{}

var _ OidcConfig = Oidc{}

// GetProviderConfigFile returns the path of the YAML file listing the
// configured identity providers.
func (Oidc) GetProviderConfigFile() string {
	return GetEnv("OAUTH2_CONFIG_FILE", "./oauth2.yaml")
}

func (Oidc) GetSessionTTL() time.Duration {
	return durationEnv("OIDC_SESSION_TTL", 10*time.Minute)
}

func (Oidc) GetExchangeTimeout() time.Duration {
	return durationEnv("OIDC_EXCHANGE_TIMEOUT", 15*time.Second)
}

func (Oidc) GetReaperInterval() time.Duration {
	return durationEnv("OIDC_REAPER_INTERVAL", time.Minute)
}

func durationEnv(name string, defaultValue time.Duration) time.Duration {
	value := GetEnv(name, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
