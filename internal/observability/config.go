package observability

import (
	"strings"

	"github.com/smallbiznis/fotoyou/internal/config"
)

// Config is the slice of application config the logger, tracer and meter
// providers need.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "fotoyou"
	}

	telemetry := cfg.Telemetry
	logLevel := strings.ToLower(strings.TrimSpace(telemetry.LogLevel))
	if logLevel == "" {
		logLevel = "info"
	}
	logFormat := strings.ToLower(strings.TrimSpace(telemetry.LogFormat))
	if logFormat != "console" {
		logFormat = "json"
	}
	protocol := strings.ToLower(strings.TrimSpace(telemetry.ExporterProtocol))
	switch protocol {
	case "http", "http/protobuf":
		protocol = "http"
	default:
		protocol = "grpc"
	}

	ratio := telemetry.SamplingRatio
	switch {
	case ratio < 0:
		ratio = 0
	case ratio > 1:
		ratio = 1
	}
	// Local runs trace everything.
	if isDevEnv(cfg.Environment) && ratio < 1 {
		ratio = 1
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             logLevel,
		LogFormat:            logFormat,
		OtelEnabled:          telemetry.Enabled && strings.TrimSpace(telemetry.ExporterEndpoint) != "",
		OtelExporterEndpoint: strings.TrimSpace(telemetry.ExporterEndpoint),
		OtelExporterProtocol: protocol,
		OtelSamplingRatio:    ratio,
	}
}

func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	return isDevEnv(c.Environment)
}

func isDevEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}
