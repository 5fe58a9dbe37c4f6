package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel/attribute"
)

// OTELConfig holds the standard OTEL_* variables span export understands.
type OTELConfig struct {
	ServiceName        string `env:"OTEL_SERVICE_NAME" envDefault:"trec"`
	ResourceAttributes string `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:""`
	ExporterEndpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	TracesEndpoint     string `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT" envDefault:""`
}

// ParseOTELConfig parses OTELConfig from the environment.
func ParseOTELConfig() (*OTELConfig, error) {
	var cfg OTELConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("%w: OTEL environment: %w", ErrMissing, err)
	}
	return &cfg, nil
}

// Enabled reports whether an endpoint was configured. Spans are only
// exported when it is.
func (c *OTELConfig) Enabled() bool {
	return c.Endpoint() != ""
}

// Endpoint returns the traces endpoint, preferring the signal-specific one.
func (c *OTELConfig) Endpoint() string {
	if c.TracesEndpoint != "" {
		return c.TracesEndpoint
	}
	return c.ExporterEndpoint
}

// EndpointIsURL reports whether Endpoint carries a scheme, as in
// http://collector:4318, rather than a bare host:port.
func (c *OTELConfig) EndpointIsURL() bool {
	return strings.Contains(c.Endpoint(), "://")
}

// ParseResourceAttributes parses OTEL_RESOURCE_ATTRIBUTES
// (key1=value1,key2=value2). Values are percent-decoded when possible.
// Pairs without '=' or with an empty key are skipped.
func (c *OTELConfig) ParseResourceAttributes() []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for _, pair := range strings.Split(c.ResourceAttributes, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}

		value = strings.TrimSpace(value)
		if decoded, err := url.PathUnescape(value); err == nil {
			value = decoded
		}
		attrs = append(attrs, attribute.String(key, value))
	}
	return attrs
}
