package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
)

// ExportConfig holds the settings shared by the OTLP/HTTP metric and trace exporters.
type ExportConfig struct {
	ServiceName    string
	ServiceVersion string
	// Environment is reported as deployment.environment.
	Environment string
	// Endpoint is the collector host:port, e.g. "localhost:4318".
	Endpoint string
	Insecure bool
}

func defaultExportConfig(serviceName string) ExportConfig {
	return ExportConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
	}
}

func (c ExportConfig) resource() (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", c.ServiceName),
			attribute.String("service.version", c.ServiceVersion),
			attribute.String("deployment.environment", c.Environment),
		),
	)
}
