package dsched

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/oscore/dsched/runtime/policy"
	"github.com/oscore/dsched/service/channel"
	"github.com/oscore/dsched/service/topo"
	"github.com/oscore/dsched/tracing"
)

// Option configures a Service at construction time.
type Option func(s *Service)

// WithConfig sets the Service configuration, replacing DefaultConfig.
func WithConfig(cfg *Config) Option {
	return func(s *Service) { s.config = cfg }
}

// WithEnclave sets the kernel/enclave handle. When omitted, New wires an
// in-process simulation (service/topo/memory) sized to the configured
// topology, suitable for tests and examples.
func WithEnclave(enclave topo.Enclave) Option {
	return func(s *Service) { s.enclave = enclave }
}

// WithPolicy sets the CPU affinity policy consulted by runtime/placement.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithChannelFactory overrides how each CPU's kernel notification channel
// is constructed. When omitted, New wires an in-process queue
// (service/channel/memory) sized to the configured queue depth.
func WithChannelFactory(factory func(cpu int) channel.Channel) Option {
	return func(s *Service) { s.channelFactory = factory }
}

// WithTracing configures OpenTelemetry tracing for the service. If
// outputFile is empty the stdout exporter is used; otherwise traces are
// written to the supplied file path. Safe to call multiple times – the
// first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) { _ = tracing.Init(serviceName, serviceVersion, outputFile) }
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter, for integrations other than the built-in stdout exporter
// (OTLP, Jaeger, Zipkin, ...). Safe to call multiple times – the first
// successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) { _ = tracing.InitWithExporter(serviceName, serviceVersion, exporter) }
}
