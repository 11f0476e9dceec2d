// Package sources agrupa los probes integrados y su registro.
package sources

import (
	"fmt"

	"reconx/internal/core/ports"
	"reconx/internal/platform/config"
	"reconx/internal/platform/logx"
	"reconx/internal/platform/registry"
	"reconx/internal/platform/resilience"
	"reconx/internal/sources/dns"
	portscan "reconx/internal/sources/ports"
	"reconx/internal/sources/whois"
)

// RegisterBuiltins registra los probes integrados. Todos quedan registrados; la
// configuración decide cuáles se ejecutan por defecto (config.EnabledProbes).
// Con cfg.Resilience activo cada probe queda envuelto con reintentos y su propio breaker.
func RegisterBuiltins(reg *registry.ProbeRegistry, cfg config.Config, logger logx.Logger) error {
	builtins := []struct {
		probe ports.Probe
		meta  ports.ProbeMetadata
	}{
		{
			probe: whois.New(whois.Config{Endpoint: cfg.Whois.Endpoint, Timeout: cfg.Whois.Timeout}, logger),
			meta:  whois.Metadata,
		},
		{
			probe: dns.New(dns.Config{Server: cfg.DNS.Server, Timeout: cfg.DNS.Timeout}, logger),
			meta:  dns.Metadata,
		},
		{
			probe: portscan.New(portscan.Config{
				Ports:       cfg.Ports.Ports,
				Timeout:     cfg.Ports.Timeout,
				Concurrency: cfg.Ports.Concurrency,
			}, logger),
			meta: portscan.Metadata,
		},
	}

	for _, b := range builtins {
		probe := b.probe
		if cfg.Resilience.Enabled() {
			probe = withResilience(b.meta.Name, probe, cfg.Resilience, logger)
		}
		if err := reg.RegisterWithMetadata(b.meta.Name, probe, b.meta); err != nil {
			return fmt.Errorf("registering probe %s: %w", b.meta.Name, err)
		}
	}
	return nil
}

func withResilience(name string, probe ports.Probe, rc config.Resilience, logger logx.Logger) ports.Probe {
	opts := resilience.Options{MaxRetries: rc.MaxRetries, Backoff: rc.Backoff}
	if rc.BreakerThreshold > 0 {
		opts.Breaker = resilience.NewBreaker(rc.BreakerThreshold, rc.BreakerCooldown)
	}
	return resilience.Wrap(name, probe, opts, logger)
}
