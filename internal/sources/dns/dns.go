// Package dns implementa el probe "dns": registros A/AAAA, MX, NS y TXT del target,
// o PTR si el target es una IP.
package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"reconx/internal/core/ports"
	"reconx/internal/platform/logx"
)

// Name nombre con el que se registra el probe.
const Name = "dns"

// Metadata describe el probe para el listado de probes.
var Metadata = ports.ProbeMetadata{
	Name:        Name,
	Description: "DNS records (A, AAAA, MX, NS, TXT; PTR for IPs)",
	Active:      false,
}

// Resolver es el subconjunto de *net.Resolver que usa el probe.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Config configura el probe.
type Config struct {
	// Server host:port de un servidor DNS concreto (vacío = resolver del sistema)
	Server  string
	Timeout time.Duration
}

// Probe consulta los tipos de registro en paralelo. Un tipo sin registros no es un
// error; los fallos por tipo se reportan en "errors" y el probe solo falla si fallan todos.
type Probe struct {
	resolver Resolver
	timeout  time.Duration
	logger   logx.Logger
}

// Ensure Probe implements ports.Probe at compile time.
var _ ports.Probe = (*Probe)(nil)

// New crea el probe con el resolver del sistema o uno dirigido a cfg.Server.
func New(cfg Config, logger logx.Logger) *Probe {
	resolver := net.DefaultResolver
	if cfg.Server != "" {
		server := cfg.Server
		if _, _, err := net.SplitHostPort(server); err != nil {
			server = net.JoinHostPort(server, "53")
		}
		resolver = &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, server)
			},
		}
	}
	return NewWithResolver(resolver, cfg.Timeout, logger)
}

// NewWithResolver crea el probe sobre un Resolver arbitrario.
func NewWithResolver(resolver Resolver, timeout time.Duration, logger logx.Logger) *Probe {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logx.NewNop()
	}
	return &Probe{
		resolver: resolver,
		timeout:  timeout,
		logger:   logger.With("probe", Name),
	}
}

type lookup struct {
	kind string
	run  func(ctx context.Context, host string) (any, int, error)
}

// Execute implementa ports.Probe.
func (p *Probe) Execute(ctx context.Context, target string) (map[string]any, error) {
	host := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(target)), ".")
	if host == "" {
		return nil, errors.New("invalid target: empty host")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	lookups := p.forwardLookups()
	if net.ParseIP(host) != nil {
		lookups = []lookup{{kind: "ptr", run: p.lookupPTR}}
	}

	var (
		mu     sync.Mutex
		out    = make(map[string]any, len(lookups)+1)
		errs   = make(map[string]any)
		failed int
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range lookups {
		g.Go(func() error {
			records, n, err := l.run(gctx, host)

			mu.Lock()
			defer mu.Unlock()
			if err != nil && !isNotFound(err) {
				errs[l.kind] = err.Error()
				failed++
				return nil
			}
			out[l.kind] = records
			p.logger.Debug("lookup completed", "type", l.kind, "host", host, "records", n)
			return nil
		})
	}
	_ = g.Wait()

	if failed == len(lookups) {
		return nil, fmt.Errorf("all DNS lookups failed for %s: %v", host, errs[lookups[0].kind])
	}
	if len(errs) > 0 {
		out["errors"] = errs
	}
	return out, nil
}

func (p *Probe) forwardLookups() []lookup {
	return []lookup{
		{kind: "a", run: func(ctx context.Context, host string) (any, int, error) {
			return p.lookupIP(ctx, "ip4", host)
		}},
		{kind: "aaaa", run: func(ctx context.Context, host string) (any, int, error) {
			return p.lookupIP(ctx, "ip6", host)
		}},
		{kind: "mx", run: p.lookupMX},
		{kind: "ns", run: p.lookupNS},
		{kind: "txt", run: p.lookupTXT},
	}
}

func (p *Probe) lookupIP(ctx context.Context, network, host string) (any, int, error) {
	ips, err := p.resolver.LookupIP(ctx, network, host)
	if err != nil {
		return []any{}, 0, err
	}
	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, ip.String())
	}
	return sortedList(addrs), len(addrs), nil
}

func (p *Probe) lookupMX(ctx context.Context, host string) (any, int, error) {
	mxs, err := p.resolver.LookupMX(ctx, host)
	if err != nil {
		return []any{}, 0, err
	}
	sort.SliceStable(mxs, func(i, j int) bool {
		if mxs[i].Pref != mxs[j].Pref {
			return mxs[i].Pref < mxs[j].Pref
		}
		return mxs[i].Host < mxs[j].Host
	})
	records := make([]any, 0, len(mxs))
	for _, mx := range mxs {
		records = append(records, map[string]any{
			"host":       strings.TrimSuffix(mx.Host, "."),
			"preference": int(mx.Pref),
		})
	}
	return records, len(records), nil
}

func (p *Probe) lookupNS(ctx context.Context, host string) (any, int, error) {
	nss, err := p.resolver.LookupNS(ctx, host)
	if err != nil {
		return []any{}, 0, err
	}
	names := make([]string, 0, len(nss))
	for _, ns := range nss {
		names = append(names, strings.TrimSuffix(ns.Host, "."))
	}
	return sortedList(names), len(names), nil
}

func (p *Probe) lookupTXT(ctx context.Context, host string) (any, int, error) {
	txts, err := p.resolver.LookupTXT(ctx, host)
	if err != nil {
		return []any{}, 0, err
	}
	return sortedList(txts), len(txts), nil
}

func (p *Probe) lookupPTR(ctx context.Context, addr string) (any, int, error) {
	names, err := p.resolver.LookupAddr(ctx, addr)
	if err != nil {
		return []any{}, 0, err
	}
	for i, n := range names {
		names[i] = strings.TrimSuffix(n, ".")
	}
	return sortedList(names), len(names), nil
}

// isNotFound indica un NXDOMAIN o ausencia de registros del tipo pedido.
func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

func sortedList(items []string) []any {
	sort.Strings(items)
	out := make([]any, 0, len(items))
	for _, s := range items {
		out = append(out, s)
	}
	return out
}
