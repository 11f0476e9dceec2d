// Package ports implementa el probe "ports": TCP connect scan de una lista de puertos.
package ports

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	coreports "reconx/internal/core/ports"
	"reconx/internal/platform/logx"
)

// Name nombre con el que se registra el probe.
const Name = "ports"

// Metadata describe el probe para el listado de probes.
var Metadata = coreports.ProbeMetadata{
	Name:        Name,
	Description: "TCP connect scan of common ports",
	Active:      true,
}

// services nombres habituales por puerto.
var services = map[int]string{
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "dns",
	80:    "http",
	110:   "pop3",
	111:   "rpcbind",
	135:   "msrpc",
	139:   "netbios-ssn",
	143:   "imap",
	443:   "https",
	445:   "microsoft-ds",
	465:   "smtps",
	587:   "submission",
	993:   "imaps",
	995:   "pop3s",
	1723:  "pptp",
	3306:  "mysql",
	3389:  "rdp",
	5432:  "postgresql",
	5900:  "vnc",
	6379:  "redis",
	8080:  "http-alt",
	8443:  "https-alt",
	9092:  "kafka",
	27017: "mongodb",
}

// ServiceName retorna el servicio habitual del puerto o "unknown".
func ServiceName(port int) string {
	if s, ok := services[port]; ok {
		return s
	}
	return "unknown"
}

// Dialer abstrae net.Dialer para los tests.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config configura el probe.
type Config struct {
	Ports       []int
	Timeout     time.Duration // por conexión
	Concurrency int
}

// Probe comprueba qué puertos aceptan conexión TCP.
type Probe struct {
	ports       []int
	timeout     time.Duration
	concurrency int
	dialer      Dialer
	logger      logx.Logger
}

// Ensure Probe implements ports.Probe at compile time.
var _ coreports.Probe = (*Probe)(nil)

// New crea el probe.
func New(cfg Config, logger logx.Logger) *Probe {
	return NewWithDialer(cfg, &net.Dialer{}, logger)
}

// NewWithDialer crea el probe con un Dialer arbitrario.
func NewWithDialer(cfg Config, dialer Dialer, logger logx.Logger) *Probe {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 32
	}
	if logger == nil {
		logger = logx.NewNop()
	}

	// Lista sin duplicados y ordenada: el resultado es determinista
	seen := make(map[int]struct{}, len(cfg.Ports))
	list := make([]int, 0, len(cfg.Ports))
	for _, p := range cfg.Ports {
		if p < 1 || p > 65535 {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		list = append(list, p)
	}
	sort.Ints(list)

	return &Probe{
		ports:       list,
		timeout:     cfg.Timeout,
		concurrency: cfg.Concurrency,
		dialer:      dialer,
		logger:      logger.With("probe", Name),
	}
}

// Execute implementa ports.Probe.
func (p *Probe) Execute(ctx context.Context, target string) (map[string]any, error) {
	host := strings.TrimSuffix(strings.TrimSpace(target), ".")
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if host == "" {
		return nil, errors.New("invalid target: empty host")
	}
	if len(p.ports) == 0 {
		return nil, errors.New("no ports configured")
	}

	var (
		mu   sync.Mutex
		open []int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, port := range p.ports {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if p.isOpen(gctx, host, port) {
				mu.Lock()
				open = append(open, port)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("port scan interrupted: %w", err)
	}

	sort.Ints(open)
	openPorts := make([]any, 0, len(open))
	for _, port := range open {
		openPorts = append(openPorts, map[string]any{
			"port":    port,
			"service": ServiceName(port),
		})
	}

	p.logger.Debug("port scan completed", "host", host, "scanned", len(p.ports), "open", len(open))
	return map[string]any{
		"host":       host,
		"open_ports": openPorts,
		"scanned":    len(p.ports),
	}, nil
}

func (p *Probe) isOpen(ctx context.Context, host string, port int) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
