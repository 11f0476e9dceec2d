// Package whois implementa el probe "whois" sobre RDAP (Registration Data Access Protocol).
// Consulta el registro del dominio registrable del target y retorna registrar, estados,
// nameservers y fechas relevantes.
package whois

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"reconx/internal/core/ports"
	"reconx/internal/platform/cache"
	"reconx/internal/platform/httpclient"
	"reconx/internal/platform/logx"
)

const (
	// Name nombre con el que se registra el probe
	Name = "whois"

	// DefaultEndpoint servicio bootstrap que redirige al servidor RDAP autoritativo
	DefaultEndpoint = "https://rdap.org"

	rdapAccept = "application/rdap+json"
	cacheTTL   = time.Hour
)

// Metadata describe el probe para el listado de probes.
var Metadata = ports.ProbeMetadata{
	Name:        Name,
	Description: "RDAP registration data (registrar, status, nameservers, dates)",
	Active:      false,
}

// Config configura el probe.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// Probe consulta RDAP. Las respuestas se cachean por dominio registrable.
type Probe struct {
	endpoint string
	client   *httpclient.Client
	cache    *cache.LRU[map[string]any]
	logger   logx.Logger
}

// Ensure Probe implements ports.Probe at compile time.
var _ ports.Probe = (*Probe)(nil)

// New crea el probe.
func New(cfg Config, logger logx.Logger) *Probe {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = logx.NewNop()
	}

	httpCfg := httpclient.DefaultConfig()
	if cfg.Timeout > 0 {
		httpCfg.Timeout = cfg.Timeout
	}
	httpCfg.UserAgent = "ReconX/1.0 RDAP Client"
	httpCfg.RateLimit = 5
	httpCfg.RateLimitBurst = 2

	return &Probe{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   httpclient.New(httpCfg, logger),
		cache:    cache.New[map[string]any](512, cacheTTL),
		logger:   logger.With("probe", Name),
	}
}

// rdapResponse respuesta RDAP de dominio (simplificada).
type rdapResponse struct {
	ObjectClassName string           `json:"objectClassName"`
	Handle          string           `json:"handle"`
	LDHName         string           `json:"ldhName"`
	Status          []string         `json:"status"`
	Entities        []rdapEntity     `json:"entities"`
	Nameservers     []rdapNameserver `json:"nameservers"`
	Events          []rdapEvent      `json:"events"`
	SecureDNS       struct {
		DelegationSigned bool `json:"delegationSigned"`
	} `json:"secureDNS"`
	Port43 string `json:"port43"`
}

type rdapEntity struct {
	Handle     string       `json:"handle"`
	Roles      []string     `json:"roles"`
	VCardArray []any        `json:"vcardArray"`
	Entities   []rdapEntity `json:"entities"`
	PublicIDs  []struct {
		Type       string `json:"type"`
		Identifier string `json:"identifier"`
	} `json:"publicIds"`
}

type rdapNameserver struct {
	LDHName string `json:"ldhName"`
}

type rdapEvent struct {
	EventAction string `json:"eventAction"`
	EventDate   string `json:"eventDate"`
}

// Execute implementa ports.Probe.
func (p *Probe) Execute(ctx context.Context, target string) (map[string]any, error) {
	name, err := RegistrableDomain(target)
	if err != nil {
		return nil, err
	}

	if cached, ok := p.cache.Get(name); ok {
		p.logger.Debug("RDAP response found in cache", "domain", name)
		return cached, nil
	}

	queryURL := fmt.Sprintf("%s/domain/%s", p.endpoint, url.PathEscape(name))
	p.logger.Debug("querying RDAP server", "domain", name, "url", queryURL)

	body, err := p.client.FetchJSON(ctx, queryURL, rdapAccept)
	if err != nil {
		if errors.Is(err, httpclient.ErrNotFound) {
			return nil, fmt.Errorf("domain not found in RDAP: %s", name)
		}
		return nil, fmt.Errorf("RDAP query failed for %s: %w", name, err)
	}

	var resp rdapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse RDAP response for %s: %w", name, err)
	}

	result := summarize(name, &resp)
	result["source"] = p.endpoint
	p.cache.Set(name, result)

	p.logger.Debug("RDAP query completed", "domain", name, "nameservers", len(resp.Nameservers))
	return result, nil
}

// RegistrableDomain retorna el eTLD+1 del target (sub.example.co.uk -> example.co.uk).
// Acepta URLs y host:port; rechaza IPs.
func RegistrableDomain(target string) (string, error) {
	host := strings.ToLower(strings.TrimSpace(target))
	if strings.Contains(host, "://") {
		if u, err := url.Parse(host); err == nil && u.Hostname() != "" {
			host = u.Hostname()
		}
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")

	if host == "" {
		return "", errors.New("invalid target: empty host")
	}
	if net.ParseIP(host) != nil {
		return "", fmt.Errorf("whois requires a domain name, got IP %s", host)
	}

	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", fmt.Errorf("invalid target %q: %w", host, err)
	}
	return etld1, nil
}

func summarize(name string, r *rdapResponse) map[string]any {
	out := map[string]any{
		"domain": name,
		"dnssec": r.SecureDNS.DelegationSigned,
	}
	if r.LDHName != "" {
		out["domain"] = strings.ToLower(r.LDHName)
	}
	if r.Handle != "" {
		out["handle"] = r.Handle
	}
	if r.Port43 != "" {
		out["whois_server"] = r.Port43
	}

	status := make([]any, 0, len(r.Status))
	for _, s := range r.Status {
		status = append(status, s)
	}
	out["status"] = status

	nameservers := make([]any, 0, len(r.Nameservers))
	for _, ns := range r.Nameservers {
		if ns.LDHName != "" {
			nameservers = append(nameservers, strings.ToLower(ns.LDHName))
		}
	}
	out["nameservers"] = nameservers

	events := make(map[string]any)
	for _, ev := range r.Events {
		switch strings.ToLower(ev.EventAction) {
		case "registration":
			events["registered"] = ev.EventDate
		case "last changed":
			events["updated"] = ev.EventDate
		case "expiration":
			events["expires"] = ev.EventDate
		}
	}
	if len(events) > 0 {
		out["events"] = events
	}

	for _, e := range r.Entities {
		if hasRole(e.Roles, "registrar") {
			if fn := vcardField(e.VCardArray, "fn"); fn != "" {
				out["registrar"] = fn
			}
			for _, id := range e.PublicIDs {
				if id.Type == "IANA Registrar ID" {
					out["registrar_iana_id"] = id.Identifier
				}
			}
		}
		if hasRole(e.Roles, "registrant") {
			if org := vcardField(e.VCardArray, "org"); org != "" {
				out["registrant_org"] = org
			}
		}
	}
	return out
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// vcardField extrae un campo de texto de un jCard: ["vcard", [[name, params, type, value], ...]].
func vcardField(vcard []any, field string) string {
	if len(vcard) < 2 {
		return ""
	}
	props, ok := vcard[1].([]any)
	if !ok {
		return ""
	}
	for _, raw := range props {
		prop, ok := raw.([]any)
		if !ok || len(prop) < 4 {
			continue
		}
		if name, _ := prop[0].(string); name != field {
			continue
		}
		switch v := prop[3].(type) {
		case string:
			return v
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok && s != "" {
					parts = append(parts, s)
				}
			}
			return strings.Join(parts, " ")
		}
	}
	return ""
}
