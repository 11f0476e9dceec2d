// Package httpclient provee un cliente HTTP con reintentos, rate limiting y timeout.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"reconx/internal/platform/logx"
)

// Errores de estado HTTP; CheckStatus los envuelve con el código recibido.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrRateLimit          = errors.New("rate limit exceeded")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// maxBodySize límite de lectura de una respuesta.
const maxBodySize = 8 << 20

// Config configura el cliente.
type Config struct {
	// Timeout por petición individual
	Timeout time.Duration

	// MaxRetries reintentos tras el primer intento
	MaxRetries int

	// RetryBackoff intervalo inicial, crece exponencialmente hasta MaxRetryBackoff
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration

	UserAgent string

	// RateLimit peticiones por segundo (0 = sin límite)
	RateLimit      float64
	RateLimitBurst int
}

// DefaultConfig retorna la configuración por defecto.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    500 * time.Millisecond,
		MaxRetryBackoff: 5 * time.Second,
		UserAgent:       "ReconX/1.0",
		RateLimitBurst:  1,
	}
}

// Client es seguro para uso concurrente.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logx.Logger
	config     Config
}

// New crea un cliente aplicando defaults a los campos vacíos.
func New(config Config, logger logx.Logger) *Client {
	def := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = def.RetryBackoff
	}
	if config.MaxRetryBackoff <= 0 {
		config.MaxRetryBackoff = def.MaxRetryBackoff
	}
	if config.UserAgent == "" {
		config.UserAgent = def.UserAgent
	}
	if config.RateLimitBurst <= 0 {
		config.RateLimitBurst = 1
	}
	if logger == nil {
		logger = logx.NewNop()
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), config.RateLimitBurst)
	}

	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    limiter,
		logger:     logger.With("component", "httpclient"),
		config:     config,
	}
}

// Get ejecuta un GET con reintentos ante errores de red y estados 429/502/503/504.
// El caller debe cerrar el body de la respuesta.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.config.RetryBackoff
	expBackoff.MaxInterval = c.config.MaxRetryBackoff
	expBackoff.MaxElapsedTime = 0 // el límite lo pone MaxRetries

	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(c.config.MaxRetries)), ctx)

	var (
		resp    *http.Response
		attempt int
	)
	operation := func() error {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(fmt.Errorf("rate limit wait failed: %w", err))
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request for %s: %w", url, err))
		}
		req.Header.Set("User-Agent", c.config.UserAgent)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		start := time.Now()
		r, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.logger.Warn("HTTP request failed",
				"url", url,
				"attempt", attempt,
				"error", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return err
		}

		if isRetryableStatus(r.StatusCode) {
			r.Body.Close()
			c.logger.Warn("HTTP request returned retryable status",
				"url", url,
				"status", r.StatusCode,
				"attempt", attempt,
			)
			return CheckStatus(r)
		}

		c.logger.Debug("HTTP response received",
			"url", url,
			"status", r.StatusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		resp = r
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("request failed after %d attempts: %w", attempt, err)
	}
	return resp, nil
}

// FetchJSON ejecuta un GET que espera JSON y retorna el body si el estado es 2xx.
func (c *Client) FetchJSON(ctx context.Context, url string, accept string) ([]byte, error) {
	if accept == "" {
		accept = "application/json"
	}
	resp, err := c.Get(ctx, url, map[string]string{"Accept": accept})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := CheckStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// CheckStatus traduce estados no-2xx a los errores del paquete.
func CheckStatus(resp *http.Response) error {
	if resp == nil {
		return errors.New("response is nil")
	}
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}

	switch code {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP %d", ErrRateLimit, code)
	case http.StatusNotFound:
		return fmt.Errorf("%w: HTTP %d", ErrNotFound, code)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrUnauthorized, code)
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusBadGateway:
		return fmt.Errorf("%w: HTTP %d", ErrServiceUnavailable, code)
	default:
		return fmt.Errorf("HTTP %d: %s", code, http.StatusText(code))
	}
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// String retorna una representación legible de la configuración.
func (c *Client) String() string {
	return fmt.Sprintf("HTTPClient{timeout=%s, max_retries=%d, rate_limit=%.1f/s}",
		c.config.Timeout, c.config.MaxRetries, c.config.RateLimit)
}
