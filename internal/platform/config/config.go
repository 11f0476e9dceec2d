// internal/platform/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrHelp se retorna cuando se pidió la ayuda (-h / --help).
var ErrHelp = pflag.ErrHelp

// EnvPrefix prefijo de las variables de entorno (RECONX_WORKERS, RECONX_LEDGER_DSN...).
const EnvPrefix = "RECONX"

// Drivers del TaskLedger.
const (
	LedgerMemory   = "memory"
	LedgerPostgres = "postgres"
)

type Config struct {
	// App
	Target       string        `mapstructure:"target" json:"target"`
	Probes       []string      `mapstructure:"probes" json:"probes"`
	Workers      int           `mapstructure:"workers" json:"workers"`
	Deadline     time.Duration `mapstructure:"deadline" json:"deadline"`
	DrainTimeout time.Duration `mapstructure:"drain_timeout" json:"drain_timeout"`
	PrintVersion bool          `mapstructure:"-" json:"-"`
	ConfigFile   string        `mapstructure:"-" json:"config_file,omitempty"`

	// Acciones alternativas al escaneo
	ListProbes  bool   `mapstructure:"-" json:"-"`
	ListReports bool   `mapstructure:"-" json:"-"`
	LoadReport  string `mapstructure:"-" json:"-"`
	ShowTask    string `mapstructure:"-" json:"-"`
	ListTasks   bool   `mapstructure:"-" json:"-"`
	TasksLimit  int    `mapstructure:"tasks_limit" json:"tasks_limit"`

	Output    Output    `mapstructure:"output" json:"output"`
	Ledger    Ledger    `mapstructure:"ledger" json:"ledger"`
	Kafka     Kafka     `mapstructure:"kafka" json:"kafka"`
	Telemetry Telemetry `mapstructure:"telemetry" json:"telemetry"`
	Log       Log       `mapstructure:"log" json:"log"`

	// Reintentos y circuit breaker alrededor de los probes integrados
	Resilience Resilience `mapstructure:"resilience" json:"resilience"`

	// Configuración por probe
	Whois WhoisProbe `mapstructure:"whois" json:"whois"`
	DNS   DNSProbe   `mapstructure:"dns" json:"dns"`
	Ports PortsProbe `mapstructure:"ports" json:"ports"`
}

type Output struct {
	Dir    string `mapstructure:"dir" json:"dir"`
	Format string `mapstructure:"format" json:"format"`
	Save   bool   `mapstructure:"save" json:"save"`
	Quiet  bool   `mapstructure:"quiet" json:"quiet"` // sin resumen en terminal
}

type Ledger struct {
	Driver   string        `mapstructure:"driver" json:"driver"`
	DSN      string        `mapstructure:"dsn" json:"-"`
	MaxConns int32         `mapstructure:"max_conns" json:"max_conns"`
	RetryFor time.Duration `mapstructure:"retry_for" json:"retry_for"`
}

type Kafka struct {
	Enabled  bool          `mapstructure:"enabled" json:"enabled"`
	Brokers  []string      `mapstructure:"brokers" json:"brokers"`
	Topic    string        `mapstructure:"topic" json:"topic"`
	ClientID string        `mapstructure:"client_id" json:"client_id"`
	RetryFor time.Duration `mapstructure:"retry_for" json:"retry_for"`
}

type Telemetry struct {
	Endpoint    string  `mapstructure:"endpoint" json:"endpoint"`
	Insecure    bool    `mapstructure:"insecure" json:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio" json:"sample_ratio"`
	ServiceName string  `mapstructure:"service_name" json:"service_name"`
}

type Log struct {
	Level    string `mapstructure:"level" json:"level"`
	Encoding string `mapstructure:"encoding" json:"encoding"`
}

// Resilience: MaxRetries 0 desactiva los reintentos y BreakerThreshold 0 el breaker.
type Resilience struct {
	MaxRetries       int           `mapstructure:"max_retries" json:"max_retries"`
	Backoff          time.Duration `mapstructure:"backoff" json:"backoff"`
	BreakerThreshold int           `mapstructure:"breaker_threshold" json:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown" json:"breaker_cooldown"`
}

// Enabled indica si algún mecanismo de resiliencia está activo.
func (r Resilience) Enabled() bool {
	return r.MaxRetries > 0 || r.BreakerThreshold > 0
}

type WhoisProbe struct {
	Enabled  bool          `mapstructure:"enabled" json:"enabled"`
	Endpoint string        `mapstructure:"endpoint" json:"endpoint"` // base RDAP
	Timeout  time.Duration `mapstructure:"timeout" json:"timeout"`
}

type DNSProbe struct {
	Enabled bool          `mapstructure:"enabled" json:"enabled"`
	Server  string        `mapstructure:"server" json:"server"` // host:port; vacío = resolver del sistema
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

type PortsProbe struct {
	Enabled     bool          `mapstructure:"enabled" json:"enabled"`
	Ports       []int         `mapstructure:"ports" json:"ports"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"` // por conexión
	Concurrency int           `mapstructure:"concurrency" json:"concurrency"`
}

// DefaultPorts puertos TCP comunes que el probe de puertos comprueba por defecto.
var DefaultPorts = []int{21, 22, 25, 53, 80, 110, 143, 443, 465, 587, 993, 995, 3306, 5432, 6379, 8080, 8443}

// setDefaults registra los valores por defecto; toda clave debe tener default para
// que AutomaticEnv la resuelva al hacer Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("target", "")
	v.SetDefault("probes", []string{})
	v.SetDefault("workers", 8)
	v.SetDefault("deadline", time.Duration(0))
	v.SetDefault("drain_timeout", 10*time.Second)
	v.SetDefault("tasks_limit", 20)

	v.SetDefault("output.dir", "reconx_out")
	v.SetDefault("output.format", "json")
	v.SetDefault("output.save", true)
	v.SetDefault("output.quiet", false)

	v.SetDefault("ledger.driver", LedgerMemory)
	v.SetDefault("ledger.dsn", "")
	v.SetDefault("ledger.max_conns", 8)
	v.SetDefault("ledger.retry_for", 30*time.Second)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "reconx.events")
	v.SetDefault("kafka.client_id", "reconx")
	v.SetDefault("kafka.retry_for", 30*time.Second)

	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.service_name", "reconx")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")

	v.SetDefault("resilience.max_retries", 0)
	v.SetDefault("resilience.backoff", time.Second)
	v.SetDefault("resilience.breaker_threshold", 0)
	v.SetDefault("resilience.breaker_cooldown", time.Minute)

	v.SetDefault("whois.enabled", true)
	v.SetDefault("whois.endpoint", "https://rdap.org")
	v.SetDefault("whois.timeout", 15*time.Second)

	v.SetDefault("dns.enabled", true)
	v.SetDefault("dns.server", "")
	v.SetDefault("dns.timeout", 5*time.Second)

	v.SetDefault("ports.enabled", true)
	v.SetDefault("ports.ports", DefaultPorts)
	v.SetDefault("ports.timeout", 2*time.Second)
	v.SetDefault("ports.concurrency", 32)
}

// DefaultConfig retorna la configuración por defecto.
func DefaultConfig() Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Los defaults son válidos por construcción
	_ = v.Unmarshal(&cfg)
	return cfg
}

// flags define el FlagSet de la CLI. Cada flag se liga a una clave de viper salvo las acciones.
func flags(cfg *Config) (*pflag.FlagSet, map[string]string) {
	fs := pflag.NewFlagSet("reconx", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.Usage = func() {}

	fs.StringVarP(&cfg.ConfigFile, "config", "c", "", "Archivo de configuración YAML")
	fs.StringP("target", "t", "", "Objetivo (dominio o IP)")
	fs.StringSliceP("probes", "p", nil, "Probes a ejecutar (por defecto los habilitados)")
	fs.IntP("workers", "w", 0, "Máximo de probes concurrentes")
	fs.DurationP("deadline", "d", 0, "Deadline del escaneo (0 = sin deadline)")
	fs.Duration("drain-timeout", 0, "Espera máxima por probes tardíos y notificaciones al salir")

	fs.StringP("out", "o", "", "Directorio de informes")
	fs.StringP("format", "f", "", "Formato del informe: json, yaml, text")
	fs.Bool("save", true, "Guardar el informe en el directorio de salida")
	fs.BoolP("quiet", "q", false, "Sin resumen en terminal")

	fs.String("ledger", "", "Driver del ledger: memory, postgres")
	fs.String("ledger-dsn", "", "DSN de Postgres")
	fs.Bool("kafka", false, "Publicar eventos en Kafka")
	fs.StringSlice("kafka-brokers", nil, "Brokers de Kafka")
	fs.String("kafka-topic", "", "Topic de eventos")
	fs.String("otel-endpoint", "", "Colector OTLP/gRPC (vacío = sin tracing)")
	fs.String("log-level", "", "Nivel de log: debug, info, warn, error")
	fs.String("log-format", "", "Formato de log: console, json")

	fs.Int("retries", 0, "Reintentos por probe integrado")
	fs.Int("breaker-threshold", 0, "Intentos fallidos seguidos, reintentos incluidos, que abren el circuit breaker (0 = deshabilitado)")

	fs.Bool("probe.whois", true, "Habilitar probe whois")
	fs.Bool("probe.dns", true, "Habilitar probe dns")
	fs.Bool("probe.ports", true, "Habilitar probe ports")
	fs.IntSlice("ports.list", nil, "Puertos TCP a comprobar")

	fs.BoolVar(&cfg.ListProbes, "list-probes", false, "Listar probes registrados y salir")
	fs.BoolVar(&cfg.ListReports, "list-reports", false, "Listar informes guardados y salir")
	fs.StringVar(&cfg.LoadReport, "load", "", "Mostrar un informe JSON guardado")
	fs.StringVar(&cfg.ShowTask, "task", "", "Mostrar una task del ledger")
	fs.BoolVar(&cfg.ListTasks, "tasks", false, "Listar las tasks del ledger")
	fs.Int("tasks-limit", 0, "Máximo de tasks listadas")
	fs.BoolVarP(&cfg.PrintVersion, "version", "v", false, "Imprimir versión y salir")

	bindings := map[string]string{
		"target":            "target",
		"probes":            "probes",
		"workers":           "workers",
		"deadline":          "deadline",
		"drain-timeout":     "drain_timeout",
		"out":               "output.dir",
		"format":            "output.format",
		"save":              "output.save",
		"quiet":             "output.quiet",
		"ledger":            "ledger.driver",
		"ledger-dsn":        "ledger.dsn",
		"kafka":             "kafka.enabled",
		"kafka-brokers":     "kafka.brokers",
		"kafka-topic":       "kafka.topic",
		"otel-endpoint":     "telemetry.endpoint",
		"log-level":         "log.level",
		"log-format":        "log.encoding",
		"retries":           "resilience.max_retries",
		"breaker-threshold": "resilience.breaker_threshold",
		"probe.whois":       "whois.enabled",
		"probe.dns":         "dns.enabled",
		"probe.ports":       "ports.enabled",
		"ports.list":        "ports.ports",
		"tasks-limit":       "tasks_limit",
	}
	return fs, bindings
}

// Load construye la configuración: defaults -> archivo YAML -> ENV (RECONX_*) -> flags.
// El primer argumento posicional se toma como target si no se pasó --target.
func Load(args []string) (Config, error) {
	var cfg Config

	fs, bindings := flags(&cfg)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return cfg, ErrHelp
		}
		return cfg, fmt.Errorf("parsing flags: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfg.ConfigFile != "" {
		v.SetConfigFile(cfg.ConfigFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Solo los flags presentes en la línea de comandos pisan ENV y archivo
	for name, key := range bindings {
		if f := fs.Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return cfg, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Target == "" && fs.NArg() > 0 {
		cfg.Target = fs.Arg(0)
	}

	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func normalize(c *Config) {
	c.Target = strings.TrimSpace(c.Target)
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Deadline < 0 {
		c.Deadline = 0
	}
	if c.DrainTimeout < 0 {
		c.DrainTimeout = 0
	}
	if c.TasksLimit < 0 {
		c.TasksLimit = 0
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "reconx_out"
	}
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	if c.Output.Format == "" {
		c.Output.Format = "json"
	}
	c.Ledger.Driver = strings.ToLower(strings.TrimSpace(c.Ledger.Driver))
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = LedgerMemory
	}
	if c.Resilience.MaxRetries < 0 {
		c.Resilience.MaxRetries = 0
	}
	if c.Resilience.BreakerThreshold < 0 {
		c.Resilience.BreakerThreshold = 0
	}
	if c.Ports.Concurrency < 1 {
		c.Ports.Concurrency = 1
	}

	probes := make([]string, 0, len(c.Probes))
	for _, p := range c.Probes {
		if p = strings.TrimSpace(p); p != "" {
			probes = append(probes, p)
		}
	}
	c.Probes = probes
}

// Validate comprueba combinaciones que no tienen arreglo por normalización.
func (c Config) Validate() error {
	var errs []error

	switch c.Output.Format {
	case "json", "yaml", "yml", "text", "txt":
	default:
		errs = append(errs, fmt.Errorf("unsupported output format %q", c.Output.Format))
	}

	switch c.Ledger.Driver {
	case LedgerMemory:
	case LedgerPostgres:
		if c.Ledger.DSN == "" {
			errs = append(errs, errors.New("postgres ledger requires ledger.dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger driver %q", c.Ledger.Driver))
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka enabled without brokers"))
		}
		if c.Kafka.Topic == "" {
			errs = append(errs, errors.New("kafka enabled without topic"))
		}
	}

	for _, p := range c.Ports.Ports {
		if p < 1 || p > 65535 {
			errs = append(errs, fmt.Errorf("invalid port %d", p))
			break
		}
	}

	return errors.Join(errs...)
}

// EnabledProbes retorna los probes a ejecutar: la lista explícita si se dio, si no
// los probes integrados habilitados, en orden alfabético.
func (c Config) EnabledProbes() []string {
	if len(c.Probes) > 0 {
		return append([]string(nil), c.Probes...)
	}

	var names []string
	if c.DNS.Enabled {
		names = append(names, "dns")
	}
	if c.Ports.Enabled {
		names = append(names, "ports")
	}
	if c.Whois.Enabled {
		names = append(names, "whois")
	}
	sort.Strings(names)
	return names
}

// ToJSON serializa la configuración a JSON (útil para debugging). El DSN se omite.
func (c Config) ToJSON() (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
