package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // zonas horarias sin depender del sistema

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/pricecast/internal/application/orchestrator"
	"github.com/alejandrodnm/pricecast/internal/domain"
)

var validate = validator.New()

// Config es la configuración completa del forecaster.
type Config struct {
	Data     DataConfig      `yaml:"data"`
	Run      RunConfig       `yaml:"run"`
	Backends []BackendConfig `yaml:"backends" validate:"dive"`
	Strategy StrategyConfig  `yaml:"strategy"`
	Storage  StorageConfig   `yaml:"storage"`
	Metrics  MetricsConfig   `yaml:"metrics"`
	Schedule ScheduleConfig  `yaml:"schedule"`
	Log      LogConfig       `yaml:"log"`
}

// DataConfig indica de dónde sale la serie.
type DataConfig struct {
	TrainFile  string `yaml:"train_file"`
	TruthFile  string `yaml:"truth_file"` // opcional: ground truth en un archivo aparte
	TimeLayout string `yaml:"time_layout" default:"2006-01-02 15:04:05"`
	Timezone   string `yaml:"timezone" default:"UTC"`
	Symbol     string `yaml:"symbol"` // si hay storage, la serie se importa/lee bajo este símbolo
}

// RunConfig controla el window builder, el horizonte y la concurrencia.
type RunConfig struct {
	WindowSize      int      `yaml:"window_size" default:"30" validate:"gte=1"`
	FeatureFields   []string `yaml:"feature_fields"`
	TargetField     string   `yaml:"target_field" default:"close" validate:"required"`
	Horizon         int      `yaml:"horizon" validate:"gte=0"`
	TrainCutoff     string   `yaml:"train_cutoff"`
	TruthUntil      string   `yaml:"truth_until"`
	ForecastUntil   string   `yaml:"forecast_until"`
	Step            string   `yaml:"step"` // duración Go ("1m"); vacío = inferido de la serie
	Workers         int      `yaml:"workers" validate:"gte=0"`
	CarryFields     []string `yaml:"carry_fields"`
	CheckpointEvery int      `yaml:"checkpoint_every" validate:"gte=0"`
}

// BackendConfig es un backend con sus hiperparámetros.
type BackendConfig struct {
	Name   string             `yaml:"name" validate:"required"`
	Params map[string]float64 `yaml:"params"`
}

// StrategyConfig configura el backtest directo (-strategy).
type StrategyConfig struct {
	Lookahead int     `yaml:"lookahead" default:"1" validate:"gte=1"`
	Stake     float64 `yaml:"stake" default:"100" validate:"gt=0"`
	TrainFrac float64 `yaml:"train_frac" default:"0.8" validate:"gt=0,lt=1"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, ":memory:" o vacío (sin persistencia)
}

// MetricsConfig controla el export de métricas Prometheus.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // vacío = sin export
}

// ScheduleConfig programa re-ejecuciones periódicas.
type ScheduleConfig struct {
	Cron string `yaml:"cron"` // expresión con segundos, p.ej. "0 */5 * * * *"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"text" validate:"oneof=text json"`
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodifica YAML, aplica overrides de entorno y defaults, y valida.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Parse: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("config.Parse: defaults: %w", err)
	}
	if len(cfg.Run.FeatureFields) == 0 {
		cfg.Run.FeatureFields = []string{cfg.Run.TargetField}
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config.Parse: %w", describe(err))
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("config.Parse: %w", err)
	}
	return &cfg, nil
}

// Location devuelve la zona horaria en la que se interpretan los timestamps.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Data.Timezone)
	if err != nil {
		return nil, &domain.InvalidConfigError{Option: "timezone", Reason: err.Error()}
	}
	return loc, nil
}

// Spec devuelve la configuración del window builder.
func (c *Config) Spec() domain.WindowSpec {
	return domain.WindowSpec{
		Size:   c.Run.WindowSize,
		Fields: toFields(c.Run.FeatureFields),
		Target: domain.Field(c.Run.TargetField),
	}
}

// RunOptions convierte la sección run en la configuración del orquestador.
func (c *Config) RunOptions() (orchestrator.Config, error) {
	loc, err := c.Location()
	if err != nil {
		return orchestrator.Config{}, fmt.Errorf("config.RunOptions: %w", err)
	}

	opts := orchestrator.Config{
		Spec:            c.Spec(),
		Horizon:         c.Run.Horizon,
		Synthesis:       domain.SynthesisPolicy{Carry: toFields(c.Run.CarryFields)},
		Workers:         c.Run.Workers,
		CheckpointEvery: c.Run.CheckpointEvery,
	}
	if err := opts.Spec.Validate(); err != nil {
		return orchestrator.Config{}, fmt.Errorf("config.RunOptions: %w", err)
	}

	times := []struct {
		option string
		raw    string
		dst    *time.Time
	}{
		{"train_cutoff", c.Run.TrainCutoff, &opts.Cutoff},
		{"truth_until", c.Run.TruthUntil, &opts.TruthUntil},
		{"forecast_until", c.Run.ForecastUntil, &opts.ForecastUntil},
	}
	for _, t := range times {
		if t.raw == "" {
			continue
		}
		v, err := c.parseTime(t.raw, loc)
		if err != nil {
			return orchestrator.Config{}, fmt.Errorf("config.RunOptions: %w",
				&domain.InvalidConfigError{Option: t.option, Reason: err.Error()})
		}
		*t.dst = v
	}

	if c.Run.Step != "" {
		step, err := time.ParseDuration(c.Run.Step)
		if err != nil || step <= 0 {
			return orchestrator.Config{}, fmt.Errorf("config.RunOptions: %w",
				&domain.InvalidConfigError{Option: "step", Reason: fmt.Sprintf("invalid duration %q", c.Run.Step)})
		}
		opts.Step = step
	}
	return opts, nil
}

// StrategyOptions convierte la sección strategy.
func (c *Config) StrategyOptions() orchestrator.StrategyConfig {
	return orchestrator.StrategyConfig{
		Lookahead: c.Strategy.Lookahead,
		Stake:     c.Strategy.Stake,
		TrainFrac: c.Strategy.TrainFrac,
	}
}

// BackendNames devuelve los nombres configurados, en orden.
func (c *Config) BackendNames() []string {
	names := make([]string, len(c.Backends))
	for i, b := range c.Backends {
		names[i] = b.Name
	}
	return names
}

func (c *Config) parseTime(raw string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{c.Data.TimeLayout, time.RFC3339} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q with layout %q", raw, c.Data.TimeLayout)
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("FORECASTER_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("FORECASTER_BACKENDS"); v != "" {
		cfg.Backends = selectBackends(cfg.Backends, strings.Split(v, ","))
	}
}

// selectBackends conserva los params del YAML para los nombres que ya estaban.
func selectBackends(current []BackendConfig, names []string) []BackendConfig {
	byName := make(map[string]BackendConfig, len(current))
	for _, b := range current {
		byName[b.Name] = b
	}
	out := make([]BackendConfig, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if b, ok := byName[n]; ok {
			out = append(out, b)
			continue
		}
		out = append(out, BackendConfig{Name: n})
	}
	return out
}

func toFields(names []string) []domain.Field {
	if len(names) == 0 {
		return nil
	}
	fields := make([]domain.Field, len(names))
	for i, n := range names {
		fields[i] = domain.Field(strings.TrimSpace(n))
	}
	return fields
}

// describe convierte los errores del validator en un mensaje por campo.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Namespace(), strings.ReplaceAll(fe.Param(), " ", ", ")))
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Namespace()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
