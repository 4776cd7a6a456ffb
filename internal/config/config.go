package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/models"
)

// Config holds service configuration loaded from YAML, .env and the environment.
type Config struct {
	ServerPort string `validate:"required,numeric"`

	DataDir         string `validate:"required"`
	RestaurantFile  string `validate:"required"`
	WineCatalogFile string `validate:"required"`
	SnapshotFile    string

	FreshnessWindow time.Duration `validate:"gt=0"`
	ResultLimit     int           `validate:"gt=0"`
	CacheBackend    string        `validate:"oneof=in_memory memcached"`
	MemoTTL         time.Duration `validate:"gte=0"`
	TrackedCities   []string
	WarmInterval    time.Duration `validate:"gte=0"`

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration `validate:"gt=0"`
	MemcachedMaxIdleConns int           `validate:"gt=0"`

	FlightOrigin      string `validate:"required,len=3,alpha"`
	FlightDestination string `validate:"required,len=3,alpha"`
	DepartureDate     string `validate:"required,datetime=2006-01-02"`
	Adults            int    `validate:"gt=0,lte=9"`
	Currency          string `validate:"required,len=3"`
	WeatherLocation   string `validate:"required"`
	RouteOrigin       models.Coordinate
	RouteDestination  models.Coordinate
	RateGateInterval  time.Duration `validate:"gte=0"`

	PlacesURL       string        `validate:"required,url"`
	AmadeusURL      string        `validate:"required,url"`
	OpenWeatherURL  string        `validate:"required,url"`
	TomTomURL       string        `validate:"required,url"`
	UpstreamTimeout time.Duration `validate:"gt=0"`
	RetryAttempts   int           `validate:"gte=1"`
	RetryDelay      time.Duration `validate:"gte=0"`

	BreakerFailureThreshold int           `validate:"gt=0"`
	BreakerSuccessThreshold int           `validate:"gt=0"`
	BreakerTimeout          time.Duration `validate:"gt=0"`

	RateLimitRPS     int           `validate:"gt=0"`
	RateLimitBurst   int           `validate:"gt=0"`
	RequestTimeout   time.Duration `validate:"gt=0"`
	LogisticsTimeout time.Duration `validate:"gt=0"`
	HealthWindow     time.Duration `validate:"gt=0"`
	HealthErrorPct   int           `validate:"gte=0,lte=100"`
	ShutdownTimeout  time.Duration `validate:"gt=0"`

	Secrets Secrets
}

// Secrets are upstream credentials. They come from the environment (or .env) first,
// then from config/secrets.yaml.
type Secrets struct {
	GoogleAPIKey        string `envconfig:"GOOGLE_API_KEY" yaml:"google_api_key" validate:"required"`
	AmadeusClientID     string `envconfig:"AMADEUS_CLIENT_ID" yaml:"amadeus_client_id" validate:"required"`
	AmadeusClientSecret string `envconfig:"AMADEUS_CLIENT_SECRET" yaml:"amadeus_client_secret" validate:"required"`
	OpenWeatherAPIKey   string `envconfig:"OPENWEATHERMAP_API_KEY" yaml:"openweathermap_api_key" validate:"required"`
	TomTomAPIKey        string `envconfig:"TOMTOM_API_KEY" yaml:"tomtom_api_key" validate:"required"`
}

// RestaurantPath is the append-only restaurant table.
func (c *Config) RestaurantPath() string { return filepath.Join(c.DataDir, c.RestaurantFile) }

// WineCatalogPath is the static wine catalog.
func (c *Config) WineCatalogPath() string { return filepath.Join(c.DataDir, c.WineCatalogFile) }

// SnapshotPath is the logistics export, or "" when exporting is disabled.
func (c *Config) SnapshotPath() string {
	if c.SnapshotFile == "" {
		return ""
	}
	return filepath.Join(c.DataDir, c.SnapshotFile)
}

// FlightQuery is the fixed flight search.
func (c *Config) FlightQuery() models.FlightQuery {
	return models.FlightQuery{
		Origin:        c.FlightOrigin,
		Destination:   c.FlightDestination,
		DepartureDate: c.DepartureDate,
		Adults:        c.Adults,
		Currency:      c.Currency,
	}
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Data struct {
		Dir             string  `yaml:"dir"`
		RestaurantFile  string  `yaml:"restaurant_file"`
		WineCatalogFile string  `yaml:"wine_catalog_file"`
		SnapshotFile    *string `yaml:"snapshot_file"`
	} `yaml:"data"`

	Cache struct {
		Backend         string   `yaml:"backend"`
		FreshnessWindow string   `yaml:"freshness_window"`
		ResultLimit     int      `yaml:"result_limit"`
		MemoTTL         string   `yaml:"memo_ttl"`
		TrackedCities   []string `yaml:"tracked_cities"`
		WarmInterval    string   `yaml:"warm_interval"`
		Memcached       struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Logistics struct {
		RateGateInterval string `yaml:"rate_gate_interval"`
		Origin           string `yaml:"origin"`
		Destination      string `yaml:"destination"`
		DepartureDate    string `yaml:"departure_date"`
		Adults           int    `yaml:"adults"`
		Currency         string `yaml:"currency"`
		WeatherLocation  string `yaml:"weather_location"`
		Route            struct {
			Origin      string `yaml:"origin"`
			Destination string `yaml:"destination"`
		} `yaml:"route"`
	} `yaml:"logistics"`

	Upstream struct {
		PlacesURL        string `yaml:"places_url"`
		AmadeusURL       string `yaml:"amadeus_url"`
		OpenWeatherURL   string `yaml:"openweather_url"`
		TomTomURL        string `yaml:"tomtom_url"`
		Timeout          string `yaml:"timeout"`
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryDelay       string `yaml:"retry_delay"`
	} `yaml:"upstream"`

	CircuitBreaker struct {
		FailureThreshold int    `yaml:"failure_threshold"`
		SuccessThreshold int    `yaml:"success_threshold"`
		Timeout          string `yaml:"timeout"`
	} `yaml:"circuit_breaker"`

	Reliability struct {
		RateLimitRPS   int    `yaml:"rate_limit_rps"`
		RateLimitBurst int    `yaml:"rate_limit_burst"`
		HealthWindow   string `yaml:"health_window"`
		HealthErrorPct int    `yaml:"health_error_pct"`
	} `yaml:"reliability"`

	Request struct {
		Timeout          string `yaml:"timeout"`
		LogisticsTimeout string `yaml:"logistics_timeout"`
	} `yaml:"request"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

// envOverrides are non-secret settings the environment may override.
type envOverrides struct {
	CacheBackend   string `envconfig:"CACHE_BACKEND"`
	MemcachedAddrs string `envconfig:"MEMCACHED_ADDRS"`
	DataDir        string `envconfig:"DATA_DIR"`
	Port           string `envconfig:"PORT"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev), .env and config/secrets.yaml.
// Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom is Load rooted at dir instead of the working directory.
func LoadFrom(dir string) (*Config, error) {
	// Existing environment variables win over .env.
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	configPath := filepath.Join(dir, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	var over envOverrides
	if err := envconfig.Process("", &over); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	cfg, err := fromFile(&fc, &over)
	if err != nil {
		return nil, err
	}
	if err := loadSecrets(dir, &cfg.Secrets); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromFile(fc *fileConfig, over *envOverrides) (*Config, error) {
	cfg := &Config{}

	cfg.ServerPort = firstNonEmpty(over.Port, fc.Server.Port, "8080")

	cfg.DataDir = firstNonEmpty(over.DataDir, fc.Data.Dir, "data")
	cfg.RestaurantFile = firstNonEmpty(fc.Data.RestaurantFile, "restaurant_and_wine_data.csv")
	cfg.WineCatalogFile = firstNonEmpty(fc.Data.WineCatalogFile, "wine_restaurants.csv")
	cfg.SnapshotFile = "logistics_analysis_detailed.csv"
	if fc.Data.SnapshotFile != nil {
		cfg.SnapshotFile = strings.TrimSpace(*fc.Data.SnapshotFile)
	}

	cfg.FreshnessWindow = parseDuration(fc.Cache.FreshnessWindow, 12*time.Hour)
	cfg.ResultLimit = fc.Cache.ResultLimit
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = 50
	}
	cfg.CacheBackend = strings.ToLower(firstNonEmpty(over.CacheBackend, fc.Cache.Backend, "in_memory"))
	cfg.MemoTTL = parseDurationOrZero(fc.Cache.MemoTTL, 0)
	cfg.TrackedCities = fc.Cache.TrackedCities
	cfg.WarmInterval = parseDurationOrZero(fc.Cache.WarmInterval, 0)
	cfg.MemcachedAddrs = firstNonEmpty(over.MemcachedAddrs, fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	lg := fc.Logistics
	cfg.RateGateInterval = parseDurationOrZero(lg.RateGateInterval, 2*time.Second)
	cfg.FlightOrigin = strings.ToUpper(firstNonEmpty(lg.Origin, "CPT"))
	cfg.FlightDestination = strings.ToUpper(firstNonEmpty(lg.Destination, "LAX"))
	cfg.DepartureDate = firstNonEmpty(lg.DepartureDate, "2024-12-01")
	cfg.Adults = lg.Adults
	if cfg.Adults <= 0 {
		cfg.Adults = 1
	}
	cfg.Currency = strings.ToUpper(firstNonEmpty(lg.Currency, "ZAR"))
	cfg.WeatherLocation = firstNonEmpty(lg.WeatherLocation, "Los Angeles,US")
	var err error
	if cfg.RouteOrigin, err = parseCoordinate(firstNonEmpty(lg.Route.Origin, "33.9416,-118.4085")); err != nil {
		return nil, fmt.Errorf("logistics.route.origin: %w", err)
	}
	if cfg.RouteDestination, err = parseCoordinate(firstNonEmpty(lg.Route.Destination, "34.5889,-120.0382")); err != nil {
		return nil, fmt.Errorf("logistics.route.destination: %w", err)
	}

	up := fc.Upstream
	cfg.PlacesURL = firstNonEmpty(up.PlacesURL, "https://maps.googleapis.com/maps/api/place")
	cfg.AmadeusURL = firstNonEmpty(up.AmadeusURL, "https://test.api.amadeus.com")
	cfg.OpenWeatherURL = firstNonEmpty(up.OpenWeatherURL, "https://api.openweathermap.org/data/2.5")
	cfg.TomTomURL = firstNonEmpty(up.TomTomURL, "https://api.tomtom.com")
	cfg.UpstreamTimeout = parseDuration(up.Timeout, 10*time.Second)
	cfg.RetryAttempts = up.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	cfg.RetryDelay = parseDurationOrZero(up.RetryDelay, time.Second)

	cfg.BreakerFailureThreshold = fc.CircuitBreaker.FailureThreshold
	if cfg.BreakerFailureThreshold <= 0 {
		cfg.BreakerFailureThreshold = 5
	}
	cfg.BreakerSuccessThreshold = fc.CircuitBreaker.SuccessThreshold
	if cfg.BreakerSuccessThreshold <= 0 {
		cfg.BreakerSuccessThreshold = 2
	}
	cfg.BreakerTimeout = parseDuration(fc.CircuitBreaker.Timeout, 30*time.Second)

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 40
	}
	cfg.HealthWindow = parseDuration(fc.Reliability.HealthWindow, time.Minute)
	cfg.HealthErrorPct = fc.Reliability.HealthErrorPct
	if cfg.HealthErrorPct <= 0 {
		cfg.HealthErrorPct = 50
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 30*time.Second)
	cfg.LogisticsTimeout = parseDuration(fc.Request.LogisticsTimeout, 2*time.Minute)
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	return cfg, nil
}

// loadSecrets reads credentials from the environment and fills the gaps from config/secrets.yaml.
func loadSecrets(dir string, s *Secrets) error {
	if err := envconfig.Process("", s); err != nil {
		return fmt.Errorf("process secrets: %w", err)
	}
	if s.complete() {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(dir, "config", "secrets.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read secrets file: %w", err)
	}
	var file Secrets
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse secrets file: %w", err)
	}
	s.GoogleAPIKey = firstNonEmpty(s.GoogleAPIKey, file.GoogleAPIKey)
	s.AmadeusClientID = firstNonEmpty(s.AmadeusClientID, file.AmadeusClientID)
	s.AmadeusClientSecret = firstNonEmpty(s.AmadeusClientSecret, file.AmadeusClientSecret)
	s.OpenWeatherAPIKey = firstNonEmpty(s.OpenWeatherAPIKey, file.OpenWeatherAPIKey)
	s.TomTomAPIKey = firstNonEmpty(s.TomTomAPIKey, file.TomTomAPIKey)
	return nil
}

func (s Secrets) complete() bool {
	return s.GoogleAPIKey != "" && s.AmadeusClientID != "" && s.AmadeusClientSecret != "" &&
		s.OpenWeatherAPIKey != "" && s.TomTomAPIKey != ""
}

// parseCoordinate reads "lat,lng".
func parseCoordinate(s string) (models.Coordinate, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return models.Coordinate{}, fmt.Errorf("want \"lat,lng\", got %q", s)
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil || la < -90 || la > 90 {
		return models.Coordinate{}, fmt.Errorf("bad latitude %q", lat)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil || lo < -180 || lo > 180 {
		return models.Coordinate{}, fmt.Errorf("bad longitude %q", lng)
	}
	return models.Coordinate{Lat: la, Lng: lo}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero is kept; negative values fall back to defaultVal.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}

var structValidator = validator.New()

// validate checks field constraints and adjusts the logistics timeout so a
// request can always outlast one rate-gate interval plus the upstream calls.
func validate(cfg *Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.CacheBackend == "memcached" && cfg.MemcachedAddrs == "" {
		return fmt.Errorf("cache.memcached.addrs required for memcached backend")
	}
	if floor := cfg.RateGateInterval + 3*cfg.UpstreamTimeout; cfg.LogisticsTimeout <= floor {
		cfg.LogisticsTimeout = floor + time.Second
	}
	return nil
}
