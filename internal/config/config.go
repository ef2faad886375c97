package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// PasswordHashEnv overrides auth.password_hash when set
const PasswordHashEnv = "NITPLANE_PASSWORD_HASH"

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server       ServerConfig       `toml:"server"`        // HTTP server settings
	Feed         FeedConfig         `toml:"feed"`          // Upstream flight feed settings
	Simulation   SimulationConfig   `toml:"simulation"`    // Fallback dataset settings
	Station      StationConfig      `toml:"station"`       // Default reference point
	Logging      LoggingConfig      `toml:"logging"`       // Application logging settings
	Storage      StorageConfig      `toml:"storage"`       // Session persistence
	Auth         AuthConfig         `toml:"auth"`          // Login gate
	Airlines     []AirlineConfig    `toml:"airlines"`      // Callsign prefix -> airline mapping
	AirlineLogos AirlineLogosConfig `toml:"airline_logos"` // Logo URL settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // HTTP port
	Host               string   `toml:"host"`                  // Host address to bind to
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // Cross-origin callers; empty means same-origin only
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Keep-alive idle timeout
	StaticFilesDir     string   `toml:"static_files_dir"`      // Directory with the browser UI (optional)
}

// FeedConfig contains the flight-state source and the proximity policy
type FeedConfig struct {
	SourceURL          string  `toml:"source_url"`              // Aircraft-state endpoint (no bounding box is appended)
	RequestTimeoutSecs int     `toml:"request_timeout_seconds"` // Per-request timeout
	FetchIntervalSecs  int     `toml:"fetch_interval_seconds"`  // Poll interval of the feed service
	ProximityFilter    *bool   `toml:"proximity_filter"`        // Compute distance, filter by radius and sort (default true)
	RadiusKm           float64 `toml:"radius_km"`               // Proximity radius
	MaxFlights         int     `toml:"max_flights"`             // Cap on records per result
	RequestsPerMinute  float64 `toml:"requests_per_minute"`     // Client-side rate limit, 0 disables
}

// SimulationConfig controls the synthetic dataset used when the feed fails
type SimulationConfig struct {
	Count            int      `toml:"count"`             // Records per synthetic set
	SpreadDegrees    float64  `toml:"spread_degrees"`    // Max lat/lon offset from the reference
	MinSpeed         float64  `toml:"min_speed"`         // m/s
	MaxSpeed         float64  `toml:"max_speed"`         // m/s
	RetainThreshold  int      `toml:"retain_threshold"`  // Keep previous set when it has at least this many records
	CallsignPrefixes []string `toml:"callsign_prefixes"` // Prefixes for synthetic callsigns
	Origins          []string `toml:"origins"`           // Pool for the "from" field
	Destinations     []string `toml:"destinations"`      // Pool for the "to" field
	AirlineName      string   `toml:"airline_name"`      // Airline label on synthetic records
	Seed             int64    `toml:"seed"`              // Random seed, 0 seeds from the clock
}

// StationConfig holds the fallback reference point
type StationConfig struct {
	Latitude               float64 `toml:"latitude"`
	Longitude              float64 `toml:"longitude"`
	LocationRefreshMinutes int     `toml:"location_refresh_minutes"` // How often browsers should re-post geolocation
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path"` // Session database file
}

// AuthConfig contains the login gate settings
type AuthConfig struct {
	Username        string `toml:"username"`
	PasswordHash    string `toml:"password_hash"` // bcrypt hash, overridden by NITPLANE_PASSWORD_HASH
	SessionTTLHours int    `toml:"session_ttl_hours"`
	CookieName      string `toml:"cookie_name"`
}

// AirlineConfig maps an ICAO airline prefix to display data
type AirlineConfig struct {
	Code   string `toml:"code"`
	Name   string `toml:"name"`
	Domain string `toml:"domain"`
}

// AirlineLogosConfig configures logo URL generation
type AirlineLogosConfig struct {
	URLTemplate string `toml:"url_template"` // fmt template with a single %s for the domain
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyEnvOverrides()

	return &config, nil
}

// applyEnvOverrides lets secrets live outside the config file
func (c *Config) applyEnvOverrides() {
	if hash := os.Getenv(PasswordHashEnv); hash != "" {
		c.Auth.PasswordHash = hash
	}
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,
		"configs/config.toml",
		"config.toml",
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate fills defaults and validates the configuration
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.ValidateFeed(); err != nil {
		return err
	}
	if err := c.ValidateSimulation(); err != nil {
		return err
	}
	if err := c.ValidateStation(); err != nil {
		return err
	}
	if err := c.ValidateAuth(); err != nil {
		return err
	}
	if err := c.ValidateAirlines(); err != nil {
		return err
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/nitplane.db"
	}

	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeoutSecs == 0 {
		c.Server.ReadTimeoutSecs = 15
	}
	if c.Server.IdleTimeoutSecs == 0 {
		c.Server.IdleTimeoutSecs = 60
	}
	// No default origins: same-origin only unless configured
	for i, o := range c.Server.CORSAllowedOrigins {
		c.Server.CORSAllowedOrigins[i] = strings.TrimRight(strings.TrimSpace(o), "/")
	}

	// The UI directory is optional; when configured it has to exist
	if c.Server.StaticFilesDir != "" {
		if _, err := os.Stat(c.Server.StaticFilesDir); os.IsNotExist(err) {
			return fmt.Errorf("static files directory does not exist: %s", c.Server.StaticFilesDir)
		}
	}
	return nil
}

// ValidateFeed validates the upstream feed section
func (c *Config) ValidateFeed() error {
	if c.Feed.SourceURL == "" {
		c.Feed.SourceURL = "https://opensky-network.org/api/states/all"
	}
	if !strings.HasPrefix(c.Feed.SourceURL, "http://") && !strings.HasPrefix(c.Feed.SourceURL, "https://") {
		return fmt.Errorf("feed.source_url must be an http(s) URL: %s", c.Feed.SourceURL)
	}
	if c.Feed.RequestTimeoutSecs == 0 {
		c.Feed.RequestTimeoutSecs = 10
	}
	if c.Feed.FetchIntervalSecs == 0 {
		c.Feed.FetchIntervalSecs = 30
	}
	if c.Feed.ProximityFilter == nil {
		enabled := true
		c.Feed.ProximityFilter = &enabled
	}
	if c.Feed.RadiusKm == 0 {
		c.Feed.RadiusKm = 1000
	}
	if c.Feed.MaxFlights == 0 {
		c.Feed.MaxFlights = 100
	}

	if c.Feed.RequestTimeoutSecs < 0 || c.Feed.FetchIntervalSecs < 0 {
		return fmt.Errorf("feed timeouts and intervals must be positive")
	}
	if c.Feed.RadiusKm < 0 {
		return fmt.Errorf("feed.radius_km must be positive: %f", c.Feed.RadiusKm)
	}
	if c.Feed.MaxFlights < 0 {
		return fmt.Errorf("feed.max_flights must be positive: %d", c.Feed.MaxFlights)
	}
	if c.Feed.RequestsPerMinute < 0 {
		return fmt.Errorf("feed.requests_per_minute cannot be negative")
	}
	return nil
}

// ProximityEnabled reports whether distance filtering is on
func (f FeedConfig) ProximityEnabled() bool {
	return f.ProximityFilter == nil || *f.ProximityFilter
}

// ValidateSimulation validates the fallback dataset settings
func (c *Config) ValidateSimulation() error {
	s := &c.Simulation
	if s.Count == 0 {
		s.Count = 15
	}
	if s.SpreadDegrees == 0 {
		s.SpreadDegrees = 0.5
	}
	if s.MinSpeed == 0 && s.MaxSpeed == 0 {
		s.MinSpeed, s.MaxSpeed = 200, 300
	}
	if s.RetainThreshold == 0 {
		s.RetainThreshold = 5
	}
	if len(s.CallsignPrefixes) == 0 {
		s.CallsignPrefixes = []string{"IGO", "AIC", "SEJ", "VTI", "BAW", "UAE"}
	}
	if len(s.Origins) == 0 {
		s.Origins = []string{"CHENNAI", "KOLKATA", "PARIS", "TOKYO", "SINGAPORE"}
	}
	if len(s.Destinations) == 0 {
		s.Destinations = []string{"DELHI", "MUMBAI", "LONDON", "DUBAI", "NEW YORK"}
	}
	if s.AirlineName == "" {
		s.AirlineName = "Simulated Air"
	}

	if s.Count < 0 {
		return fmt.Errorf("simulation.count must be positive: %d", s.Count)
	}
	if s.SpreadDegrees < 0 {
		return fmt.Errorf("simulation.spread_degrees must be positive: %f", s.SpreadDegrees)
	}
	if s.MinSpeed < 0 || s.MaxSpeed < s.MinSpeed {
		return fmt.Errorf("invalid simulation speed range: %f-%f", s.MinSpeed, s.MaxSpeed)
	}
	return nil
}

// ValidateStation checks the default reference point
func (c *Config) ValidateStation() error {
	if c.Station.Latitude == 0 && c.Station.Longitude == 0 {
		// New Delhi
		c.Station.Latitude = 28.6139
		c.Station.Longitude = 77.2090
	}
	if c.Station.LocationRefreshMinutes == 0 {
		c.Station.LocationRefreshMinutes = 5
	}
	if c.Station.Latitude < -90 || c.Station.Latitude > 90 {
		return fmt.Errorf("invalid station latitude: %f", c.Station.Latitude)
	}
	if c.Station.Longitude < -180 || c.Station.Longitude > 180 {
		return fmt.Errorf("invalid station longitude: %f", c.Station.Longitude)
	}
	return nil
}

// ValidateAuth checks the login gate settings
func (c *Config) ValidateAuth() error {
	if c.Auth.Username == "" {
		return fmt.Errorf("auth.username is required")
	}
	if c.Auth.PasswordHash == "" {
		return fmt.Errorf("auth.password_hash is required (or set %s)", PasswordHashEnv)
	}
	if !strings.HasPrefix(c.Auth.PasswordHash, "$2") {
		return fmt.Errorf("auth.password_hash must be a bcrypt hash")
	}
	if c.Auth.SessionTTLHours == 0 {
		c.Auth.SessionTTLHours = 24
	}
	if c.Auth.SessionTTLHours < 0 {
		return fmt.Errorf("auth.session_ttl_hours must be positive: %d", c.Auth.SessionTTLHours)
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "nitplane_session"
	}
	return nil
}

// ValidateAirlines checks the airline directory entries
func (c *Config) ValidateAirlines() error {
	seen := make(map[string]bool)
	for i, a := range c.Airlines {
		code := strings.ToUpper(strings.TrimSpace(a.Code))
		if len(code) != 3 {
			return fmt.Errorf("airlines[%d]: code must be three characters: %q", i, a.Code)
		}
		if seen[code] {
			return fmt.Errorf("airlines[%d]: duplicate code %s", i, code)
		}
		seen[code] = true
		c.Airlines[i].Code = code
	}

	if c.AirlineLogos.URLTemplate == "" {
		c.AirlineLogos.URLTemplate = "https://logo.clearbit.com/%s"
	}
	if strings.Count(c.AirlineLogos.URLTemplate, "%s") != 1 {
		return fmt.Errorf("airline_logos.url_template must contain exactly one %%s")
	}
	return nil
}
