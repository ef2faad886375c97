package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHash = "$2a$04$abcdefghijklmnopqrstuu5mQ0e3wS2vY1wS5D8e6uJcK4x9l2QkS"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[auth]
username = "pilot"
password_hash = "`+testHash+`"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Empty(t, cfg.Server.CORSAllowedOrigins, "same-origin only unless configured")
	assert.Equal(t, "https://opensky-network.org/api/states/all", cfg.Feed.SourceURL)
	assert.Equal(t, 30, cfg.Feed.FetchIntervalSecs)
	assert.True(t, cfg.Feed.ProximityEnabled())
	assert.Equal(t, 1000.0, cfg.Feed.RadiusKm)
	assert.Equal(t, 100, cfg.Feed.MaxFlights)

	assert.Equal(t, 15, cfg.Simulation.Count)
	assert.Equal(t, 0.5, cfg.Simulation.SpreadDegrees)
	assert.Equal(t, 5, cfg.Simulation.RetainThreshold)
	assert.Equal(t, []string{"IGO", "AIC", "SEJ", "VTI", "BAW", "UAE"}, cfg.Simulation.CallsignPrefixes)
	assert.Equal(t, "Simulated Air", cfg.Simulation.AirlineName)

	assert.InDelta(t, 28.6139, cfg.Station.Latitude, 1e-9)
	assert.InDelta(t, 77.2090, cfg.Station.Longitude, 1e-9)
	assert.Equal(t, 24, cfg.Auth.SessionTTLHours)
	assert.Equal(t, "https://logo.clearbit.com/%s", cfg.AirlineLogos.URLTemplate)
}

func TestLoadProximityDisabled(t *testing.T) {
	path := writeConfig(t, `
[feed]
proximity_filter = false
radius_km = 250
max_flights = 20

[auth]
username = "pilot"
password_hash = "`+testHash+`"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.False(t, cfg.Feed.ProximityEnabled())
	assert.Equal(t, 250.0, cfg.Feed.RadiusKm)
	assert.Equal(t, 20, cfg.Feed.MaxFlights)
}

func TestPasswordHashFromEnvironment(t *testing.T) {
	t.Setenv(PasswordHashEnv, testHash)
	path := writeConfig(t, `
[auth]
username = "pilot"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, testHash, cfg.Auth.PasswordHash)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing username", func(c *Config) { c.Auth.Username = "" }},
		{"plaintext password", func(c *Config) { c.Auth.PasswordHash = "hunter2" }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"negative radius", func(c *Config) { c.Feed.RadiusKm = -1 }},
		{"bad source url", func(c *Config) { c.Feed.SourceURL = "ftp://example.com" }},
		{"inverted speeds", func(c *Config) { c.Simulation.MinSpeed, c.Simulation.MaxSpeed = 300, 200 }},
		{"bad latitude", func(c *Config) { c.Station.Latitude = 91 }},
		{"short airline code", func(c *Config) { c.Airlines = []AirlineConfig{{Code: "IG"}} }},
		{"duplicate airline code", func(c *Config) {
			c.Airlines = []AirlineConfig{{Code: "IGO"}, {Code: "igo"}}
		}},
		{"logo template", func(c *Config) { c.AirlineLogos.URLTemplate = "https://logos.example.com/" }},
		{"missing static dir", func(c *Config) { c.Server.StaticFilesDir = "/does/not/exist" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Auth: AuthConfig{Username: "pilot", PasswordHash: testHash}}
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAirlineCodesAreUpperCased(t *testing.T) {
	cfg := &Config{
		Auth:     AuthConfig{Username: "pilot", PasswordHash: testHash},
		Airlines: []AirlineConfig{{Code: " igo ", Name: "IndiGo", Domain: "goindigo.in"}},
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "IGO", cfg.Airlines[0].Code)
}

func TestLoadWithFallbackMissing(t *testing.T) {
	_, err := LoadWithFallback(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
