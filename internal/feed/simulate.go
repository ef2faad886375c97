package feed

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/nitplane/nitplane/internal/geo"
)

// RandomSource is the randomness the simulator draws from. *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
	Intn(n int) int
}

// SimulatorConfig describes the synthetic dataset
type SimulatorConfig struct {
	Count            int
	SpreadDegrees    float64
	MinSpeed         float64
	MaxSpeed         float64
	CallsignPrefixes []string
	Origins          []string
	Destinations     []string
	AirlineName      string
}

// DefaultSimulatorConfig is the fallback dataset: 15 flights within half a
// degree of the reference
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		Count:            15,
		SpreadDegrees:    0.5,
		MinSpeed:         200,
		MaxSpeed:         300,
		CallsignPrefixes: []string{"IGO", "AIC", "SEJ", "VTI", "BAW", "UAE"},
		Origins:          []string{"CHENNAI", "KOLKATA", "PARIS", "TOKYO", "SINGAPORE"},
		Destinations:     []string{"DELHI", "MUMBAI", "LONDON", "DUBAI", "NEW YORK"},
		AirlineName:      "Simulated Air",
	}
}

// Simulator produces plausible flights around a reference point
type Simulator struct {
	cfg SimulatorConfig
	rng RandomSource
	now func() time.Time
	mu  sync.Mutex // guards rng
}

// NewSimulator creates a simulator. A nil rng is replaced by a clock-seeded one.
func NewSimulator(cfg SimulatorConfig, rng RandomSource) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{
		cfg: cfg,
		rng: rng,
		now: time.Now,
	}
}

// SetClock replaces the clock used for synthetic ids
func (s *Simulator) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Generate returns cfg.Count fresh records within ±SpreadDegrees of ref
func (s *Simulator) Generate(ref geo.Coordinate) []FlightRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := s.now().UnixMilli()
	spread := s.cfg.SpreadDegrees

	flights := make([]FlightRecord, 0, s.cfg.Count)
	for i := 0; i < s.cfg.Count; i++ {
		lat := ref.Latitude + (s.rng.Float64()-0.5)*2*spread
		lng := ref.Longitude + (s.rng.Float64()-0.5)*2*spread

		flights = append(flights, FlightRecord{
			ID:        fmt.Sprintf("SIM%d-%d", stamp, i),
			Callsign:  fmt.Sprintf("%s%03d", s.pick(s.cfg.CallsignPrefixes), 100+s.rng.Intn(900)),
			Latitude:  clampLatitude(lat),
			Longitude: wrapLongitude(lng),
			Speed:     s.cfg.MinSpeed + s.rng.Float64()*(s.cfg.MaxSpeed-s.cfg.MinSpeed),
			Heading:   geo.NormalizeHeading(s.rng.Float64() * 360),
			To:        s.pick(s.cfg.Destinations),
			From:      s.pick(s.cfg.Origins),
			Airline:   s.cfg.AirlineName,
		})
	}

	return flights
}

func (s *Simulator) pick(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[s.rng.Intn(len(pool))]
}

func clampLatitude(lat float64) float64 {
	return math.Max(-90, math.Min(90, lat))
}

func wrapLongitude(lng float64) float64 {
	switch {
	case lng > 180:
		return lng - 360
	case lng < -180:
		return lng + 360
	}
	return lng
}
