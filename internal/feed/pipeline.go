package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nitplane/nitplane/internal/geo"
	"github.com/nitplane/nitplane/pkg/logger"
)

// AirlineLookup resolves display data from a callsign
type AirlineLookup interface {
	Name(callsign string) string
	LogoURL(callsign string) string
}

// PipelineConfig holds the proximity and fallback policy
type PipelineConfig struct {
	ProximityFilter bool
	RadiusKm        float64
	MaxFlights      int
	RetainThreshold int // keep the previous set on failure when it has at least this many records
}

// Pipeline turns one upstream fetch into a FetchResult
type Pipeline struct {
	source    StateSource
	simulator *Simulator
	airlines  AirlineLookup
	cfg       PipelineConfig
	now       func() time.Time
	logger    *logger.Logger
}

// NewPipeline creates a pipeline. airlines may be nil; a nil simulator is
// replaced by one using DefaultSimulatorConfig.
func NewPipeline(source StateSource, simulator *Simulator, airlines AirlineLookup, cfg PipelineConfig, log *logger.Logger) *Pipeline {
	if simulator == nil {
		simulator = NewSimulator(DefaultSimulatorConfig(), nil)
	}
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = 1000
	}
	if cfg.MaxFlights <= 0 {
		cfg.MaxFlights = 100
	}
	if cfg.RetainThreshold <= 0 {
		cfg.RetainThreshold = 5
	}

	return &Pipeline{
		source:    source,
		simulator: simulator,
		airlines:  airlines,
		cfg:       cfg,
		now:       time.Now,
		logger:    log.Named("pipeline"),
	}
}

// FetchFlights performs one fetch cycle around ref. previous is the set the
// caller currently displays. It never fails: any upstream problem yields a
// simulated result instead.
func (p *Pipeline) FetchFlights(ctx context.Context, ref geo.Coordinate, previous []FlightRecord) (result *FetchResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Recovered from panic in fetch cycle", logger.Any("panic", r))
			result = p.fallback(ref, previous, fmt.Errorf("internal error: %v", r))
		}
	}()

	states, err := p.source.FetchStates(ctx)
	if err != nil {
		return p.fallback(ref, previous, err)
	}

	flights := p.normalize(states, ref)

	p.logger.Debug("Live flights normalised",
		logger.Int("states", len(states.States)),
		logger.Int("flights", len(flights)))

	return &FetchResult{
		Mode:      ModeLive,
		Flights:   flights,
		Count:     len(flights),
		Reference: ref,
		FetchedAt: p.now(),
	}
}

// normalize maps, filters, orders, de-duplicates and caps the state vectors
func (p *Pipeline) normalize(states *StatesResponse, ref geo.Coordinate) []FlightRecord {
	flights := make([]FlightRecord, 0, len(states.States))
	skipped := 0

	for _, raw := range states.States {
		var vec StateVector
		if err := json.Unmarshal(raw, &vec); err != nil {
			skipped++
			continue
		}

		rec, ok := toFlightRecord(vec)
		if !ok {
			skipped++
			continue
		}

		if p.cfg.ProximityFilter {
			d := geo.DistanceKm(ref, rec.Position())
			if d > p.cfg.RadiusKm {
				continue
			}
			rec.DistanceKm = &d
		}

		flights = append(flights, rec)
	}

	if skipped > 0 {
		p.logger.Debug("Skipped unusable state vectors", logger.Int("count", skipped))
	}

	if p.cfg.ProximityFilter {
		sort.SliceStable(flights, func(i, j int) bool {
			return *flights[i].DistanceKm < *flights[j].DistanceKm
		})
	}

	// first occurrence wins, which is the nearest one after sorting
	seen := make(map[string]bool, len(flights))
	out := flights[:0]
	for _, f := range flights {
		if seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		p.decorate(&f, UnknownAirline)
		out = append(out, f)
		if len(out) == p.cfg.MaxFlights {
			break
		}
	}

	return out
}

// toFlightRecord maps one state vector. Records without an id or a valid
// position are rejected.
func toFlightRecord(vec StateVector) (FlightRecord, bool) {
	id, _ := vec.Field(stateIcao24).String()
	id = strings.TrimSpace(id)
	if id == "" {
		return FlightRecord{}, false
	}

	lng, okLng := vec.Field(stateLongitude).Float64()
	lat, okLat := vec.Field(stateLatitude).Float64()
	pos := geo.Coordinate{Latitude: lat, Longitude: lng}
	if !okLat || !okLng || !pos.Valid() {
		return FlightRecord{}, false
	}

	callsign, _ := vec.Field(stateCallsign).String()
	callsign = strings.TrimSpace(callsign)
	if callsign == "" {
		callsign = DefaultCallsign
	}

	country, _ := vec.Field(stateOriginCountry).String()

	speed, ok := vec.Field(stateVelocity).Float64()
	if !ok {
		speed = DefaultSpeed
	}

	heading, ok := vec.Field(stateTrueTrack).Float64()
	if !ok {
		heading = DefaultHeading
	}

	return FlightRecord{
		ID:            id,
		Callsign:      callsign,
		Latitude:      lat,
		Longitude:     lng,
		Speed:         speed,
		Heading:       geo.NormalizeHeading(heading),
		OriginCountry: country,
		From:          strings.ToUpper(country),
		To:            UnknownDestination,
	}, true
}

// fallback builds the simulated result after a failed live fetch
func (p *Pipeline) fallback(ref geo.Coordinate, previous []FlightRecord, cause error) *FetchResult {
	p.logger.Warn("Switching to simulation mode",
		logger.String("kind", failureKind(cause)),
		logger.Error(cause))

	var flights []FlightRecord
	if len(previous) >= p.cfg.RetainThreshold {
		flights = make([]FlightRecord, len(previous))
		copy(flights, previous)
	} else {
		flights = p.simulator.Generate(ref)
		for i := range flights {
			if p.cfg.ProximityFilter {
				d := geo.DistanceKm(ref, flights[i].Position())
				flights[i].DistanceKm = &d
			}
			p.decorate(&flights[i], flights[i].Airline)
		}
	}

	return &FetchResult{
		Mode:      ModeSimulated,
		Flights:   flights,
		Count:     len(flights),
		Reference: ref,
		FetchedAt: p.now(),
		Reason:    cause.Error(),
	}
}

// decorate fills airline name and logo from the directory
func (p *Pipeline) decorate(f *FlightRecord, fallbackName string) {
	f.Airline = fallbackName
	if p.airlines == nil {
		return
	}
	if f.Airline == UnknownAirline {
		if name := p.airlines.Name(f.Callsign); name != "" {
			f.Airline = name
		}
	}
	f.LogoURL = p.airlines.LogoURL(f.Callsign)
}
