package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nitplane/nitplane/internal/geo"
	"github.com/nitplane/nitplane/pkg/logger"
)

// Fetcher runs one fetch cycle. *Pipeline implements it.
type Fetcher interface {
	FetchFlights(ctx context.Context, ref geo.Coordinate, previous []FlightRecord) *FetchResult
}

// Service polls the fetcher on a fixed interval and publishes every result.
// Only the fetch loop calls the fetcher, so cycles never overlap.
type Service struct {
	fetcher       Fetcher
	fetchInterval time.Duration
	logger        *logger.Logger

	mu            sync.RWMutex
	latest        *FetchResult
	lastFetchTime time.Time

	station       geo.Coordinate
	override      *geo.Coordinate
	overrideMutex sync.RWMutex

	updates   chan *FetchResult
	refreshCh chan struct{}
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewService creates a new feed service. station is the reference used until
// a client supplies its own position.
func NewService(fetcher Fetcher, fetchInterval time.Duration, station geo.Coordinate, log *logger.Logger) *Service {
	if fetchInterval <= 0 {
		fetchInterval = 30 * time.Second
	}
	return &Service{
		fetcher:       fetcher,
		fetchInterval: fetchInterval,
		logger:        log.Named("feed"),
		station:       station,
		updates:       make(chan *FetchResult, 1),
		refreshCh:     make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
	}
}

// Start runs one cycle synchronously and then polls in the background
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting feed service",
		logger.Duration("fetch_interval", s.fetchInterval),
		logger.Float64("station_latitude", s.station.Latitude),
		logger.Float64("station_longitude", s.station.Longitude),
	)

	s.runCycle(ctx)

	s.wg.Add(1)
	go s.fetchLoop(ctx)

	return nil
}

// Stop stops the polling loop and waits for it to exit
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping feed service")
		close(s.stopCh)
	})
	s.wg.Wait()
}

// Updates returns the receive side of the update channel. It holds at most
// one result: a newer result replaces one the consumer has not read yet.
func (s *Service) Updates() <-chan *FetchResult {
	return s.updates
}

// Refresh asks the loop to run a cycle now. Requests made while one is
// pending are coalesced.
func (s *Service) Refresh() {
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

func (s *Service) fetchLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.fetchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runCycle(ctx)
		case <-s.refreshCh:
			s.runCycle(ctx)
			ticker.Reset(s.fetchInterval)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runCycle fetches, stores and publishes one result
func (s *Service) runCycle(ctx context.Context) {
	ref := s.Reference()

	var previous []FlightRecord
	if last := s.Latest(); last != nil {
		previous = last.Flights
	}

	result := s.fetcher.FetchFlights(ctx, ref, previous)
	if result == nil {
		s.logger.Error("Fetcher returned no result")
		return
	}

	s.mu.Lock()
	s.latest = result
	s.lastFetchTime = result.FetchedAt
	s.mu.Unlock()

	s.publish(result)

	if result.IsSimulated() {
		s.logger.Warn("Fetch cycle served simulated flights",
			logger.Int("flights", result.Count),
			logger.String("reason", result.Reason))
		return
	}
	s.logger.Info("Fetch cycle complete",
		logger.String("mode", string(result.Mode)),
		logger.Int("flights", result.Count))
}

// publish replaces any unread result with the new one
func (s *Service) publish(result *FetchResult) {
	for {
		select {
		case s.updates <- result:
			return
		default:
		}
		select {
		case stale := <-s.updates:
			s.logger.Debug("Discarding unread result", logger.Time("fetched_at", stale.FetchedAt))
		default:
		}
	}
}

// Latest returns the most recent result, or nil before the first cycle
func (s *Service) Latest() *FetchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// GetStatus returns the last fetch time and whether the last result was live
func (s *Service) GetStatus() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFetchTime, s.latest != nil && s.latest.Mode == ModeLive
}

// SetReference overrides the reference point and triggers a refresh
func (s *Service) SetReference(lat, lon float64) error {
	ref := geo.Coordinate{Latitude: lat, Longitude: lon}
	if !ref.Valid() {
		return fmt.Errorf("invalid reference coordinates: %f, %f", lat, lon)
	}

	s.overrideMutex.Lock()
	s.override = &ref
	s.overrideMutex.Unlock()

	s.logger.Info("Reference override set",
		logger.Float64("latitude", lat),
		logger.Float64("longitude", lon))

	s.Refresh()
	return nil
}

// ClearReference reverts to the configured station coordinates
func (s *Service) ClearReference() {
	s.overrideMutex.Lock()
	s.override = nil
	s.overrideMutex.Unlock()

	s.logger.Info("Reference override cleared, using station",
		logger.Float64("station_latitude", s.station.Latitude),
		logger.Float64("station_longitude", s.station.Longitude))

	s.Refresh()
}

// Reference returns the effective reference point (override or station)
func (s *Service) Reference() geo.Coordinate {
	s.overrideMutex.RLock()
	defer s.overrideMutex.RUnlock()

	if s.override != nil {
		return *s.override
	}
	return s.station
}

// ReferenceOverridden reports whether a client-supplied reference is active
func (s *Service) ReferenceOverridden() bool {
	s.overrideMutex.RLock()
	defer s.overrideMutex.RUnlock()
	return s.override != nil
}

// Station returns the configured fallback reference
func (s *Service) Station() geo.Coordinate {
	return s.station
}
