package feed

import (
	"encoding/json"
	"time"

	"github.com/nitplane/nitplane/internal/geo"
)

// Mode tells whether a result came from the upstream feed or was synthesised
type Mode string

const (
	ModeLive      Mode = "live"
	ModeSimulated Mode = "simulated"
)

// Display defaults for live records
const (
	DefaultCallsign    = "N/A"
	DefaultSpeed       = 200.0 // m/s
	DefaultHeading     = 0.0
	UnknownDestination = "Unknown"
	UnknownAirline     = "Unknown"
)

// Positional indices of the upstream state vector
const (
	stateIcao24        = 0
	stateCallsign      = 1
	stateOriginCountry = 2
	stateLongitude     = 5
	stateLatitude      = 6
	stateVelocity      = 9
	stateTrueTrack     = 10
)

// FlightRecord is the normalised view of one aircraft
type FlightRecord struct {
	ID            string   `json:"id"`
	Callsign      string   `json:"callsign"`
	Latitude      float64  `json:"lat"`
	Longitude     float64  `json:"lng"`
	Speed         float64  `json:"speed"`   // m/s
	Heading       float64  `json:"heading"` // degrees, [0,360)
	OriginCountry string   `json:"origin_country,omitempty"`
	From          string   `json:"from"`
	To            string   `json:"to"`
	Airline       string   `json:"airline"`
	LogoURL       string   `json:"logo_url,omitempty"`
	DistanceKm    *float64 `json:"distance_km,omitempty"` // set only when proximity filtering is on
}

// Position returns the record's coordinate
func (f FlightRecord) Position() geo.Coordinate {
	return geo.Coordinate{Latitude: f.Latitude, Longitude: f.Longitude}
}

// FetchResult is the outcome of one fetch cycle. Flights is never nil.
type FetchResult struct {
	Mode      Mode           `json:"mode"`
	Flights   []FlightRecord `json:"flights"`
	Count     int            `json:"count"`
	Reference geo.Coordinate `json:"reference"`
	FetchedAt time.Time      `json:"fetched_at"`
	Reason    string         `json:"reason,omitempty"` // why the live path was not used
}

// IsSimulated reports whether the result is synthetic
func (r *FetchResult) IsSimulated() bool {
	return r.Mode == ModeSimulated
}

// StatesResponse is the upstream aircraft-state document. Elements of States
// that are not arrays are kept raw and skipped during normalisation.
type StatesResponse struct {
	Time   int64             `json:"time"`
	States []json.RawMessage `json:"states"`
}

// StateVector is one positional state record
type StateVector []StateField

// Field returns the element at i, or an absent field when the vector is short
func (s StateVector) Field(i int) StateField {
	if i < 0 || i >= len(s) {
		return StateField{}
	}
	return s[i]
}
