// Package model contains domain models for the award itinerary engine.
// Flights and groups mirror the payloads returned by the availability
// provider; itineraries are what the composer produces from them.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ─── Cabins ─────────────────────────────────────────────────

// CabinClass is one of the four award cabins.
type CabinClass string

const (
	CabinY CabinClass = "Y" // economy
	CabinW CabinClass = "W" // premium economy
	CabinJ CabinClass = "J" // business
	CabinF CabinClass = "F" // first
)

// Cabins lists every cabin class in display order.
var Cabins = []CabinClass{CabinY, CabinW, CabinJ, CabinF}

// ─── Flight ─────────────────────────────────────────────────

// Flight is the atomic award offer for a single segment.
//
// Identity is the UUID: a deterministic digest of
// (flight number, departs-at, arrives-at). Mutable attributes such as
// seat counts and fares never contribute to identity, so the same
// physical flight hashes to the same UUID across requests.
type Flight struct {
	UUID            string    `json:"uuid"`
	FlightNumber    string    `json:"flightNumber"`
	DepartsAt       time.Time `json:"departsAt"`
	ArrivesAt       time.Time `json:"arrivesAt"`
	DurationMinutes int       `json:"durationMinutes"`
	Origin          string    `json:"origin"`
	Destination     string    `json:"destination"`

	YCount int `json:"yCount"`
	WCount int `json:"wCount"`
	JCount int `json:"jCount"`
	FCount int `json:"fCount"`

	YPartner bool `json:"yPartner"`
	WPartner bool `json:"wPartner"`
	JPartner bool `json:"jPartner"`
	FPartner bool `json:"fPartner"`

	YFare string `json:"yFare,omitempty"`
	WFare string `json:"wFare,omitempty"`
	JFare string `json:"jFare,omitempty"`
	FFare string `json:"fFare,omitempty"`

	Aircraft string `json:"aircraft,omitempty"`
	Source   string `json:"source"`
}

// SeatCount returns the seat count for the given cabin.
func (f *Flight) SeatCount(c CabinClass) int {
	switch c {
	case CabinY:
		return f.YCount
	case CabinW:
		return f.WCount
	case CabinJ:
		return f.JCount
	case CabinF:
		return f.FCount
	}
	return 0
}

// Carrier returns the two-character airline prefix of the flight number.
func (f *Flight) Carrier() string {
	if len(f.FlightNumber) < 2 {
		return strings.ToUpper(f.FlightNumber)
	}
	return strings.ToUpper(f.FlightNumber[:2])
}

// DepartMs and ArriveMs are the epoch-millisecond timestamps used by the
// connection indexer. They are cheap enough to call anywhere, but the hot
// loops read them once from the precomputed timing table instead.
func (f *Flight) DepartMs() int64 { return f.DepartsAt.UnixMilli() }
func (f *Flight) ArriveMs() int64 { return f.ArrivesAt.UnixMilli() }

// ─── Group ──────────────────────────────────────────────────

// Group is a bucket of flights sharing (origin, destination, date,
// alliance, source). The timing envelope fields bound the flights inside
// and drive group-level connection pruning; zero values mean unknown.
type Group struct {
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Date        string    `json:"date"`
	Alliance    string    `json:"alliance"`
	Source      string    `json:"source"`
	Flights     []*Flight `json:"flights"`

	EarliestDeparture time.Time `json:"earliestDeparture,omitempty"`
	LatestDeparture   time.Time `json:"latestDeparture,omitempty"`
	EarliestArrival   time.Time `json:"earliestArrival,omitempty"`
	LatestArrival     time.Time `json:"latestArrival,omitempty"`
}

// Key returns the group's identity within a single request.
func (g *Group) Key() string {
	return g.Origin + ":" + g.Destination + ":" + g.Date + ":" + g.Alliance + ":" + g.Source
}

// HasEnvelope reports whether all four timing envelope fields are set.
func (g *Group) HasEnvelope() bool {
	return !g.EarliestDeparture.IsZero() && !g.LatestDeparture.IsZero() &&
		!g.EarliestArrival.IsZero() && !g.LatestArrival.IsZero()
}

// ─── Segments and routes ────────────────────────────────────

// SegmentKey is a directed airport pair identifying a segment pool entry.
type SegmentKey struct {
	From string
	To   string
}

// RouteStructure is one candidate path from the route-topology service:
// an ordered waypoint chain where each waypoint is an airport code or a
// city code, plus up to three alliance whitelists. A nil whitelist means
// any alliance is acceptable.
type RouteStructure struct {
	Waypoints []string `json:"waypoints"`
	All1      []string `json:"all1,omitempty"` // first segment
	All2      []string `json:"all2,omitempty"` // intermediate segments
	All3      []string `json:"all3,omitempty"` // last segment
}

// Key renders the waypoint chain as a dash-joined route key.
func (r *RouteStructure) Key() string {
	return strings.Join(r.Waypoints, "-")
}

// AllianceWhitelist returns the whitelist applying to segment segIdx out
// of total segments, or nil when any alliance is allowed.
func (r *RouteStructure) AllianceWhitelist(segIdx, total int) []string {
	switch {
	case segIdx == 0:
		return r.All1
	case segIdx == total-1:
		return r.All3
	default:
		return r.All2
	}
}

// ─── Pricing ────────────────────────────────────────────────

// PricingEntry records miles + taxes + fare classes for one cabin on a
// specific flight/source. Absent when the provider omits pricing.
type PricingEntry struct {
	ID           string          `json:"id"`
	FlightNumber string          `json:"flightNumber"`
	Origin       string          `json:"origin"`
	Destination  string          `json:"destination"`
	Source       string          `json:"source"`
	Cabin        CabinClass      `json:"cabin"`
	Mileage      int             `json:"mileage"`
	Taxes        decimal.Decimal `json:"taxes"`
	TaxCurrency  string          `json:"taxCurrency,omitempty"`
	FareClasses  []string        `json:"fareClasses,omitempty"`
}

// ─── Itineraries ────────────────────────────────────────────

// Itinerary is an ordered sequence of flight UUIDs plus its derived
// route key and departure date (the calendar date of the first flight's
// local departure).
type Itinerary struct {
	UUIDs         []string `json:"uuids"`
	RouteKey      string   `json:"routeKey"`
	DepartureDate string   `json:"departureDate"`
}

// ClassPercentages holds the reliability-aware cabin coverage of an
// itinerary. Y is binary (100 or 0); W/J/F are the share of flight time
// covered by flights bookable and reliable in that cabin.
type ClassPercentages struct {
	Y float64 `json:"y"`
	W float64 `json:"w"`
	J float64 `json:"j"`
	F float64 `json:"f"`
}

// OptimizedItinerary is an itinerary annotated with every precomputed
// sort/filter key so that ranking never touches the flight map again.
type OptimizedItinerary struct {
	Itinerary

	TotalDuration int      `json:"totalDuration"` // flight + layover minutes
	DepartureTime int64    `json:"departureTime"` // epoch ms of first departure
	ArrivalTime   int64    `json:"arrivalTime"`   // epoch ms of last arrival
	StopCount     int      `json:"stopCount"`
	AirlineCodes  []string `json:"airlineCodes"`
	Origin        string   `json:"origin"`
	Destination   string   `json:"destination"`
	Connections   []string `json:"connections"`

	ClassPct   ClassPercentages `json:"classPercentages"`
	PricingIDs []string         `json:"pricingIds,omitempty"`
}

// ─── Reliability ────────────────────────────────────────────

// ReliabilityRule is the per-carrier rule from the reliability table.
// ExemptedCabins is a subset of "YWJF"; listed cabins never require the
// carrier minimum.
type ReliabilityRule struct {
	Carrier        string   `json:"carrier"`
	MinCount       int      `json:"minCount"`
	ExemptedCabins string   `json:"exemptedCabins"`
	FFPrograms     []string `json:"ffPrograms,omitempty"`
}

// Exempts reports whether cabin c is exempt from the carrier minimum.
func (r ReliabilityRule) Exempts(c CabinClass) bool {
	return strings.Contains(r.ExemptedCabins, string(c))
}

// ReliabilityTable maps carrier prefix to its rule.
type ReliabilityTable map[string]ReliabilityRule

// Rule returns the rule for a carrier, falling back to min_count=1 with
// no exemptions when the carrier has no entry.
func (t ReliabilityTable) Rule(carrier string) ReliabilityRule {
	if r, ok := t[carrier]; ok {
		return r
	}
	return ReliabilityRule{Carrier: carrier, MinCount: 1}
}

// ─── Credentials ────────────────────────────────────────────

// ProKey is one row of the pro_key credential table.
type ProKey struct {
	Key         string    `json:"proKey"`
	Remaining   int       `json:"remaining"`
	LastUpdated time.Time `json:"lastUpdated"`
}
