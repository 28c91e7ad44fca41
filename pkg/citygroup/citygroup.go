// Package citygroup exposes the city → airports reference data.
//
// The mapping is loaded once at startup and is immutable afterwards, so
// lookups are safe from any goroutine without locking.
package citygroup

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lookup is a read-only city/airport index.
type Lookup struct {
	byCity    map[string][]string
	byAirport map[string]string
}

// Load reads a YAML file of the form `TYO: [NRT, HND]` and builds the
// lookup.
func Load(path string) (*Lookup, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("citygroup: read %s: %w", path, err)
	}

	var m map[string][]string
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("citygroup: parse %s: %w", path, err)
	}
	return New(m), nil
}

// New builds a lookup from an in-memory mapping. Codes are upper-cased;
// airport lists are sorted for deterministic expansion order.
func New(m map[string][]string) *Lookup {
	l := &Lookup{
		byCity:    make(map[string][]string, len(m)),
		byAirport: make(map[string]string),
	}
	for city, airports := range m {
		city = strings.ToUpper(city)
		list := make([]string, 0, len(airports))
		for _, a := range airports {
			a = strings.ToUpper(strings.TrimSpace(a))
			if a == "" {
				continue
			}
			list = append(list, a)
			l.byAirport[a] = city
		}
		sort.Strings(list)
		l.byCity[city] = list
	}
	return l
}

// IsCity reports whether code names a city group.
func (l *Lookup) IsCity(code string) bool {
	_, ok := l.byCity[strings.ToUpper(code)]
	return ok
}

// Expand returns the airports of a city code, or the code itself when it
// is already an airport.
func (l *Lookup) Expand(code string) []string {
	code = strings.ToUpper(code)
	if airports, ok := l.byCity[code]; ok {
		return airports
	}
	return []string{code}
}

// CityOf returns the city a given airport belongs to, if any.
func (l *Lookup) CityOf(airport string) (string, bool) {
	city, ok := l.byAirport[strings.ToUpper(airport)]
	return city, ok
}

// SameCity reports whether two distinct airports belong to the same city
// group, and returns that city.
func (l *Lookup) SameCity(a, b string) (string, bool) {
	ca, okA := l.CityOf(a)
	cb, okB := l.CityOf(b)
	if okA && okB && ca == cb {
		return ca, true
	}
	return "", false
}
