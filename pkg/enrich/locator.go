// Package enrich attaches geolocation to normalized records.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// ErrNotFound is returned when a locator has no entry for an address
var ErrNotFound = errors.New("location not found")

// Location is a resolved place name and its coordinates
type Location struct {
	Name string
	Lat  float64
	Lng  float64
}

// Locator resolves a source IP to a location
type Locator interface {
	Locate(ctx context.Context, ip string) (Location, error)
}

// GeoIPLocator resolves addresses against a MaxMind City database
type GeoIPLocator struct {
	db *geoip2.Reader
}

// OpenGeoIP opens the MaxMind database at path
func OpenGeoIP(path string) (*GeoIPLocator, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}
	return &GeoIPLocator{db: db}, nil
}

// Locate looks ip up. The lookup is in-memory, so ctx is only checked up front.
func (g *GeoIPLocator) Locate(ctx context.Context, ip string) (Location, error) {
	if err := ctx.Err(); err != nil {
		return Location{}, err
	}

	addr := net.ParseIP(ip)
	if addr == nil {
		return Location{}, fmt.Errorf("invalid IP address %q", ip)
	}

	city, err := g.db.City(addr)
	if err != nil {
		return Location{}, fmt.Errorf("geoip lookup %s: %w", ip, err)
	}

	name := placeName(city.City.Names["en"], city.Country.Names["en"])
	if name == "" {
		return Location{}, fmt.Errorf("%s: %w", ip, ErrNotFound)
	}

	return Location{
		Name: name,
		Lat:  city.Location.Latitude,
		Lng:  city.Location.Longitude,
	}, nil
}

// Close releases the database
func (g *GeoIPLocator) Close() error {
	return g.db.Close()
}

func placeName(city, country string) string {
	city = strings.TrimSpace(city)
	country = strings.TrimSpace(country)
	switch {
	case city != "" && country != "":
		return city + ", " + country
	case country != "":
		return country
	default:
		return city
	}
}
