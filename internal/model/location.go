package model

import (
	"fmt"
	"math"
)

// Location is a GPS position. Observations hold a *Location, so latitude and
// longitude are either both present or both absent.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func NewLocation(latitude, longitude float64) (*Location, error) {
	if math.IsNaN(latitude) || math.IsInf(latitude, 0) || latitude < -90 || latitude > 90 {
		return nil, invalid("latitude", "%v out of range [-90, 90]", latitude)
	}
	if math.IsNaN(longitude) || math.IsInf(longitude, 0) || longitude < -180 || longitude > 180 {
		return nil, invalid("longitude", "%v out of range [-180, 180]", longitude)
	}
	return &Location{Latitude: latitude, Longitude: longitude}, nil
}

func (l Location) String() string {
	return fmt.Sprintf("%.6f,%.6f", l.Latitude, l.Longitude)
}
