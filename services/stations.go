package services

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Station is a police station row with its distance from the query point.
type Station struct {
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	Phone      string  `json:"phone,omitempty"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	DistanceKm float64 `json:"distance_km"`
}

// StationService answers nearest-police-station queries from the seeded
// station table.
type StationService struct {
	db Database
}

// NewStationService creates a new station service
func NewStationService(db Database) *StationService {
	return &StationService{db: db}
}

// Nearest returns up to limit stations ordered by distance from the given
// coordinates.
func (s *StationService) Nearest(ctx context.Context, lat, lng float64, limit int) ([]Station, error) {
	rows, err := s.db.Query(ctx, `
		SELECT name, address, COALESCE(phone, ''), latitude, longitude
		FROM police_stations
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load police stations: %w", err)
	}
	defer rows.Close()

	var stations []Station
	for rows.Next() {
		var st Station
		if err := rows.Scan(&st.Name, &st.Address, &st.Phone, &st.Latitude, &st.Longitude); err != nil {
			return nil, fmt.Errorf("failed to scan police station: %w", err)
		}
		st.DistanceKm = roundTo(HaversineKm(lat, lng, st.Latitude, st.Longitude), 2)
		stations = append(stations, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate police stations: %w", err)
	}

	sort.Slice(stations, func(i, j int) bool {
		return stations[i].DistanceKm < stations[j].DistanceKm
	})

	if limit > 0 && len(stations) > limit {
		stations = stations[:limit]
	}
	return stations, nil
}

// HaversineKm computes the great-circle distance between two points in
// kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
