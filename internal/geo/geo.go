// internal/geo/geo.go
// Location codes and great-circle distance for candidate retrieval

package geo

import (
	"math"

	"github.com/mmcloughlin/geohash"
)

// DefaultCodePrecision covers roughly a 20x40km cell, wide enough that a
// single cell plus its neighbors holds a city-scale candidate pool.
const DefaultCodePrecision = 4

// UnknownDistanceMiles is the sentinel used when either side has no
// coordinates. It is large enough to fail any distance preference.
const UnknownDistanceMiles = 1e9

const earthRadiusMiles = 3958.8

// EncodeCode derives the fixed-precision location code for a coordinate pair.
func EncodeCode(lat, lng float64, precision int) string {
	if precision <= 0 {
		precision = DefaultCodePrecision
	}
	return geohash.EncodeWithPrecision(lat, lng, uint(precision))
}

// SearchCells returns the requester's cell plus its eight neighbors. Querying
// the full ring avoids missing candidates that sit just across a cell border.
func SearchCells(lat, lng float64, precision int) []string {
	code := EncodeCode(lat, lng, precision)
	return append([]string{code}, geohash.Neighbors(code)...)
}

// DistanceMiles computes the haversine great-circle distance in miles.
func DistanceMiles(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMiles * c
}
