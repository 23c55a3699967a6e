package checkin

import "math"

// earthRadius is the mean Earth radius in meters.
const earthRadius = 6371000.0

// Distance returns the great-circle distance in meters between two
// coordinates, using the haversine formula on a spherical Earth.
// All inputs must be finite and within valid lat/lng ranges; that is the
// caller's contract, not a runtime check.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	return earthRadius * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
