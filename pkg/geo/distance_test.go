package geo

import (
	"math"
	"testing"
)

func TestDistanceMeters(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want                   float64
		tolerance              float64
	}{
		{name: "same point", lat1: 10, lng1: 10, lat2: 10, lng2: 10, want: 0, tolerance: 0.001},
		{name: "equator one millidegree", lat1: 0, lng1: 0, lat2: 0, lng2: 0.001, want: 111.2, tolerance: 1},
		{name: "one degree latitude", lat1: 0, lng1: 0, lat2: 1, lng2: 0, want: 111195, tolerance: 200},
		{name: "antimeridian", lat1: 0, lng1: 179.9995, lat2: 0, lng2: -179.9995, want: 111.2, tolerance: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DistanceMeters(tc.lat1, tc.lng1, tc.lat2, tc.lng2)
			if math.Abs(got-tc.want) > tc.tolerance {
				t.Fatalf("expected ~%.1fm, got %.1fm", tc.want, got)
			}
		})
	}
}

func TestDistanceMetersSymmetry(t *testing.T) {
	t.Parallel()

	a := DistanceMeters(36.153984, -95.992775, 36.2, -96.0)
	b := DistanceMeters(36.2, -96.0, 36.153984, -95.992775)
	if math.Abs(a-b) > 1e-6 {
		t.Fatalf("distance not symmetric: %f vs %f", a, b)
	}
}

func TestValidCoordinates(t *testing.T) {
	t.Parallel()

	valid := [][2]float64{{0, 0}, {-90, 180}, {90, -180}, {36.15, -95.99}}
	for _, pair := range valid {
		if !ValidCoordinates(pair[0], pair[1]) {
			t.Fatalf("expected (%f,%f) to be valid", pair[0], pair[1])
		}
	}

	invalid := [][2]float64{{91, 0}, {-90.01, 0}, {0, 180.5}, {0, -181}, {math.NaN(), 0}}
	for _, pair := range invalid {
		if ValidCoordinates(pair[0], pair[1]) {
			t.Fatalf("expected (%f,%f) to be invalid", pair[0], pair[1])
		}
	}
}
