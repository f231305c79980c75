package geo

import (
	"math"
	"testing"
)

func TestDistanceMetersZeroAtSamePoint(t *testing.T) {
	p := Point{Lat: 12.9716, Lng: 77.5946}
	if d := DistanceMeters(p, p); d != 0 {
		t.Fatalf("expected zero distance at identical points, got %f", d)
	}
}

func TestDistanceMetersKnownPairs(t *testing.T) {
	cases := []struct {
		name       string
		a, b       Point
		wantMeters float64
		tolerance  float64
	}{
		{
			// One degree of latitude is about 111.2 km everywhere.
			name:       "one degree latitude",
			a:          Point{Lat: 0, Lng: 0},
			b:          Point{Lat: 1, Lng: 0},
			wantMeters: 111195,
			tolerance:  100,
		},
		{
			name:       "bangalore city block",
			a:          Point{Lat: 12.9716, Lng: 77.5946},
			b:          Point{Lat: 12.9726, Lng: 77.5946},
			wantMeters: 111.2,
			tolerance:  1,
		},
		{
			name:       "across the equator",
			a:          Point{Lat: -0.005, Lng: 10},
			b:          Point{Lat: 0.005, Lng: 10},
			wantMeters: 1112,
			tolerance:  5,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DistanceMeters(tc.a, tc.b)
			if math.Abs(got-tc.wantMeters) > tc.tolerance {
				t.Fatalf("distance = %f, want %f ± %f", got, tc.wantMeters, tc.tolerance)
			}
		})
	}
}

func TestDistanceMetersSymmetric(t *testing.T) {
	a := Point{Lat: 12.9716, Lng: 77.5946}
	b := Point{Lat: 13.0827, Lng: 80.2707}
	if d1, d2 := DistanceMeters(a, b), DistanceMeters(b, a); math.Abs(d1-d2) > 1e-9 {
		t.Fatalf("distance not symmetric: %f vs %f", d1, d2)
	}
}
