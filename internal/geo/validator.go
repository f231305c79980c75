package geo

import "errors"

// ErrAccuracyTooLow rejects a sample whose reported uncertainty exceeds the
// configured maximum. The gate runs before any distance is computed so an
// imprecise fix can never pass by chance.
var ErrAccuracyTooLow = errors.New("geo: location accuracy exceeds maximum")

// Validator applies the accuracy gate and the radius gate around an anchor.
// Both thresholds come from configuration, never from call sites.
type Validator struct {
	AllowedRadiusMeters float64
	MaxAccuracyMeters   float64
}

// Result reports a proximity evaluation. DistanceMeters is only meaningful
// when the accuracy gate passed.
type Result struct {
	Pass           bool
	DistanceMeters float64
}

// Evaluate gates in fixed order: accuracy first, then distance against the
// allowed radius.
func (v Validator) Evaluate(sample Sample, anchor Point) (Result, error) {
	if sample.AccuracyMeters > v.MaxAccuracyMeters {
		return Result{}, ErrAccuracyTooLow
	}
	distance := DistanceMeters(sample.Point, anchor)
	return Result{
		Pass:           distance <= v.AllowedRadiusMeters,
		DistanceMeters: distance,
	}, nil
}
