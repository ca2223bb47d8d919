package clinical

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidMeasurement is returned for non-positive physical quantities.
var ErrInvalidMeasurement = errors.New("invalid measurement")

// BMICategory is the adult BMI classification band.
type BMICategory string

const (
	BMIUnderweight BMICategory = "underweight"
	BMINormal      BMICategory = "normal"
	BMIOverweight  BMICategory = "overweight"
	BMIObesityI    BMICategory = "obesity-I"
	BMIObesityII   BMICategory = "obesity-II"
	BMIObesityIII  BMICategory = "obesity-III"
)

// BPCategory is the blood-pressure stage.
type BPCategory string

const (
	BPNormal             BPCategory = "normal"
	BPElevated           BPCategory = "elevated"
	BPHypertensionStage1 BPCategory = "hypertension-stage-1"
	BPHypertensionStage2 BPCategory = "hypertension-stage-2"
	BPHypertensiveCrisis BPCategory = "hypertensive-crisis"
)

// Snapshot is the patient data the metrics are derived from.
type Snapshot struct {
	BirthDate time.Time `json:"birth_date"`
	WeightKg  float64   `json:"weight_kg,omitempty"`
	HeightCm  float64   `json:"height_cm,omitempty"`
	Systolic  int       `json:"systolic,omitempty"`
	Diastolic int       `json:"diastolic,omitempty"`
}

// Metrics holds the values derived from a Snapshot at a reference instant.
type Metrics struct {
	AgeYears    int         `json:"age_years"`
	BMI         *float64    `json:"bmi,omitempty"`
	BMICategory BMICategory `json:"bmi_category,omitempty"`
	BPCategory  BPCategory  `json:"bp_category,omitempty"`
}

// AgeAt returns the completed years between birth and reference on the civil
// calendar. Both dates are read in their own locations.
func AgeAt(birth, reference time.Time) int {
	age := reference.Year() - birth.Year()
	if reference.Month() < birth.Month() ||
		(reference.Month() == birth.Month() && reference.Day() < birth.Day()) {
		age--
	}
	return age
}

// BMI computes weight / height(m)^2 rounded to two decimals.
func BMI(weightKg, heightCm float64) (float64, error) {
	if weightKg <= 0 || math.IsNaN(weightKg) {
		return 0, fmt.Errorf("%w: weight must be positive, got %v", ErrInvalidMeasurement, weightKg)
	}
	if heightCm <= 0 || math.IsNaN(heightCm) {
		return 0, fmt.Errorf("%w: height must be positive, got %v", ErrInvalidMeasurement, heightCm)
	}
	m := heightCm / 100
	return math.Round(weightKg/(m*m)*100) / 100, nil
}

// ClassifyBMI maps a BMI value to its band. Lower bounds are inclusive.
func ClassifyBMI(bmi float64) BMICategory {
	switch {
	case bmi < 18.5:
		return BMIUnderweight
	case bmi < 25:
		return BMINormal
	case bmi < 30:
		return BMIOverweight
	case bmi < 35:
		return BMIObesityI
	case bmi < 40:
		return BMIObesityII
	default:
		return BMIObesityIII
	}
}

// ClassifyBloodPressure stages a reading. The checks run in a fixed order and
// the two highest stages use OR, so a low systolic with a very high diastolic
// stops at stage 1 or 2 instead of reaching crisis. Existing categorisations
// depend on that order; keep it.
func ClassifyBloodPressure(systolic, diastolic int) BPCategory {
	switch {
	case systolic < 120 && diastolic < 80:
		return BPNormal
	case systolic < 130 && diastolic < 80:
		return BPElevated
	case systolic < 140 || diastolic < 90:
		return BPHypertensionStage1
	case systolic < 180 || diastolic < 120:
		return BPHypertensionStage2
	default:
		return BPHypertensiveCrisis
	}
}

// Derive computes every metric the snapshot has data for. Weight and height
// are optional as a pair; a blood-pressure reading is optional as a pair.
func Derive(s Snapshot, reference time.Time) (Metrics, error) {
	if s.BirthDate.IsZero() {
		return Metrics{}, fmt.Errorf("%w: birth_date is required", ErrInvalidMeasurement)
	}
	if s.BirthDate.After(reference) {
		return Metrics{}, fmt.Errorf("%w: birth_date is after the reference date", ErrInvalidMeasurement)
	}

	m := Metrics{AgeYears: AgeAt(s.BirthDate, reference)}

	if s.WeightKg != 0 || s.HeightCm != 0 {
		bmi, err := BMI(s.WeightKg, s.HeightCm)
		if err != nil {
			return Metrics{}, err
		}
		m.BMI = &bmi
		m.BMICategory = ClassifyBMI(bmi)
	}

	if s.Systolic != 0 || s.Diastolic != 0 {
		if s.Systolic <= 0 || s.Diastolic <= 0 {
			return Metrics{}, fmt.Errorf("%w: blood pressure needs positive systolic and diastolic", ErrInvalidMeasurement)
		}
		m.BPCategory = ClassifyBloodPressure(s.Systolic, s.Diastolic)
	}

	return m, nil
}
