package clinical

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAgeAt_DayBeforeBirthday(t *testing.T) {
	if got := AgeAt(date(2000, 6, 15), date(2024, 6, 14)); got != 23 {
		t.Errorf("expected 23, got %d", got)
	}
}

func TestAgeAt_OnBirthday(t *testing.T) {
	if got := AgeAt(date(2000, 6, 15), date(2024, 6, 15)); got != 24 {
		t.Errorf("expected 24, got %d", got)
	}
}

func TestAgeAt_EarlierMonth(t *testing.T) {
	if got := AgeAt(date(1990, 12, 1), date(2024, 3, 1)); got != 33 {
		t.Errorf("expected 33, got %d", got)
	}
}

func TestAgeAt_LeapDayBirth(t *testing.T) {
	// Feb 28 precedes Feb 29 within the reference year.
	if got := AgeAt(date(2000, 2, 29), date(2023, 2, 28)); got != 22 {
		t.Errorf("expected 22, got %d", got)
	}
	if got := AgeAt(date(2000, 2, 29), date(2023, 3, 1)); got != 23 {
		t.Errorf("expected 23, got %d", got)
	}
}

func TestBMI_Computes(t *testing.T) {
	got, err := BMI(70, 175)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 22.86 {
		t.Errorf("expected 22.86, got %v", got)
	}
}

func TestBMI_NonPositive(t *testing.T) {
	cases := [][2]float64{{0, 170}, {-1, 170}, {70, 0}, {70, -10}}
	for _, tc := range cases {
		if _, err := BMI(tc[0], tc[1]); !errors.Is(err, ErrInvalidMeasurement) {
			t.Errorf("BMI(%v, %v): expected ErrInvalidMeasurement, got %v", tc[0], tc[1], err)
		}
	}
}

func TestClassifyBMI_Boundaries(t *testing.T) {
	tests := []struct {
		bmi  float64
		want BMICategory
	}{
		{17.0, BMIUnderweight},
		{18.49, BMIUnderweight},
		{18.5, BMINormal},
		{24.9, BMINormal},
		{25, BMIOverweight},
		{29.99, BMIOverweight},
		{30, BMIObesityI},
		{35, BMIObesityII},
		{39.99, BMIObesityII},
		{40, BMIObesityIII},
		{40.1, BMIObesityIII},
		{-5, BMIUnderweight},
	}
	for _, tt := range tests {
		if got := ClassifyBMI(tt.bmi); got != tt.want {
			t.Errorf("ClassifyBMI(%v) = %s, want %s", tt.bmi, got, tt.want)
		}
	}
}

func TestClassifyBloodPressure(t *testing.T) {
	tests := []struct {
		sys, dia int
		want     BPCategory
	}{
		{110, 70, BPNormal},
		{125, 75, BPElevated},
		{125, 85, BPHypertensionStage1},
		{135, 85, BPHypertensionStage1},
		{150, 95, BPHypertensionStage2},
		{200, 130, BPHypertensiveCrisis},
		{180, 120, BPHypertensiveCrisis},
	}
	for _, tt := range tests {
		if got := ClassifyBloodPressure(tt.sys, tt.dia); got != tt.want {
			t.Errorf("ClassifyBloodPressure(%d, %d) = %s, want %s", tt.sys, tt.dia, got, tt.want)
		}
	}
}

func TestClassifyBloodPressure_OrderingAsymmetry(t *testing.T) {
	// A systolic under 140 short-circuits into stage 1 regardless of diastolic.
	if got := ClassifyBloodPressure(135, 200); got != BPHypertensionStage1 {
		t.Errorf("expected %s, got %s", BPHypertensionStage1, got)
	}
	// A systolic under 180 stops at stage 2 even with a crisis-level diastolic.
	if got := ClassifyBloodPressure(170, 130); got != BPHypertensionStage2 {
		t.Errorf("expected %s, got %s", BPHypertensionStage2, got)
	}
}

func TestDerive_Full(t *testing.T) {
	m, err := Derive(Snapshot{
		BirthDate: date(2000, 6, 15),
		WeightKg:  70,
		HeightCm:  175,
		Systolic:  110,
		Diastolic: 70,
	}, date(2024, 6, 15))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.AgeYears != 24 {
		t.Errorf("expected age 24, got %d", m.AgeYears)
	}
	if m.BMI == nil || *m.BMI != 22.86 {
		t.Errorf("expected bmi 22.86, got %v", m.BMI)
	}
	if m.BMICategory != BMINormal {
		t.Errorf("expected normal, got %s", m.BMICategory)
	}
	if m.BPCategory != BPNormal {
		t.Errorf("expected normal bp, got %s", m.BPCategory)
	}
}

func TestDerive_AgeOnly(t *testing.T) {
	m, err := Derive(Snapshot{BirthDate: date(2010, 1, 1)}, date(2024, 1, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.BMI != nil || m.BMICategory != "" || m.BPCategory != "" {
		t.Errorf("expected only age, got %+v", m)
	}
}

func TestDerive_InvalidInputs(t *testing.T) {
	ref := date(2024, 1, 1)
	cases := []Snapshot{
		{},
		{BirthDate: date(2030, 1, 1)},
		{BirthDate: date(2000, 1, 1), WeightKg: 70},
		{BirthDate: date(2000, 1, 1), Systolic: 120},
	}
	for i, s := range cases {
		if _, err := Derive(s, ref); !errors.Is(err, ErrInvalidMeasurement) {
			t.Errorf("case %d: expected ErrInvalidMeasurement, got %v", i, err)
		}
	}
}
