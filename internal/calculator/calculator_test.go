package calculator

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

var testClock = func() time.Time {
	return time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)
}

func newTestCalculator() Calculator {
	return New(WithClock(testClock))
}

func fourGradeDispenser(store, number string) Dispenser {
	return Dispenser{
		StoreNumber:     store,
		DispenserNumber: number,
		FuelGrades: []FuelGrade{
			{Grade: "Regular"},
			{Grade: "Plus"},
			{Grade: "Premium"},
			{Grade: "Diesel"},
		},
		MeterType: "Electronic",
	}
}

func TestCalculateSingleJob(t *testing.T) {
	t.Parallel()

	orders := []WorkOrder{{
		JobID:        "J1",
		StoreNumber:  "S1",
		CustomerName: "7-Eleven Store #1",
		ServiceCode:  "2861",
	}}
	dispensers := []Dispenser{fourGradeDispenser("S1", "1")}

	result, err := newTestCalculator().Calculate(orders, dispensers, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", result.Warnings)
	}
	if len(result.Details) != 1 {
		t.Fatalf("expected one detail row, got %d", len(result.Details))
	}

	// Regular and Premium (no super variant present) share the gas part,
	// Plus is excluded, Diesel gets its own part.
	want := map[string]int{"400MB-10": 2, "400HS-10": 1}
	if !reflect.DeepEqual(result.Details[0].Filters, want) {
		t.Fatalf("expected filters %v, got %v", want, result.Details[0].Filters)
	}
	if result.Details[0].Chain != "7-Eleven" {
		t.Fatalf("expected chain 7-Eleven, got %s", result.Details[0].Chain)
	}
	if result.TotalFilters != 3 {
		t.Fatalf("expected 3 total filters, got %d", result.TotalFilters)
	}
	if result.TotalBoxes != 2 {
		t.Fatalf("expected 2 total boxes, got %d", result.TotalBoxes)
	}
	if result.Metadata.JobCount != 1 || result.Metadata.StoreCount != 1 {
		t.Fatalf("unexpected metadata: %+v", result.Metadata)
	}
}

func TestCalculateGradeRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		grades      []string
		meterType   string
		customer    string
		want        map[string]int
		wantWarning string
	}{
		{
			name:     "PremiumExcludedWhenSuperPresent",
			grades:   []string{"Regular", "Plus", "Premium", "Super Premium"},
			customer: "7-Eleven Store #1",
			// Regular + Super Premium; plain Premium is covered by the
			// higher grade's filter.
			want: map[string]int{"400MB-10": 2},
		},
		{
			name:     "PremiumIncludedWithoutSuperVariant",
			grades:   []string{"Regular", "Plus", "Premium"},
			customer: "7-Eleven Store #1",
			want:     map[string]int{"400MB-10": 2},
		},
		{
			name:     "NeverFilterVariants",
			grades:   []string{"Plus", "Midgrade", "Mid-Grade", "Mid Grade"},
			customer: "7-Eleven Store #1",
			want:     map[string]int{},
		},
		{
			name:     "AlwaysFilterVariants",
			grades:   []string{"Ethanol-Free", "E-85", "Kerosene", "Ultra 93"},
			customer: "7-Eleven Store #1",
			want:     map[string]int{"400MB-10": 4},
		},
		{
			name:        "UnknownGradeFailsSafe",
			grades:      []string{"Racing Blend"},
			customer:    "7-Eleven Store #1",
			want:        map[string]int{"400MB-10": 1},
			wantWarning: warningUnknownGrade,
		},
		{
			name:     "HighFlowDiesel",
			grades:   []string{"Diesel High Flow"},
			customer: "Speedway #883",
			want:     map[string]int{"800HS-30": 1},
		},
		{
			name:        "CircleKHasNoHighFlowPart",
			grades:      []string{"Hi-Flow Diesel"},
			customer:    "Circle K #2207",
			want:        map[string]int{},
			wantWarning: warningNoFilter,
		},
		{
			name:     "WawaDEF",
			grades:   []string{"DEF"},
			customer: "Wawa #450",
			want:     map[string]int{"800-DEF6": 1},
		},
		{
			name:        "DEFNotStockedAtSevenEleven",
			grades:      []string{"DEF"},
			customer:    "7-Eleven Store #1",
			want:        map[string]int{},
			wantWarning: warningNoFilter,
		},
		{
			name:      "HDMeterPart",
			grades:    []string{"Regular"},
			meterType: "HD Meter",
			customer:  "Speedway #883",
			want:      map[string]int{"450MB-10": 1},
		},
		{
			name:      "UnknownMeterFallsBackToElectronic",
			grades:    []string{"Regular"},
			meterType: "HD Meter",
			customer:  "Circle K #2207",
			want:      map[string]int{"40510A": 1},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			grades := make([]FuelGrade, len(tc.grades))
			for i, g := range tc.grades {
				grades[i] = FuelGrade{Grade: g}
			}
			orders := []WorkOrder{{
				JobID:        "J1",
				StoreNumber:  "S1",
				CustomerName: tc.customer,
				ServiceCode:  "2861",
			}}
			dispensers := []Dispenser{{
				StoreNumber:     "S1",
				DispenserNumber: "1",
				FuelGrades:      grades,
				MeterType:       tc.meterType,
			}}

			result, err := newTestCalculator().Calculate(orders, dispensers, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(result.Details[0].Filters, tc.want) {
				t.Fatalf("expected filters %v, got %v", tc.want, result.Details[0].Filters)
			}

			if tc.wantWarning == "" {
				if len(result.Warnings) != 0 {
					t.Fatalf("expected no warnings, got %v", result.Warnings)
				}
				return
			}
			if len(result.Warnings) == 0 {
				t.Fatalf("expected a %s warning, got none", tc.wantWarning)
			}
			if result.Warnings[0].Type != tc.wantWarning {
				t.Fatalf("expected warning type %s, got %s", tc.wantWarning, result.Warnings[0].Type)
			}
		})
	}
}

func TestCalculateMultiDayContinuation(t *testing.T) {
	t.Parallel()

	orders := []WorkOrder{{
		JobID:        "J2",
		StoreNumber:  "S1",
		CustomerName: "7-Eleven Store #1",
		ServiceCode:  "2861",
		IsMultiDay:   true,
		DayNumber:    2,
	}}
	dispensers := []Dispenser{fourGradeDispenser("S1", "1")}

	result, err := newTestCalculator().Calculate(orders, dispensers, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Details[0].Filters) != 0 {
		t.Fatalf("expected no filters for a continuation day, got %v", result.Details[0].Filters)
	}
	if result.TotalFilters != 0 {
		t.Fatalf("expected zero total filters, got %d", result.TotalFilters)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got %d", len(result.Warnings))
	}
	w := result.Warnings[0]
	if w.Type != warningMultiDay || w.Severity != severityInfo {
		t.Fatalf("unexpected warning: %+v", w)
	}
	if w.ID != "warn_1" {
		t.Fatalf("expected warning id warn_1, got %s", w.ID)
	}
	if len(w.AffectedJobs) != 1 || w.AffectedJobs[0] != "J2" {
		t.Fatalf("expected warning to reference J2, got %v", w.AffectedJobs)
	}
}

func TestCalculateMultiDayFirstDayCounts(t *testing.T) {
	t.Parallel()

	orders := []WorkOrder{{
		JobID:        "J3",
		StoreNumber:  "S1",
		CustomerName: "7-Eleven Store #1",
		ServiceCode:  "2861",
		IsMultiDay:   true,
		DayNumber:    1,
	}}
	dispensers := []Dispenser{fourGradeDispenser("S1", "1")}

	result, err := newTestCalculator().Calculate(orders, dispensers, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalFilters != 3 {
		t.Fatalf("expected day 1 to count filters, got %d", result.TotalFilters)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("expected no warnings on day 1, got %v", result.Warnings)
	}
}

func TestCalculateMissingStoreData(t *testing.T) {
	t.Parallel()

	orders := []WorkOrder{{
		JobID:        "J9",
		StoreNumber:  "S99",
		CustomerName: "7-Eleven Store #99",
		ServiceCode:  "2861",
	}}

	result, err := newTestCalculator().Calculate(orders, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Details[0].Filters) != 0 {
		t.Fatalf("expected no filters, got %v", result.Details[0].Filters)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got %d", len(result.Warnings))
	}
	w := result.Warnings[0]
	if w.Type != warningMissingData || w.Severity != severityMissingData {
		t.Fatalf("unexpected warning: %+v", w)
	}
	if len(w.Suggestions) == 0 {
		t.Fatalf("expected suggestions on missing data warning")
	}
	if len(w.AffectedJobs) != 1 || w.AffectedJobs[0] != "J9" {
		t.Fatalf("expected warning to reference J9, got %v", w.AffectedJobs)
	}
}

func TestCalculateInstructionScopedDispensers(t *testing.T) {
	t.Parallel()

	orders := []WorkOrder{{
		JobID:        "J5",
		StoreNumber:  "S1",
		CustomerName: "7-Eleven Store #1",
		ServiceCode:  "2862",
		Instructions: "Replace filters on dispensers 1-2 only",
	}}
	dispensers := []Dispenser{
		fourGradeDispenser("S1", "1"),
		fourGradeDispenser("S1", "2"),
		fourGradeDispenser("S1", "3"),
	}

	result, err := newTestCalculator().Calculate(orders, dispensers, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]int{"400MB-10": 4, "400HS-10": 2}
	if !reflect.DeepEqual(result.Details[0].Filters, want) {
		t.Fatalf("expected filters %v, got %v", want, result.Details[0].Filters)
	}
	if result.Details[0].DispenserCount != 2 {
		t.Fatalf("expected 2 scoped dispensers, got %d", result.Details[0].DispenserCount)
	}
}

func TestCalculateInstructionsIgnoredForOtherCodes(t *testing.T) {
	t.Parallel()

	orders := []WorkOrder{{
		JobID:        "J6",
		StoreNumber:  "S1",
		CustomerName: "7-Eleven Store #1",
		ServiceCode:  "2861",
		Instructions: "dispenser 1 only",
	}}
	dispensers := []Dispenser{
		fourGradeDispenser("S1", "1"),
		fourGradeDispenser("S1", "2"),
	}

	result, err := newTestCalculator().Calculate(orders, dispensers, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Details[0].DispenserCount != 2 {
		t.Fatalf("expected all dispensers in scope for code 2861, got %d", result.Details[0].DispenserCount)
	}
}

func TestCalculateOverrides(t *testing.T) {
	t.Parallel()

	orders := []WorkOrder{{
		JobID:        "JOB1",
		StoreNumber:  "S1",
		CustomerName: "7-Eleven Store #1",
		ServiceCode:  "2861",
	}}
	dispensers := []Dispenser{
		{StoreNumber: "S1", DispenserNumber: "1", FuelGrades: []FuelGrade{{Grade: "Regular"}}},
		{StoreNumber: "S1", DispenserNumber: "2", FuelGrades: []FuelGrade{{Grade: "Regular"}}},
		{StoreNumber: "S1", DispenserNumber: "3", FuelGrades: []FuelGrade{{Grade: "Regular"}}},
	}
	overrides := Overrides{
		"JOB1-400MB-10": 5,
		"JOB1-999XX-10": 9, // unknown part, must not appear
	}

	result, err := newTestCalculator().Calculate(orders, dispensers, overrides)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := result.Details[0].Filters["400MB-10"]; got != 5 {
		t.Fatalf("expected overridden quantity 5, got %d", got)
	}
	if !result.Details[0].IsEdited {
		t.Fatalf("expected detail to be marked edited")
	}
	if _, ok := result.Details[0].Filters["999XX-10"]; ok {
		t.Fatalf("override must not introduce a new part number")
	}
	if result.Summary[0].PartNumber != "400MB-10" || result.Summary[0].Quantity != 5 {
		t.Fatalf("expected summary to reflect override, got %+v", result.Summary)
	}
}

func TestCalculateOverrideToZeroDropsSummaryRow(t *testing.T) {
	t.Parallel()

	orders := []WorkOrder{{
		JobID:        "JOB1",
		StoreNumber:  "S1",
		CustomerName: "7-Eleven Store #1",
		ServiceCode:  "2861",
	}}
	dispensers := []Dispenser{
		{StoreNumber: "S1", DispenserNumber: "1", FuelGrades: []FuelGrade{{Grade: "Regular"}}},
	}

	result, err := newTestCalculator().Calculate(orders, dispensers, Overrides{"JOB1-400MB-10": 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Summary) != 0 {
		t.Fatalf("expected no summary rows for zero quantity, got %v", result.Summary)
	}
}

func TestCalculateBoxRounding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		dispensers int
		customer   string
		grade      string
		wantBoxes  int
	}{
		{name: "TwelveExactlyOneBox", dispensers: 12, customer: "7-Eleven Store #1", grade: "Regular", wantBoxes: 1},
		{name: "ThirteenRoundsUp", dispensers: 13, customer: "7-Eleven Store #1", grade: "Regular", wantBoxes: 2},
		{name: "DEFUsesSmallerBox", dispensers: 7, customer: "Wawa #450", grade: "DEF", wantBoxes: 2},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			orders := []WorkOrder{{
				JobID:        "J1",
				StoreNumber:  "S1",
				CustomerName: tc.customer,
				ServiceCode:  "2861",
			}}
			dispensers := make([]Dispenser, tc.dispensers)
			for i := range dispensers {
				dispensers[i] = Dispenser{
					StoreNumber:     "S1",
					DispenserNumber: string(rune('1' + i)),
					FuelGrades:      []FuelGrade{{Grade: tc.grade}},
				}
			}

			result, err := newTestCalculator().Calculate(orders, dispensers, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(result.Summary) != 1 {
				t.Fatalf("expected one summary row, got %v", result.Summary)
			}
			if result.Summary[0].Boxes != tc.wantBoxes {
				t.Fatalf("expected %d boxes, got %d", tc.wantBoxes, result.Summary[0].Boxes)
			}
		})
	}
}

func TestCalculateSummarySortedByQuantity(t *testing.T) {
	t.Parallel()

	orders := []WorkOrder{
		{JobID: "J1", StoreNumber: "S1", CustomerName: "7-Eleven #1", ServiceCode: "2861"},
		{JobID: "J2", StoreNumber: "S2", CustomerName: "7-Eleven #2", ServiceCode: "2861"},
	}
	dispensers := []Dispenser{
		// S1: one diesel, two gas grades. S2: one gas grade.
		{StoreNumber: "S1", DispenserNumber: "1", FuelGrades: []FuelGrade{{Grade: "Diesel"}, {Grade: "Regular"}, {Grade: "Premium"}}},
		{StoreNumber: "S2", DispenserNumber: "1", FuelGrades: []FuelGrade{{Grade: "Regular"}}},
	}

	result, err := newTestCalculator().Calculate(orders, dispensers, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Summary) != 2 {
		t.Fatalf("expected two summary rows, got %v", result.Summary)
	}
	if result.Summary[0].PartNumber != "400MB-10" || result.Summary[0].Quantity != 3 {
		t.Fatalf("expected gas part first with quantity 3, got %+v", result.Summary[0])
	}
	if result.Summary[0].StoreCount != 2 {
		t.Fatalf("expected gas part across 2 stores, got %d", result.Summary[0].StoreCount)
	}
	if result.Summary[1].PartNumber != "400HS-10" || result.Summary[1].StoreCount != 1 {
		t.Fatalf("unexpected second row: %+v", result.Summary[1])
	}
}

func TestCalculateIsIdempotent(t *testing.T) {
	t.Parallel()

	orders := []WorkOrder{
		{JobID: "J1", StoreNumber: "S1", CustomerName: "Speedway #883", ServiceCode: "2862", Instructions: "pump 1 and pump 2"},
		{JobID: "J2", StoreNumber: "S2", CustomerName: "Wawa #450", ServiceCode: "3002"},
		{JobID: "J3", StoreNumber: "S9", CustomerName: "Circle K #12", ServiceCode: "2861"},
	}
	dispensers := []Dispenser{
		fourGradeDispenser("S1", "1"),
		fourGradeDispenser("S1", "2"),
		fourGradeDispenser("S1", "3"),
		{StoreNumber: "S2", DispenserNumber: "1", FuelGrades: []FuelGrade{{Grade: "Regular"}, {Grade: "DEF"}}},
	}
	overrides := Overrides{"J2-400MB-10": 4}

	calc := newTestCalculator()
	first, err := calc.Calculate(orders, dispensers, overrides)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := calc.Calculate(orders, dispensers, overrides)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results across calls\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestCalculateWarningIDsIncrement(t *testing.T) {
	t.Parallel()

	orders := []WorkOrder{
		{JobID: "J1", StoreNumber: "S404", CustomerName: "7-Eleven #1", ServiceCode: "2861"},
		{JobID: "J2", StoreNumber: "S405", CustomerName: "7-Eleven #2", ServiceCode: "2861"},
	}

	result, err := newTestCalculator().Calculate(orders, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected two warnings, got %d", len(result.Warnings))
	}
	if result.Warnings[0].ID != "warn_1" || result.Warnings[1].ID != "warn_2" {
		t.Fatalf("unexpected warning ids: %s, %s", result.Warnings[0].ID, result.Warnings[1].ID)
	}
}

func TestCalculateValidation(t *testing.T) {
	t.Parallel()

	calc := newTestCalculator()

	_, err := calc.Calculate([]WorkOrder{{StoreNumber: "S1"}}, nil, nil)
	if !errors.Is(err, ErrMissingJobID) {
		t.Fatalf("expected ErrMissingJobID, got %v", err)
	}

	_, err = calc.Calculate([]WorkOrder{{JobID: "J1"}}, nil, nil)
	if !errors.Is(err, ErrMissingStoreNumber) {
		t.Fatalf("expected ErrMissingStoreNumber, got %v", err)
	}

	_, err = calc.Calculate(nil, []Dispenser{{DispenserNumber: "1"}}, nil)
	if !errors.Is(err, ErrMissingStoreNumber) {
		t.Fatalf("expected ErrMissingStoreNumber for dispenser, got %v", err)
	}
}

func TestCalculateEmptyBatch(t *testing.T) {
	t.Parallel()

	result, err := newTestCalculator().Calculate(nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Summary) != 0 || len(result.Details) != 0 || len(result.Warnings) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
	if result.Metadata.JobCount != 0 || result.Metadata.StoreCount != 0 {
		t.Fatalf("unexpected metadata: %+v", result.Metadata)
	}
}

func BenchmarkCalculate(b *testing.B) {
	orders := make([]WorkOrder, 50)
	dispensers := make([]Dispenser, 0, 400)
	for i := range orders {
		store := "S" + string(rune('A'+i%26)) + string(rune('A'+i/26))
		orders[i] = WorkOrder{
			JobID:        "J" + store,
			StoreNumber:  store,
			CustomerName: "7-Eleven Store #1",
			ServiceCode:  "2861",
		}
		for d := 0; d < 8; d++ {
			dispensers = append(dispensers, fourGradeDispenser(store, string(rune('1'+d))))
		}
	}

	calc := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := calc.Calculate(orders, dispensers, nil); err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
	}
}
