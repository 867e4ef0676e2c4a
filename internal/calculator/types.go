package calculator

import "time"

// WorkOrder is a single service visit scraped from the WorkFossa portal.
// The field names form the interface with the data-acquisition layer and
// must stay stable.
type WorkOrder struct {
	JobID         string `json:"jobId"`
	StoreNumber   string `json:"storeNumber"`
	CustomerName  string `json:"customerName"`
	ServiceCode   string `json:"serviceCode"`
	ScheduledDate string `json:"scheduledDate,omitempty"`
	ServiceName   string `json:"serviceName,omitempty"`
	Address       string `json:"address,omitempty"`
	StoreName     string `json:"storeName,omitempty"`
	IsMultiDay    bool   `json:"isMultiDay,omitempty"`
	DayNumber     int    `json:"dayNumber,omitempty"`
	Instructions  string `json:"instructions,omitempty"`
}

// FuelGrade is one named fuel product offered by a dispenser.
type FuelGrade struct {
	Grade string `json:"grade"`
}

// Dispenser is a single pump unit at a store with its fuel grade
// configuration. Grade order is preserved from the source.
type Dispenser struct {
	StoreNumber     string      `json:"storeNumber"`
	DispenserNumber string      `json:"dispenserNumber"`
	FuelGrades      []FuelGrade `json:"fuelGrades"`
	MeterType       string      `json:"meterType,omitempty"`
}

// Overrides maps "{jobId}-{partNumber}" to a manually corrected quantity.
// An override can only adjust a part the engine already determined was
// needed; it cannot introduce a new part number.
type Overrides map[string]int

// SummaryRow aggregates one part number across the whole batch.
type SummaryRow struct {
	PartNumber  string `json:"partNumber"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Boxes       int    `json:"boxes"`
	StoreCount  int    `json:"storeCount"`
	FilterType  string `json:"filterType"`
}

// JobDetail is the per-work-order breakdown. It is emitted for every work
// order, including ones that need no filters, so callers can render
// "no filters needed" rows.
type JobDetail struct {
	JobID          string         `json:"jobId"`
	StoreNumber    string         `json:"storeNumber"`
	StoreName      string         `json:"storeName,omitempty"`
	CustomerName   string         `json:"customerName"`
	Chain          string         `json:"chain"`
	ServiceCode    string         `json:"serviceCode"`
	ServiceName    string         `json:"serviceName,omitempty"`
	ScheduledDate  string         `json:"scheduledDate,omitempty"`
	Address        string         `json:"address,omitempty"`
	DispenserCount int            `json:"dispenserCount"`
	Filters        map[string]int `json:"filters"`
	IsEdited       bool           `json:"isEdited"`
}

// Warning reports an ambiguous or noteworthy condition encountered during a
// calculation. Higher severity means more severe; beyond that the numeric
// values carry no contract.
type Warning struct {
	ID           string    `json:"id"`
	Severity     int       `json:"severity"`
	Type         string    `json:"type"`
	Message      string    `json:"message"`
	AffectedJobs []string  `json:"affectedJobs"`
	Suggestions  []string  `json:"suggestions,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Metadata describes the calculation run itself.
type Metadata struct {
	CalculatedAt time.Time `json:"calculatedAt"`
	JobCount     int       `json:"jobCount"`
	StoreCount   int       `json:"storeCount"`
}

// Result is the complete, JSON-serializable outcome of one calculation.
type Result struct {
	Summary      []SummaryRow `json:"summary"`
	Details      []JobDetail  `json:"details"`
	Warnings     []Warning    `json:"warnings"`
	TotalFilters int          `json:"totalFilters"`
	TotalBoxes   int          `json:"totalBoxes"`
	Metadata     Metadata     `json:"metadata"`
}

// Calculator computes replacement filter requirements for a batch of work
// orders. Implementations must be pure: identical inputs yield identical
// output and no state survives a call.
type Calculator interface {
	Calculate(workOrders []WorkOrder, dispensers []Dispenser, overrides Overrides) (*Result, error)
}
