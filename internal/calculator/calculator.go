package calculator

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type engine struct {
	clock func() time.Time
}

// Option configures engine behaviour.
type Option func(*engine)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *engine) {
		e.clock = clock
	}
}

// New creates a Calculator. The engine holds no mutable state; all
// per-call accumulation lives in a run value local to Calculate, so a single
// instance is safe for concurrent use.
func New(opts ...Option) Calculator {
	e := &engine{
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run accumulates output for one Calculate invocation.
type run struct {
	clock    func() time.Time
	warnings []Warning
	details  []JobDetail
	totals   map[string]*partTotal
	order    []string
}

type partTotal struct {
	quantity int
	stores   map[string]struct{}
}

func (e *engine) Calculate(workOrders []WorkOrder, dispensers []Dispenser, overrides Overrides) (*Result, error) {
	if err := validateInputs(workOrders, dispensers); err != nil {
		return nil, err
	}

	r := &run{
		clock:    e.clock,
		warnings: []Warning{},
		details:  []JobDetail{},
		totals:   make(map[string]*partTotal),
	}

	byStore := groupDispensers(dispensers)
	for i := range workOrders {
		r.processWorkOrder(workOrders[i], byStore, overrides)
	}

	summary := r.buildSummary()

	totalFilters, totalBoxes := 0, 0
	for _, row := range summary {
		totalFilters += row.Quantity
		totalBoxes += row.Boxes
	}

	stores := make(map[string]struct{}, len(workOrders))
	for _, wo := range workOrders {
		stores[wo.StoreNumber] = struct{}{}
	}

	return &Result{
		Summary:      summary,
		Details:      r.details,
		Warnings:     r.warnings,
		TotalFilters: totalFilters,
		TotalBoxes:   totalBoxes,
		Metadata: Metadata{
			CalculatedAt: e.clock(),
			JobCount:     len(workOrders),
			StoreCount:   len(stores),
		},
	}, nil
}

// validateInputs rejects records missing their identity fields up front; a
// silent zero would otherwise join work orders to nothing and report a clean
// result.
func validateInputs(workOrders []WorkOrder, dispensers []Dispenser) error {
	for i, wo := range workOrders {
		if strings.TrimSpace(wo.JobID) == "" {
			return fmt.Errorf("work order %d: %w", i, ErrMissingJobID)
		}
		if strings.TrimSpace(wo.StoreNumber) == "" {
			return fmt.Errorf("work order %d (job %s): %w", i, wo.JobID, ErrMissingStoreNumber)
		}
	}
	for i, d := range dispensers {
		if strings.TrimSpace(d.StoreNumber) == "" {
			return fmt.Errorf("dispenser %d: %w", i, ErrMissingStoreNumber)
		}
	}
	return nil
}

// groupDispensers indexes dispensers by store number, preserving the input
// order within each store.
func groupDispensers(dispensers []Dispenser) map[string][]Dispenser {
	byStore := make(map[string][]Dispenser)
	for _, d := range dispensers {
		byStore[d.StoreNumber] = append(byStore[d.StoreNumber], d)
	}
	return byStore
}

// partCounts tracks per-job filter quantities in first-seen order so the
// batch summary has a deterministic tie-break.
type partCounts struct {
	counts map[string]int
	order  []string
}

func newPartCounts() *partCounts {
	return &partCounts{counts: make(map[string]int)}
}

func (p *partCounts) add(partNumber string, n int) {
	if _, ok := p.counts[partNumber]; !ok {
		p.order = append(p.order, partNumber)
	}
	p.counts[partNumber] += n
}

func (r *run) processWorkOrder(wo WorkOrder, byStore map[string][]Dispenser, overrides Overrides) {
	policy, ok := serviceCodePolicies[wo.ServiceCode]
	if !ok {
		policy = servicePolicy{requiresFilters: true}
	}

	chain := chainForCustomer(wo.CustomerName)

	// Filters are counted on day 1 of a multi-day job only. This check must
	// run before any dispenser is inspected.
	if wo.IsMultiDay && wo.DayNumber > 1 {
		r.warn(warningMultiDay, severityInfo,
			fmt.Sprintf("Job %s is day %d of a multi-day visit; filters were counted on day 1", wo.JobID, wo.DayNumber),
			[]string{wo.JobID}, nil)
		r.appendDetail(wo, chain, newPartCounts(), 0, false)
		return
	}

	storeDispensers := byStore[wo.StoreNumber]

	if policy.parseInstructions && strings.TrimSpace(wo.Instructions) != "" {
		if refs := ParseDispenserReferences(wo.Instructions); len(refs) > 0 {
			wanted := make(map[string]struct{}, len(refs))
			for _, n := range refs {
				wanted[n] = struct{}{}
			}
			scoped := make([]Dispenser, 0, len(storeDispensers))
			for _, d := range storeDispensers {
				if _, ok := wanted[d.DispenserNumber]; ok {
					scoped = append(scoped, d)
				}
			}
			storeDispensers = scoped
		}
	}

	jobFilters := newPartCounts()
	if policy.requiresFilters {
		if len(storeDispensers) == 0 {
			r.warn(warningMissingData, severityMissingData,
				fmt.Sprintf("No dispenser data for store %s; filters for job %s could not be calculated", wo.StoreNumber, wo.JobID),
				[]string{wo.JobID},
				[]string{
					"Scrape dispenser data for store " + wo.StoreNumber,
					"Verify the store number on the work order",
				})
		} else {
			for _, d := range storeDispensers {
				r.dispenserFilters(d, chain, wo.JobID, jobFilters)
			}
		}
	}

	edited := false
	for _, part := range jobFilters.order {
		if qty, ok := overrides[wo.JobID+"-"+part]; ok {
			jobFilters.counts[part] = qty
			edited = true
		}
	}

	r.appendDetail(wo, chain, jobFilters, len(storeDispensers), edited)

	for _, part := range jobFilters.order {
		total, ok := r.totals[part]
		if !ok {
			total = &partTotal{stores: make(map[string]struct{})}
			r.totals[part] = total
			r.order = append(r.order, part)
		}
		total.quantity += jobFilters.counts[part]
		total.stores[wo.StoreNumber] = struct{}{}
	}
}

// dispenserFilters evaluates every fuel grade on one dispenser independently
// and accumulates one filter unit per qualifying grade.
func (r *run) dispenserFilters(d Dispenser, chain, jobID string, acc *partCounts) {
	gradeNames := make([]string, len(d.FuelGrades))
	for i, g := range d.FuelGrades {
		gradeNames[i] = g.Grade
	}

	for i, g := range d.FuelGrades {
		if !r.shouldFilterGrade(g.Grade, i, gradeNames, jobID) {
			continue
		}
		ft := filterTypeForGrade(g.Grade)
		part := partNumberFor(chain, ft, d.MeterType)
		if part == "" {
			r.explainMissingPart(chain, ft, jobID)
			continue
		}
		acc.add(part, 1)
	}
}

// shouldFilterGrade decides whether a fuel grade receives a filter. Unknown
// grades fail safe: they are filtered and flagged.
func (r *run) shouldFilterGrade(grade string, index int, gradeNames []string, jobID string) bool {
	name := strings.ToLower(grade)

	if containsAny(name, alwaysFilterGrades) {
		return true
	}
	if containsAny(name, neverFilterGrades) {
		return false
	}
	if strings.Contains(name, "premium") {
		// Premium is filtered unless a higher grade shares the dispenser; the
		// higher grade's filter covers the blend.
		return !higherGradePresent(index, gradeNames)
	}

	r.warn(warningUnknownGrade, severityDataQuality,
		fmt.Sprintf("Unrecognized fuel grade %q on job %s; assuming it needs a filter", grade, jobID),
		[]string{jobID},
		[]string{"Review the dispenser's fuel grade configuration"})
	return true
}

func higherGradePresent(index int, gradeNames []string) bool {
	for i, other := range gradeNames {
		if i == index {
			continue
		}
		if containsAny(strings.ToLower(other), premiumSupersedingGrades) {
			return true
		}
	}
	return false
}

func filterTypeForGrade(grade string) string {
	name := strings.ToLower(grade)
	switch {
	case strings.Contains(name, "def"):
		return filterTypeDEF
	case strings.Contains(name, "diesel") && containsAny(name, highFlowMarkers):
		return filterTypeDieselHighFlow
	case strings.Contains(name, "diesel"):
		return filterTypeDiesel
	default:
		return filterTypeGas
	}
}

func partNumberFor(chain, filterType, meterType string) string {
	cfg := configForChain(chain)
	switch filterType {
	case filterTypeGas:
		return gasPartForMeter(cfg, meterType)
	case filterTypeDiesel:
		return cfg.diesel
	case filterTypeDieselHighFlow:
		return cfg.dieselHighFlow
	case filterTypeDEF:
		return cfg.def
	}
	return ""
}

// explainMissingPart distinguishes "intentionally no filter" from missing
// configuration for the chain/fuel combinations known to have none.
func (r *run) explainMissingPart(chain, filterType, jobID string) {
	switch filterType {
	case filterTypeDEF:
		if _, ok := defNotStockedChains[chain]; ok {
			r.warn(warningNoFilter, severityInfo,
				fmt.Sprintf("%s does not use a serviced DEF filter; none counted for job %s", chain, jobID),
				[]string{jobID}, nil)
		}
	case filterTypeDieselHighFlow:
		if chain == "Circle K" {
			r.warn(warningNoFilter, severityInfo,
				fmt.Sprintf("Circle K does not stock a high-flow diesel filter; none counted for job %s", jobID),
				[]string{jobID}, nil)
		}
	}
}

func (r *run) appendDetail(wo WorkOrder, chain string, filters *partCounts, dispenserCount int, edited bool) {
	r.details = append(r.details, JobDetail{
		JobID:          wo.JobID,
		StoreNumber:    wo.StoreNumber,
		StoreName:      wo.StoreName,
		CustomerName:   wo.CustomerName,
		Chain:          chain,
		ServiceCode:    wo.ServiceCode,
		ServiceName:    wo.ServiceName,
		ScheduledDate:  wo.ScheduledDate,
		Address:        wo.Address,
		DispenserCount: dispenserCount,
		Filters:        filters.counts,
		IsEdited:       edited,
	})
}

func (r *run) warn(typ string, severity int, message string, affectedJobs, suggestions []string) {
	r.warnings = append(r.warnings, Warning{
		ID:           fmt.Sprintf("warn_%d", len(r.warnings)+1),
		Severity:     severity,
		Type:         typ,
		Message:      message,
		AffectedJobs: affectedJobs,
		Suggestions:  suggestions,
		Timestamp:    r.clock(),
	})
}

// buildSummary produces one row per part number sorted by quantity
// descending; ties keep first-seen order. Parts overridden down to zero are
// omitted.
func (r *run) buildSummary() []SummaryRow {
	rows := make([]SummaryRow, 0, len(r.order))
	for _, part := range r.order {
		total := r.totals[part]
		if total.quantity <= 0 {
			continue
		}
		ft := filterTypeForPart(part)
		boxSize := standardBoxSize
		if ft == filterTypeDEF {
			boxSize = defBoxSize
		}
		rows = append(rows, SummaryRow{
			PartNumber:  part,
			Description: partDescription(part),
			Quantity:    total.quantity,
			Boxes:       (total.quantity + boxSize - 1) / boxSize,
			StoreCount:  len(total.stores),
			FilterType:  ft,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Quantity > rows[j].Quantity
	})
	return rows
}
