package calculator

import "strings"

const (
	// defaultChain is assumed when no alias matches the customer name and is
	// the fallback part-number table for unconfigured chains.
	defaultChain = "7-Eleven"

	meterElectronic = "Electronic"

	standardBoxSize = 12
	defBoxSize      = 6
)

// Filter types classify which part-number column applies to a fuel grade.
const (
	filterTypeGas            = "gas"
	filterTypeDiesel         = "diesel"
	filterTypeDieselHighFlow = "diesel_high_flow"
	filterTypeDEF            = "def"
	filterTypeOther          = "other"
)

// Warning types and severities. Severity values are preserved from upstream
// reporting; higher means more severe.
const (
	warningMultiDay     = "multi_day"
	warningUnknownGrade = "unknown_grade"
	warningMissingData  = "missing_data"
	warningNoFilter     = "no_filter_required"

	severityInfo        = 2
	severityDataQuality = 5
	severityMissingData = 6
)

// chainAliases maps free-text customer names onto a canonical chain via
// case-insensitive substring matching. Upstream customer names are
// inconsistent ("7-Eleven Store #1234", "711 #554"), so exact matching is
// deliberately not used here.
type chainAliases struct {
	chain   string
	aliases []string
}

var chainMappings = []chainAliases{
	{chain: "7-Eleven", aliases: []string{"7-eleven", "7 eleven", "7-11", "711", "sei"}},
	{chain: "Speedway", aliases: []string{"speedway"}},
	{chain: "Marathon", aliases: []string{"marathon"}},
	{chain: "Wawa", aliases: []string{"wawa"}},
	{chain: "Circle K", aliases: []string{"circle k", "circlek"}},
}

// chainForCustomer resolves the retail chain from the work order's customer
// name, defaulting to 7-Eleven when nothing matches.
func chainForCustomer(customerName string) string {
	name := strings.ToLower(customerName)
	for _, m := range chainMappings {
		for _, alias := range m.aliases {
			if strings.Contains(name, alias) {
				return m.chain
			}
		}
	}
	return defaultChain
}

// filterConfig holds the part numbers stocked for one chain. An empty string
// means the chain has no serviced filter for that combination, which is a
// business decision rather than missing configuration.
type filterConfig struct {
	gas            map[string]string
	diesel         string
	dieselHighFlow string
	def            string
}

var filterConfigs = map[string]filterConfig{
	"7-Eleven": {
		gas:            map[string]string{"Electronic": "400MB-10", "HD Meter": "450MB-10"},
		diesel:         "400HS-10",
		dieselHighFlow: "800HS-30",
	},
	"Speedway": {
		gas:            map[string]string{"Electronic": "400MB-10", "HD Meter": "450MB-10"},
		diesel:         "400HS-10",
		dieselHighFlow: "800HS-30",
	},
	"Marathon": {
		gas:            map[string]string{"Electronic": "300MB-10", "HD Meter": "300MB-10"},
		diesel:         "300HS-10",
		dieselHighFlow: "800HS-30",
	},
	"Wawa": {
		gas:            map[string]string{"Electronic": "400MB-10", "HD Meter": "450MB-10", "Ecometer": "475MB-10"},
		diesel:         "400HS-10",
		dieselHighFlow: "800HS-30",
		def:            "800-DEF6",
	},
	"Circle K": {
		gas:    map[string]string{"Electronic": "40510A"},
		diesel: "40530W",
	},
}

// configForChain returns the chain's part table, falling back to the
// 7-Eleven table for unconfigured chains.
func configForChain(chain string) filterConfig {
	if cfg, ok := filterConfigs[chain]; ok {
		return cfg
	}
	return filterConfigs[defaultChain]
}

// gasPartForMeter picks the gas part for a meter type, falling back to the
// chain's Electronic entry when the specific meter type is not stocked.
func gasPartForMeter(cfg filterConfig, meterType string) string {
	if part, ok := cfg.gas[meterType]; ok {
		return part
	}
	return cfg.gas[meterElectronic]
}

// Grade classification. A grade containing an alwaysFilterGrades substring
// always receives a filter; neverFilterGrades is checked second and always
// excludes. Premium is handled separately: it is filtered unless a higher
// grade (super/ultra/supreme) sits on the same dispenser.
var (
	alwaysFilterGrades = []string{
		"regular", "diesel", "super", "ultra", "supreme",
		"ethanol-free", "e-85", "kerosene", "def",
	}
	neverFilterGrades        = []string{"plus", "midgrade", "mid-grade", "mid grade"}
	premiumSupersedingGrades = []string{"super", "ultra", "supreme"}
	highFlowMarkers          = []string{"high flow", "hi flow", "hi-flow", "high-flow"}
)

func containsAny(name string, substrings []string) bool {
	for _, s := range substrings {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}

// servicePolicy describes how a service code affects filter counting.
// Unlisted codes require filters and do not scope dispensers.
type servicePolicy struct {
	requiresFilters   bool
	parseInstructions bool
}

var serviceCodePolicies = map[string]servicePolicy{
	"2861": {requiresFilters: true},
	"2862": {requiresFilters: true, parseInstructions: true},
	"3002": {requiresFilters: true},
	"3146": {requiresFilters: true},
}

// defNotStockedChains are chains where DEF is dispensed but its filter is
// not serviced by us; dropping the grade there deserves an explanation
// rather than silence.
var defNotStockedChains = map[string]struct{}{
	"7-Eleven": {},
	"Speedway": {},
	"Marathon": {},
	"Circle K": {},
}

var partFilterTypes = map[string]string{
	"400MB-10": filterTypeGas,
	"450MB-10": filterTypeGas,
	"475MB-10": filterTypeGas,
	"300MB-10": filterTypeGas,
	"40510A":   filterTypeGas,
	"400HS-10": filterTypeDiesel,
	"300HS-10": filterTypeDiesel,
	"40530W":   filterTypeDiesel,
	"800HS-30": filterTypeDieselHighFlow,
	"800-DEF6": filterTypeDEF,
}

var partDescriptions = map[string]string{
	"400MB-10": "10 micron gasoline spin-on",
	"450MB-10": "10 micron gasoline spin-on, HD meter",
	"475MB-10": "10 micron gasoline spin-on, Ecometer",
	"300MB-10": "10 micron gasoline spin-on, 300 series",
	"40510A":   "10 micron gasoline spin-on, Circle K",
	"400HS-10": "10 micron diesel spin-on",
	"300HS-10": "10 micron diesel spin-on, 300 series",
	"40530W":   "30 micron diesel spin-on, Circle K",
	"800HS-30": "30 micron high-flow diesel spin-on",
	"800-DEF6": "DEF dispenser filter",
}

// filterTypeForPart classifies a part number for summary rows and box
// sizing; unknown parts fall back to "other".
func filterTypeForPart(partNumber string) string {
	if ft, ok := partFilterTypes[partNumber]; ok {
		return ft
	}
	return filterTypeOther
}

// partDescription returns the catalog description for a part number.
func partDescription(partNumber string) string {
	if desc, ok := partDescriptions[partNumber]; ok {
		return desc
	}
	return "Replacement filter"
}
