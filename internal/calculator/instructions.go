package calculator

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Instruction text references dispensers in a handful of recurring shapes:
// "dispenser #4", "disp 2", "pump 7", "dispensers 1-4", "dispensers 3, 5".
// The comma pattern captures exactly two numbers; longer comma lists are only
// picked up if another pattern happens to match them. That matches how the
// portal's technicians have been writing instructions so far.
var (
	dispenserRefPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)dispenser\s*#?\s*(\d+)`),
		regexp.MustCompile(`(?i)disp\s*#?\s*(\d+)`),
		regexp.MustCompile(`(?i)pump\s*#?\s*(\d+)`),
	}
	dispenserRangePattern = regexp.MustCompile(`(?i)dispensers?\s*(\d+)\s*-\s*(\d+)`)
	dispenserPairPattern  = regexp.MustCompile(`(?i)dispensers?\s*(\d+)\s*,\s*(\d+)`)
)

// ParseDispenserReferences extracts the set of dispenser numbers mentioned in
// free-text work order instructions. It returns nil when the text is empty or
// names no dispensers, in which case all store dispensers stay eligible.
func ParseDispenserReferences(instructions string) []string {
	if strings.TrimSpace(instructions) == "" {
		return nil
	}

	seen := make(map[string]struct{})
	add := func(number string) {
		seen[number] = struct{}{}
	}

	for _, re := range dispenserRefPatterns {
		for _, m := range re.FindAllStringSubmatch(instructions, -1) {
			add(m[1])
		}
	}
	for _, m := range dispenserRangePattern.FindAllStringSubmatch(instructions, -1) {
		start, errStart := strconv.Atoi(m[1])
		end, errEnd := strconv.Atoi(m[2])
		if errStart != nil || errEnd != nil || start > end {
			continue
		}
		for n := start; n <= end; n++ {
			add(strconv.Itoa(n))
		}
	}
	for _, m := range dispenserPairPattern.FindAllStringSubmatch(instructions, -1) {
		add(m[1])
		add(m[2])
	}

	if len(seen) == 0 {
		return nil
	}

	refs := make([]string, 0, len(seen))
	for number := range seen {
		refs = append(refs, number)
	}
	sort.Slice(refs, func(i, j int) bool {
		a, _ := strconv.Atoi(refs[i])
		b, _ := strconv.Atoi(refs[j])
		if a != b {
			return a < b
		}
		return refs[i] < refs[j]
	})
	return refs
}
