package lots

import (
	"regexp"
	"strconv"
	"strings"
)

var addressRange = regexp.MustCompile(`^(\d+)\s*-\s*(\d+)\s+(.*)$`)

// AddressesInRange expands a ranged street address such as "1-9 Main St"
// into every other number on the same side of the street: 1, 3, 5, 7 and 9
// Main St. The step is always two, so an even end after an odd start
// rounds up to the next odd number. Addresses that are not ranges come back
// trimmed but otherwise unchanged.
func AddressesInRange(address string) []string {
	address = strings.TrimSpace(address)
	m := addressRange.FindStringSubmatch(address)
	if m == nil {
		return []string{address}
	}
	start, err1 := strconv.Atoi(m[1])
	end, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil || end < start {
		return []string{address}
	}
	out := make([]string, 0, (end-start)/2+2)
	for n := start; n < end+2; n += 2 {
		out = append(out, strconv.Itoa(n)+" "+m[3])
	}
	return out
}
