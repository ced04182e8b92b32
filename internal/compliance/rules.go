package compliance

// jurisdictionRule captures state-level restrictions stricter than the
// federal baseline: a narrower calling window, banned days, and content
// rules that produce recommendations rather than blocks.
type jurisdictionRule struct {
	StartMinute int // local minutes since midnight; 0 means no override
	EndMinute   int
	NoSunday    bool

	ConsentRequired bool
	NoPrerecorded   bool
	Label           string
}

// Base permitted window: 08:00 to 21:00 local, every day. Jurisdiction rules
// can only narrow it, never widen it.
const (
	baseStartMinute = 8 * 60
	baseEndMinute   = 21 * 60
)

// zoneRules keys on the IANA zone inferred for the callee.
var zoneRules = map[string]jurisdictionRule{
	// Several southern states end telemarketing hours at 20:00 and
	// require prior express consent for automated voice calls.
	"America/Chicago": {EndMinute: 20 * 60, NoPrerecorded: true, Label: "central 8pm cutoff"},
	// Utah and parts of the mountain region prohibit Sunday solicitation.
	"America/Denver": {NoSunday: true, ConsentRequired: true, Label: "mountain no-sunday"},
}

// windowFor returns the effective permitted window for a zone: the base
// window intersected with any jurisdiction override.
func windowFor(zone string) (startMinute, endMinute int, noSunday bool) {
	startMinute, endMinute = baseStartMinute, baseEndMinute
	rule, ok := zoneRules[zone]
	if !ok {
		return startMinute, endMinute, false
	}
	if rule.StartMinute > startMinute {
		startMinute = rule.StartMinute
	}
	if rule.EndMinute > 0 && rule.EndMinute < endMinute {
		endMinute = rule.EndMinute
	}
	return startMinute, endMinute, rule.NoSunday
}

// contentRuleFor returns the zone's content rule, if any.
func contentRuleFor(zone string) (jurisdictionRule, bool) {
	rule, ok := zoneRules[zone]
	if !ok || (!rule.ConsentRequired && !rule.NoPrerecorded) {
		return jurisdictionRule{}, false
	}
	return rule, true
}
