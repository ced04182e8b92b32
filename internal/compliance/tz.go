package compliance

import "strings"

// nanpZones maps NANP area codes to an IANA zone. The table covers common
// US area codes; unknown codes fall back to the campaign zone supplied by
// the caller. Area codes spanning two zones use the more restrictive
// (earlier) one so evening calls are never placed too late.
var nanpZones = map[string]string{
	"212": "America/New_York", "332": "America/New_York", "646": "America/New_York",
	"718": "America/New_York", "917": "America/New_York", "516": "America/New_York",
	"631": "America/New_York", "201": "America/New_York", "973": "America/New_York",
	"215": "America/New_York", "267": "America/New_York", "305": "America/New_York",
	"786": "America/New_York", "404": "America/New_York", "678": "America/New_York",
	"617": "America/New_York", "857": "America/New_York", "202": "America/New_York",
	"412": "America/New_York", "704": "America/New_York", "813": "America/New_York",
	"407": "America/New_York", "216": "America/New_York", "614": "America/New_York",

	"312": "America/Chicago", "773": "America/Chicago", "872": "America/Chicago",
	"214": "America/Chicago", "469": "America/Chicago", "972": "America/Chicago",
	"713": "America/Chicago", "281": "America/Chicago", "832": "America/Chicago",
	"210": "America/Chicago", "512": "America/Chicago", "612": "America/Chicago",
	"414": "America/Chicago", "615": "America/Chicago", "901": "America/Chicago",
	"504": "America/Chicago", "816": "America/Chicago", "314": "America/Chicago",

	"303": "America/Denver", "720": "America/Denver", "602": "America/Phoenix",
	"480": "America/Phoenix", "623": "America/Phoenix", "801": "America/Denver",
	"505": "America/Denver",

	"213": "America/Los_Angeles", "310": "America/Los_Angeles", "323": "America/Los_Angeles",
	"408": "America/Los_Angeles", "415": "America/Los_Angeles", "510": "America/Los_Angeles",
	"619": "America/Los_Angeles", "626": "America/Los_Angeles", "650": "America/Los_Angeles",
	"818": "America/Los_Angeles", "206": "America/Los_Angeles", "425": "America/Los_Angeles",
	"503": "America/Los_Angeles", "702": "America/Los_Angeles", "775": "America/Los_Angeles",

	"808": "Pacific/Honolulu", "907": "America/Anchorage",
}

// ZoneForNumber infers the callee's time zone. Preference order: the lead's
// stored zone, the NANP area code, then the campaign zone.
func ZoneForNumber(phoneNumber, leadZone, campaignZone string) string {
	if leadZone != "" {
		return leadZone
	}
	if ac := areaCode(phoneNumber); ac != "" {
		if zone, ok := nanpZones[ac]; ok {
			return zone
		}
	}
	if campaignZone != "" {
		return campaignZone
	}
	return "UTC"
}

func areaCode(phoneNumber string) string {
	n := strings.TrimPrefix(phoneNumber, "+")
	if strings.HasPrefix(n, "1") && len(n) == 11 {
		return n[1:4]
	}
	return ""
}
