// Package chrono provides the timezone label registry and the local-time
// hourly calendar synthesis used by the alignment pipeline.
package chrono

import (
	"time"

	exception "github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
)

// Timezone labels. Standard zones are fixed offsets with no daylight
// saving; prevailing zones follow the corresponding IANA US zone and do
// observe it. Both the long name and the short code parse.
const (
	LabelUTC                      = "UTC"
	LabelHawaiiAleutianStandard   = "HawaiiAleutianStandard"
	LabelAlaskaStandard           = "AlaskaStandard"
	LabelAlaskaPrevailingStandard = "AlaskaPrevailingStandard"
	LabelPacificStandard          = "PacificStandard"
	LabelPacificPrevailing        = "PacificPrevailing"
	LabelMountainStandard         = "MountainStandard"
	LabelMountainPrevailing       = "MountainPrevailing"
	LabelCentralStandard          = "CentralStandard"
	LabelCentralPrevailing        = "CentralPrevailing"
	LabelEasternStandard          = "EasternStandard"
	LabelEasternPrevailing        = "EasternPrevailing"
)

// zoneEntry resolves a label to a concrete location. Exactly one of
// fixedOffset/ianaName is meaningful, selected by fixed.
type zoneEntry struct {
	canonical   string
	fixed       bool
	fixedAbbr   string
	fixedOffset int // hours east of UTC
	ianaName    string
}

// zoneTable maps every accepted spelling (long name and short code) to its
// entry.
var zoneTable = map[string]zoneEntry{
	LabelUTC: {canonical: LabelUTC, fixed: true, fixedAbbr: "UTC", fixedOffset: 0},

	LabelHawaiiAleutianStandard: {canonical: LabelHawaiiAleutianStandard, fixed: true, fixedAbbr: "HST", fixedOffset: -10},
	"HST":                       {canonical: LabelHawaiiAleutianStandard, fixed: true, fixedAbbr: "HST", fixedOffset: -10},

	LabelAlaskaStandard: {canonical: LabelAlaskaStandard, fixed: true, fixedAbbr: "AST", fixedOffset: -9},
	"AST":               {canonical: LabelAlaskaStandard, fixed: true, fixedAbbr: "AST", fixedOffset: -9},

	LabelAlaskaPrevailingStandard: {canonical: LabelAlaskaPrevailingStandard, ianaName: "America/Anchorage"},
	"APT":                         {canonical: LabelAlaskaPrevailingStandard, ianaName: "America/Anchorage"},

	LabelPacificStandard: {canonical: LabelPacificStandard, fixed: true, fixedAbbr: "PST", fixedOffset: -8},
	"PST":                {canonical: LabelPacificStandard, fixed: true, fixedAbbr: "PST", fixedOffset: -8},

	LabelPacificPrevailing: {canonical: LabelPacificPrevailing, ianaName: "America/Los_Angeles"},
	"PPT":                  {canonical: LabelPacificPrevailing, ianaName: "America/Los_Angeles"},

	LabelMountainStandard: {canonical: LabelMountainStandard, fixed: true, fixedAbbr: "MST", fixedOffset: -7},
	"MST":                 {canonical: LabelMountainStandard, fixed: true, fixedAbbr: "MST", fixedOffset: -7},

	LabelMountainPrevailing: {canonical: LabelMountainPrevailing, ianaName: "America/Denver"},
	"MPT":                   {canonical: LabelMountainPrevailing, ianaName: "America/Denver"},

	LabelCentralStandard: {canonical: LabelCentralStandard, fixed: true, fixedAbbr: "CST", fixedOffset: -6},
	"CST":                {canonical: LabelCentralStandard, fixed: true, fixedAbbr: "CST", fixedOffset: -6},

	LabelCentralPrevailing: {canonical: LabelCentralPrevailing, ianaName: "America/Chicago"},
	"CPT":                  {canonical: LabelCentralPrevailing, ianaName: "America/Chicago"},

	LabelEasternStandard: {canonical: LabelEasternStandard, fixed: true, fixedAbbr: "EST", fixedOffset: -5},
	"EST":                {canonical: LabelEasternStandard, fixed: true, fixedAbbr: "EST", fixedOffset: -5},

	LabelEasternPrevailing: {canonical: LabelEasternPrevailing, ianaName: "America/New_York"},
	"EPT":                  {canonical: LabelEasternPrevailing, ianaName: "America/New_York"},
}

// ResolveZone resolves a timezone label (long name or short code) to a
// time.Location. The special label "LOCAL" is recognized but rejected:
// calendar synthesis has no meaningful host-local interpretation. Unknown
// labels and LOCAL are configuration errors.
func ResolveZone(label string) (*time.Location, error) {
	if label == "LOCAL" || label == "Local" {
		return nil, exception.NewConfigErrorf("chrono", "timezone label %q is not supported for calendar synthesis", label)
	}
	entry, ok := zoneTable[label]
	if !ok {
		return nil, exception.NewConfigErrorf("chrono", "unknown timezone label %q", label)
	}
	if entry.fixed {
		return time.FixedZone(entry.fixedAbbr, entry.fixedOffset*3600), nil
	}
	loc, err := time.LoadLocation(entry.ianaName)
	if err != nil {
		return nil, exception.NewConfigErrorf("chrono", "failed to load IANA zone %q for label %q", entry.ianaName, label, err)
	}
	return loc, nil
}

// CanonicalLabel returns the long name for any accepted spelling, or false
// for an unknown label.
func CanonicalLabel(label string) (string, bool) {
	entry, ok := zoneTable[label]
	if !ok {
		return "", false
	}
	return entry.canonical, true
}
