// Package timezone maps whole-hour UTC offsets to display labels and
// fixed-offset locations. Daylight saving is not modelled.
package timezone

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Supported offset range in hours, inclusive.
const (
	MinOffset = -12
	MaxOffset = 12
)

// ErrInvalidOffset is returned for offsets outside [MinOffset, MaxOffset].
var ErrInvalidOffset = errors.New("unsupported UTC offset")

// labels is read-only after package init. Exposed only through Label.
var labels = map[int]string{
	-12: "UTC-12:00 Baker/Howland Island",
	-11: "UTC-11:00 Samoa Time Zone",
	-10: "UTC-10:00 Hawaii-Aleutian Standard Time",
	-9:  "UTC-09:00 Alaska Standard Time",
	-8:  "UTC-08:00 Pacific Standard Time / Alaska Daylight Time",
	-7:  "UTC-07:00 Mountain Standard Time / Pacific Daylight Time",
	-6:  "UTC-06:00 Central Standard Time / Mountain Daylight Time",
	-5:  "UTC-05:00 Eastern Standard Time / Central Daylight Time",
	-4:  "UTC-04:00 Atlantic Standard Time / Eastern Daylight Time",
	-3:  "UTC-03:00 Argentina Time / Atlantic Daylight Time",
	-2:  "UTC-02:00 South Georgia and the South Sandwich Islands",
	-1:  "UTC-01:00 Azores Time",
	0:   "UTC or GMT",
	1:   "UTC+01:00 Central European Time / Western European Summer Time",
	2:   "UTC+02:00 Eastern European Time / Central European Summer Time",
	3:   "UTC+03:00 Moscow Time / Eastern European Summer Time",
	4:   "UTC+04:00 Gulf Standard Time / Moscow Daylight Time",
	5:   "UTC+05:00 Pakistan Standard Time",
	6:   "UTC+06:00 Bangladesh Standard Time",
	7:   "UTC+07:00 Indochina Time",
	8:   "UTC+08:00 China Standard Time",
	9:   "UTC+09:00 Japan Standard Time",
	10:  "UTC+10:00 Australian Eastern Standard Time",
	11:  "UTC+11:00 Solomon Islands Time",
	12:  "UTC+12:00 Fiji Time",
}

// Zone is one row of the offset table.
type Zone struct {
	Offset int    `json:"offset" yaml:"offset"`
	Label  string `json:"label" yaml:"label"`
}

// Validate returns ErrInvalidOffset if the offset has no table entry.
func Validate(offset int) error {
	if offset < MinOffset || offset > MaxOffset {
		return fmt.Errorf("%w: %d (supported range %d..%d)", ErrInvalidOffset, offset, MinOffset, MaxOffset)
	}
	return nil
}

// Label returns the human-readable name for a UTC offset in hours.
func Label(offset int) (string, error) {
	if err := Validate(offset); err != nil {
		return "", err
	}
	return labels[offset], nil
}

// Location returns a fixed-offset location for the given whole-hour offset.
func Location(offset int) (*time.Location, error) {
	if err := Validate(offset); err != nil {
		return nil, err
	}
	return time.FixedZone(Name(offset), offset*3600), nil
}

// Name returns the short zone abbreviation used for fixed-offset locations,
// e.g. "UTC", "UTC+8", "UTC-5".
func Name(offset int) string {
	if offset == 0 {
		return "UTC"
	}
	return fmt.Sprintf("UTC%+d", offset)
}

// Zones returns every table row ordered by offset.
func Zones() []Zone {
	zones := make([]Zone, 0, len(labels))
	for off, label := range labels {
		zones = append(zones, Zone{Offset: off, Label: label})
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].Offset < zones[j].Offset })
	return zones
}

// Offsets returns every supported offset in ascending order.
func Offsets() []int {
	offsets := make([]int, 0, MaxOffset-MinOffset+1)
	for off := MinOffset; off <= MaxOffset; off++ {
		offsets = append(offsets, off)
	}
	return offsets
}
