package model

import (
	"sort"
	"time"
)

// WeekdaySet is a bitmask of working weekdays, bit 0 for Sunday.
type WeekdaySet uint8

func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		if d >= time.Sunday && d <= time.Saturday {
			s |= 1 << uint(d)
		}
	}
	return s
}

// WeekdaySetFromInts ignores values outside 0-6.
func WeekdaySetFromInts(days []int) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		if d >= 0 && d <= 6 {
			s |= 1 << uint(d)
		}
	}
	return s
}

func (s WeekdaySet) Has(d time.Weekday) bool { return s&(1<<uint(d)) != 0 }
func (s WeekdaySet) Empty() bool             { return s&0x7f == 0 }

func (s WeekdaySet) Ints() []int {
	out := make([]int, 0, 7)
	for d := 0; d < 7; d++ {
		if s&(1<<uint(d)) != 0 {
			out = append(out, d)
		}
	}
	return out
}

type WorkingHours struct {
	Start       Clock
	End         Clock
	SlotMinutes int
	WorkingDays WeekdaySet
}

// FallbackWorkingHours is used whenever a professional has no usable configuration.
func FallbackWorkingHours() WorkingHours {
	return WorkingHours{
		Start:       NewClock(8, 0),
		End:         NewClock(18, 0),
		SlotMinutes: 30,
		WorkingDays: NewWeekdaySet(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday),
	}
}

var DefaultLeadHours = []int{24}

// NormalizeLeadHours drops non-positive and duplicate values and sorts descending.
// An empty result falls back to DefaultLeadHours.
func NormalizeLeadHours(hours []int) []int {
	seen := make(map[int]struct{}, len(hours))
	out := make([]int, 0, len(hours))
	for _, h := range hours {
		if h <= 0 {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	if len(out) == 0 {
		return append([]int(nil), DefaultLeadHours...)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}
