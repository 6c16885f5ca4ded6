package calendar

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"
)

type Holiday struct {
	Date civil.Date `json:"date"`
	Name string     `json:"name"`
}

var fixedHolidays = []struct {
	month time.Month
	day   int
	name  string
	since int
}{
	{time.January, 1, "Confraternização Universal", 0},
	{time.April, 21, "Tiradentes", 0},
	{time.May, 1, "Dia do Trabalho", 0},
	{time.September, 7, "Independência do Brasil", 0},
	{time.October, 12, "Nossa Senhora Aparecida", 0},
	{time.November, 2, "Finados", 0},
	{time.November, 15, "Proclamação da República", 0},
	{time.November, 20, "Dia Nacional de Zumbi e da Consciência Negra", 2024},
	{time.December, 25, "Natal", 0},
}

// Offsets in days from Easter Sunday.
var movableHolidays = []struct {
	offset int
	name   string
}{
	{-48, "Carnaval"},
	{-47, "Carnaval"},
	{-2, "Sexta-feira Santa"},
	{0, "Páscoa"},
	{60, "Corpus Christi"},
}

// HolidaysForYear returns the national holiday table for year, sorted by date.
func HolidaysForYear(year int) []Holiday {
	out := make([]Holiday, 0, len(fixedHolidays)+len(movableHolidays))
	for _, h := range fixedHolidays {
		if year < h.since {
			continue
		}
		out = append(out, Holiday{Date: civil.Date{Year: year, Month: h.month, Day: h.day}, Name: h.name})
	}
	easter := EasterSunday(year)
	for _, h := range movableHolidays {
		out = append(out, Holiday{Date: easter.AddDays(h.offset), Name: h.name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// HolidayOn is advisory only; callers render it as a marker.
func HolidayOn(d civil.Date) (Holiday, bool) {
	for _, h := range HolidaysForYear(d.Year) {
		if h.Date == d {
			return h, true
		}
	}
	return Holiday{}, false
}

// EasterSunday uses the anonymous Gregorian algorithm.
func EasterSunday(year int) civil.Date {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return civil.Date{Year: year, Month: time.Month(month), Day: day}
}
