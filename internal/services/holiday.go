package services

import (
	"time"

	"github.com/6tail/lunar-go/HolidayUtil"
	"github.com/6tail/lunar-go/calendar"
	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/at"
	"github.com/rickar/cal/v2/au"
	"github.com/rickar/cal/v2/be"
	"github.com/rickar/cal/v2/br"
	"github.com/rickar/cal/v2/ca"
	"github.com/rickar/cal/v2/ch"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/dk"
	"github.com/rickar/cal/v2/es"
	"github.com/rickar/cal/v2/fi"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/ie"
	"github.com/rickar/cal/v2/it"
	"github.com/rickar/cal/v2/jp"
	"github.com/rickar/cal/v2/nl"
	"github.com/rickar/cal/v2/no"
	"github.com/rickar/cal/v2/nz"
	"github.com/rickar/cal/v2/pl"
	"github.com/rickar/cal/v2/pt"
	"github.com/rickar/cal/v2/se"
	"github.com/rickar/cal/v2/us"
)

const (
	// HolidayNone skips public holidays and treats Saturday and Sunday as the weekend.
	HolidayNone = "NONE"
	// HolidayChina uses the State Council schedule, including make-up workdays.
	HolidayChina = "CN"
)

type CountryInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type region struct {
	code     string
	name     string
	weekend  []time.Weekday
	holidays []*cal.Holiday
}

var fridaySaturday = []time.Weekday{time.Friday, time.Saturday}

// regions lists the business calendars admins can pick for due-date rolling,
// in the order they are offered. Gulf calendars carry only their weekend;
// Hijri-dated holidays move every year and are not modeled.
var regions = []region{
	{code: "OM", name: "Oman (Fri-Sat weekend)", weekend: fridaySaturday},
	{code: "AE", name: "United Arab Emirates"},
	{code: "SA", name: "Saudi Arabia (Fri-Sat weekend)", weekend: fridaySaturday},
	{code: "US", name: "United States", holidays: us.Holidays},
	{code: "GB", name: "United Kingdom", holidays: gb.Holidays},
	{code: "IE", name: "Ireland", holidays: ie.Holidays},
	{code: "DE", name: "Germany", holidays: de.Holidays},
	{code: "FR", name: "France", holidays: fr.Holidays},
	{code: "IT", name: "Italy", holidays: it.Holidays},
	{code: "ES", name: "Spain", holidays: es.Holidays},
	{code: "PT", name: "Portugal", holidays: pt.Holidays},
	{code: "NL", name: "Netherlands", holidays: nl.Holidays},
	{code: "BE", name: "Belgium", holidays: be.Holidays},
	{code: "AT", name: "Austria", holidays: at.Holidays},
	{code: "CH", name: "Switzerland", holidays: ch.Holidays},
	{code: "SE", name: "Sweden", holidays: se.Holidays},
	{code: "NO", name: "Norway", holidays: no.Holidays},
	{code: "DK", name: "Denmark", holidays: dk.Holidays},
	{code: "FI", name: "Finland", holidays: fi.Holidays},
	{code: "PL", name: "Poland", holidays: pl.Holidays},
	{code: "CA", name: "Canada", holidays: ca.Holidays},
	{code: "AU", name: "Australia (NSW)", holidays: au.HolidaysNSW},
	{code: "NZ", name: "New Zealand", holidays: nz.Holidays},
	{code: "JP", name: "Japan", holidays: jp.Holidays},
	{code: "BR", name: "Brazil", holidays: br.Holidays},
}

// HolidayService answers "is this a working day" per country so that due
// dates can be rolled off weekends and public holidays.
type HolidayService struct {
	calendars map[string]*cal.BusinessCalendar
	countries []CountryInfo
}

func NewHolidayService() *HolidayService {
	s := &HolidayService{
		calendars: make(map[string]*cal.BusinessCalendar, len(regions)),
		countries: []CountryInfo{
			{Code: HolidayNone, Name: "Weekdays Only (Mon-Fri)"},
		},
	}
	for _, r := range regions {
		c := cal.NewBusinessCalendar()
		c.Name = r.name
		if r.weekend != nil {
			for d := time.Sunday; d <= time.Saturday; d++ {
				c.SetWorkday(d, true)
			}
			for _, d := range r.weekend {
				c.SetWorkday(d, false)
			}
		}
		c.AddHoliday(r.holidays...)
		s.calendars[r.code] = c
		s.countries = append(s.countries, CountryInfo{Code: r.code, Name: r.name})
	}
	s.countries = append(s.countries, CountryInfo{Code: HolidayChina, Name: "China"})
	return s
}

// IsWorkday reports whether t is a working day in countryCode. Unknown codes
// fall back to a plain Monday to Friday week.
func (s *HolidayService) IsWorkday(t time.Time, countryCode string) bool {
	if countryCode == HolidayChina {
		return isWorkdayChina(t)
	}
	if c, ok := s.calendars[countryCode]; ok {
		return c.IsWorkday(t)
	}
	return !cal.IsWeekend(t)
}

func isWorkdayChina(t time.Time) bool {
	solar := calendar.NewSolarFromDate(t)
	if h := HolidayUtil.GetHolidayByYmd(solar.GetYear(), solar.GetMonth(), solar.GetDay()); h != nil {
		return h.IsWork()
	}
	return !cal.IsWeekend(t)
}

// NextWorkday returns t when it is a workday, otherwise the first workday after it.
func (s *HolidayService) NextWorkday(t time.Time, countryCode string) time.Time {
	for i := 0; i < 366 && !s.IsWorkday(t, countryCode); i++ {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// AddBusinessDays moves forward n workdays from t.
func (s *HolidayService) AddBusinessDays(t time.Time, n int, countryCode string) time.Time {
	for n > 0 {
		t = t.AddDate(0, 0, 1)
		if s.IsWorkday(t, countryCode) {
			n--
		}
	}
	return t
}

func (s *HolidayService) IsSupported(countryCode string) bool {
	if countryCode == HolidayNone || countryCode == HolidayChina {
		return true
	}
	_, ok := s.calendars[countryCode]
	return ok
}

// GetSupportedCountries lists the selectable codes, NONE first.
func (s *HolidayService) GetSupportedCountries() []CountryInfo {
	out := make([]CountryInfo, len(s.countries))
	copy(out, s.countries)
	return out
}
