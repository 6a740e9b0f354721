// Package markethours answers one question for the scheduler: is the NSE
// trading session live right now. Session is 9:15-15:30 IST, Monday to
// Friday, minus exchange holidays.
package markethours

import "time"

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

const (
	openMinuteOfDay  = 9*60 + 15
	closeMinuteOfDay = 15*60 + 30
)

// NSE trading holidays for 2026, ISO dates in IST. Dates past March carry
// the exchange's tentative tag and may shift when the final circular lands.
var holidays = map[string]bool{
	"2026-01-26": true, // Republic Day
	"2026-02-17": true, // Mahashivratri
	"2026-03-14": true, // Holi
	"2026-03-31": true, // Id-ul-Fitr
	"2026-04-02": true, // Ram Navami
	"2026-04-06": true, // Mahavir Jayanti
	"2026-04-10": true, // Good Friday
	"2026-04-14": true, // Dr. Ambedkar Jayanti
	"2026-05-01": true, // Maharashtra Day
	"2026-06-07": true, // Bakrid
	"2026-07-06": true, // Muharram
	"2026-08-15": true, // Independence Day
	"2026-08-16": true, // Janmashtami
	"2026-09-05": true, // Milad-un-Nabi
	"2026-10-02": true, // Gandhi Jayanti
	"2026-10-20": true, // Dussehra
	"2026-10-21": true, // Dussehra
	"2026-11-05": true, // Diwali
	"2026-11-06": true, // Diwali Balipratipada
	"2026-11-07": true, // Bhai Dooj
	"2026-11-19": true, // Guru Nanak Jayanti
	"2026-12-25": true, // Christmas
}

// IsHoliday reports whether the date (in IST) is an NSE holiday.
func IsHoliday(t time.Time) bool {
	return holidays[t.In(IST).Format("2006-01-02")]
}

// IsWeekday reports whether t falls Monday through Friday in IST.
func IsWeekday(t time.Time) bool {
	wd := t.In(IST).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay reports whether the exchange opens at all on t's date.
func IsTradingDay(t time.Time) bool {
	return IsWeekday(t) && !IsHoliday(t)
}

// IsMarketOpen reports whether t falls inside the live session.
func IsMarketOpen(t time.Time) bool {
	if !IsTradingDay(t) {
		return false
	}
	ist := t.In(IST)
	hm := ist.Hour()*60 + ist.Minute()
	return hm >= openMinuteOfDay && hm < closeMinuteOfDay
}

// NextOpen returns the next session open at or after t: today's 9:15 when t
// is earlier on a trading day, otherwise 9:15 on the next trading day.
func NextOpen(t time.Time) time.Time {
	ist := t.In(IST)
	d := ist
	for i := 0; i < 14; i++ {
		open := time.Date(d.Year(), d.Month(), d.Day(), 9, 15, 0, 0, IST)
		if IsTradingDay(d) && ist.Before(open) {
			return open
		}
		d = d.AddDate(0, 0, 1)
		d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, IST)
		ist = d
	}
	// A fortnight with no session would mean a broken holiday table.
	return time.Date(t.In(IST).Year(), t.In(IST).Month(), t.In(IST).Day()+1, 9, 15, 0, 0, IST)
}
