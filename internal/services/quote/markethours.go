package quote

import "time"

// IST is Indian Standard Time (UTC+5:30, no DST).
var IST = time.FixedZone("IST", 5*3600+30*60)

// NSE trading session in IST
const (
	OpenHour    = 9
	OpenMinute  = 15
	CloseHour   = 15
	CloseMinute = 30
)

// IsNSEMarketHours returns true if t falls within NSE/BSE trading hours:
// 09:15 to 15:30 IST, Monday to Friday. Exchange holidays are not modelled.
func IsNSEMarketHours(t time.Time) bool {
	ist := t.In(IST)
	wd := ist.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	minuteOfDay := ist.Hour()*60 + ist.Minute()
	return minuteOfDay >= OpenHour*60+OpenMinute && minuteOfDay <= CloseHour*60+CloseMinute
}
