package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
}

// force the timezone to be New York because academic terms, roster
// snapshots and attendance sessions are all defined in campus local time,
// servers running elsewhere would skew <time.Time>.Year()/Month()/Day() math
func Now() time.Time {
	return time.Now().In(Location)
}
