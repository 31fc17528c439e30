package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// groups: years, months, weeks, days, hours, minutes, seconds
var iso8601DurationRegexp = regexp.MustCompile(`^P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

func NewISO8601Duration(v string) (ISO8601Duration, error) {
	if v == "" {
		return ISO8601Duration(v), nil
	}

	if v == "P" || v[len(v)-1] == 'T' || !iso8601DurationRegexp.MatchString(v) {
		return "", fmt.Errorf("failed to parse ISO 8601 duration %s", v)
	}

	return ISO8601Duration(v), nil
}

// ISO8601Duration is a duration in ISO 8601 format, used by timer events.
// The zero value has a duration of 0 seconds.
//
// see https://en.wikipedia.org/wiki/ISO_8601#Durations
type ISO8601Duration string

// Calculate adds the duration to t. Date components are added as calendar units, time components as exact durations.
func (d ISO8601Duration) Calculate(t time.Time) time.Time {
	m := iso8601DurationRegexp.FindStringSubmatch(string(d))
	if m == nil {
		return t
	}

	n := func(i int) int {
		v, _ := strconv.Atoi(m[i])
		return v
	}

	t = t.AddDate(n(1), n(2), n(3)*7+n(4))
	return t.Add(time.Duration(n(5))*time.Hour + time.Duration(n(6))*time.Minute + time.Duration(n(7))*time.Second)
}

func (d ISO8601Duration) IsZero() bool {
	return d == ""
}

func (d ISO8601Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(d))
}

func (d ISO8601Duration) String() string {
	return string(d)
}

func (d *ISO8601Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid ISO 8601 duration data %s", data)
	}

	v, err := NewISO8601Duration(s)
	if err != nil {
		return err
	}

	*d = v
	return nil
}
