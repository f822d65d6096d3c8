package model

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron parses a standard five field cron expression or a descriptor
// such as @hourly or @every 90m.
func ParseCron(expr string) (cron.Schedule, error) {
	e := strings.TrimSpace(expr)
	if e == "" {
		return nil, errors.New("empty cron expression")
	}
	schedule, err := cronParser.Parse(e)
	if err != nil {
		return nil, fmt.Errorf("parsing cron expression %q: %w", e, err)
	}
	return schedule, nil
}

var ErrISOFormat = errors.New("invalid ISO8601 duration")

var isoDurationRx = regexp.MustCompile(`^P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:[.,]\d{1,9})?)S)?)?$`)

var isoUnits = [...]time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}

// ParseISODuration parses the time based subset of ISO-8601 durations:
// weeks, days, hours, minutes and (fractional) seconds. Years and months
// have no fixed length and are rejected.
func ParseISODuration(dur string) (time.Duration, error) {
	match := isoDurationRx.FindStringSubmatch(dur)
	if match == nil || dur == "P" || strings.HasSuffix(dur, "T") {
		return 0, ErrISOFormat
	}

	var ret time.Duration
	for i, part := range match[1:] {
		if part == "" {
			continue
		}
		unit := isoUnits[i]
		whole, frac, _ := strings.Cut(strings.Replace(part, ",", ".", 1), ".")
		n, err := strconv.ParseInt(whole, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrISOFormat, err)
		}
		ret += time.Duration(n) * unit
		if frac != "" {
			f, err := strconv.ParseFloat("0."+frac, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: %w", ErrISOFormat, err)
			}
			ret += time.Duration(f * float64(unit))
		}
	}
	return ret, nil
}

// Validate checks that exactly one of Cron and Duration is set and parses.
func (s TimerSchedule) Validate() error {
	switch {
	case s.Cron != "" && s.Duration != "":
		return errors.New("schedule: cron and duration are mutually exclusive")
	case s.Cron != "":
		_, err := ParseCron(s.Cron)
		return err
	case s.Duration != "":
		d, err := ParseISODuration(s.Duration)
		if err != nil {
			return err
		}
		if d <= 0 {
			return fmt.Errorf("schedule: duration %s must be positive", s.Duration)
		}
		return nil
	default:
		return errors.New("schedule: one of cron or duration is required")
	}
}
