// internal/workers/pipeline/handoff-decision/schedule.go
package handoffdecision

import (
	"fmt"
	"strings"
	"time"

	"command-pipeline/internal/common/config"
	"command-pipeline/internal/models"
)

const dateLayout = "2006-01-02"

type window struct {
	open  int // minutes after midnight
	close int
}

// Schedule is the staffed-hours calendar. It is built once from config.
type Schedule struct {
	loc           *time.Location
	hours         map[time.Weekday]window
	holidays      map[string]struct{}
	defaultTarget string
	emergencyLine string
	targets       map[models.BrainID]string
}

func NewSchedule(cfg config.HandoffConfig) (*Schedule, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid handoff timezone %q: %w", tz, err)
	}

	s := &Schedule{
		loc:           loc,
		hours:         make(map[time.Weekday]window, len(cfg.Hours)),
		holidays:      make(map[string]struct{}, len(cfg.Holidays)),
		defaultTarget: cfg.DefaultTarget,
		emergencyLine: cfg.EmergencyLine,
		targets:       make(map[models.BrainID]string, len(cfg.Targets)),
	}

	for day, r := range cfg.Hours {
		wd, ok := parseWeekday(day)
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q in handoff hours", day)
		}
		open, err := parseClock(r.Open)
		if err != nil {
			return nil, fmt.Errorf("handoff hours %s open: %w", day, err)
		}
		closeAt, err := parseClock(r.Close)
		if err != nil {
			return nil, fmt.Errorf("handoff hours %s close: %w", day, err)
		}
		if closeAt <= open {
			return nil, fmt.Errorf("handoff hours %s close %s is not after open %s", day, r.Close, r.Open)
		}
		s.hours[wd] = window{open: open, close: closeAt}
	}

	for _, h := range cfg.Holidays {
		if _, err := time.ParseInLocation(dateLayout, h, loc); err != nil {
			return nil, fmt.Errorf("invalid holiday %q: %w", h, err)
		}
		s.holidays[h] = struct{}{}
	}

	for brain, target := range cfg.Targets {
		id := models.BrainID(strings.ToLower(brain))
		if !id.Valid() {
			return nil, fmt.Errorf("handoff target for unknown brain %q", brain)
		}
		s.targets[id] = target
	}

	return s, nil
}

// Open reports whether staff are available at now.
func (s *Schedule) Open(now time.Time) bool {
	local := now.In(s.loc)
	if _, holiday := s.holidays[local.Format(dateLayout)]; holiday {
		return false
	}
	w, ok := s.hours[local.Weekday()]
	if !ok {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	return minute >= w.open && minute < w.close
}

// Target returns the transfer destination for brain, falling back to the
// default desk.
func (s *Schedule) Target(brain models.BrainID) string {
	if t, ok := s.targets[brain]; ok && t != "" {
		return t
	}
	return s.defaultTarget
}

func (s *Schedule) EmergencyLine() string { return s.emergencyLine }

func parseWeekday(name string) (time.Weekday, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sunday", "sun":
		return time.Sunday, true
	case "monday", "mon":
		return time.Monday, true
	case "tuesday", "tue":
		return time.Tuesday, true
	case "wednesday", "wed":
		return time.Wednesday, true
	case "thursday", "thu":
		return time.Thursday, true
	case "friday", "fri":
		return time.Friday, true
	case "saturday", "sat":
		return time.Saturday, true
	}
	return 0, false
}

func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		if v == "24:00" {
			return 24 * 60, nil
		}
		return 0, fmt.Errorf("expected HH:MM, got %q", v)
	}
	return t.Hour()*60 + t.Minute(), nil
}
