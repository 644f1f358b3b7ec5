package runner

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"phasebot/internal/config"
	logx "phasebot/pkg/logx"
)

// SpecKind describes the normalized kind of a status schedule.
type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

// ParsedSpec is a parsed status schedule.
//
// Supported forms:
//   - Cron: "*/5 * * * *", "*/10 * * * * *" (seconds), "@hourly", "@every 30s"
//   - Interval duration: "30s", "2m30s"
//   - Interval HH:MM: "00:05" (5 minutes)
//
// Optional prefixes "cron:" and "every:" force the kind.
type ParsedSpec struct {
	Kind  SpecKind
	Cron  string
	Every time.Duration
}

// CronSpec returns the expression to register with cron.
func (p ParsedSpec) CronSpec() string {
	if p.Kind == SpecInterval {
		return "@every " + p.Every.String()
	}
	return p.Cron
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// ParseSchedule parses a schedule string into a cron expression or an interval.
func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return ParsedSpec{}, fmt.Errorf("cron schedule required after 'cron:'")
		}
		return ParsedSpec{Kind: SpecCron, Cron: expr}, nil
	case strings.HasPrefix(low, "every:"):
		d, err := parseInterval(strings.TrimSpace(s[len("every:"):]))
		if err != nil {
			return ParsedSpec{}, err
		}
		return ParsedSpec{Kind: SpecInterval, Every: d}, nil
	case strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@"):
		return ParsedSpec{Kind: SpecCron, Cron: s}, nil
	}

	d, err := parseInterval(s)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf(
			"invalid schedule %q (use cron like '*/5 * * * *', HH:MM like '00:05', or duration like '30s')",
			raw,
		)
	}
	return ParsedSpec{Kind: SpecInterval, Every: d}, nil
}

func parseInterval(v string) (time.Duration, error) {
	if v == "" {
		return 0, fmt.Errorf("interval required")
	}
	var d time.Duration
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return 0, fmt.Errorf("invalid minutes in %q", v)
		}
		d = time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	} else {
		var err error
		if d, err = time.ParseDuration(v); err != nil {
			return 0, fmt.Errorf("invalid interval %q", v)
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}

// cronParser accepts both 5-field and 6-field (with seconds) specs.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// statusCron triggers status reports on a wall-clock schedule. It only
// signals; the report itself runs on the tick loop.
type statusCron struct {
	mu   sync.Mutex
	log  logx.Logger
	c    *cron.Cron
	cfg  config.StatusConfig
	fire func()
}

func newStatusCron(log logx.Logger, fire func()) *statusCron {
	return &statusCron{log: log.With(logx.String("component", "status")), fire: fire}
}

// Apply (re)starts the cron for cfg. An empty schedule disables reports.
func (s *statusCron) Apply(cfg config.StatusConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.c != nil && cfg == s.cfg {
		return nil
	}
	spec := strings.TrimSpace(cfg.Schedule)
	if spec == "" {
		s.stopLocked()
		s.cfg = cfg
		return nil
	}
	parsed, err := ParseSchedule(spec)
	if err != nil {
		return fmt.Errorf("status.schedule: %w", err)
	}
	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return err
	}

	c := cron.New(cron.WithParser(cronParser), cron.WithLocation(loc))
	if _, err := c.AddFunc(parsed.CronSpec(), s.fire); err != nil {
		return fmt.Errorf("status.schedule: %w", err)
	}
	s.stopLocked()
	s.c = c
	s.cfg = cfg
	c.Start()
	s.log.Info("status reports scheduled", logx.String("spec", parsed.CronSpec()), logx.String("tz", loc.String()))
	return nil
}

func (s *statusCron) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *statusCron) stopLocked() {
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
}

func loadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("status.timezone: invalid %q: %w", tz, err)
	}
	return loc, nil
}
