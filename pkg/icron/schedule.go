package icron

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultPollSchedule is used when no schedule is configured.
const DefaultPollSchedule = "@every 15s"

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour |
	cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses descriptors such as "@every 10s", standard five-field
// expressions and six-field expressions with a leading seconds field.
func ParseSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = DefaultPollSchedule
	}
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

type TriggerInfo struct {
	Next       time.Time
	Expression string

	TimeUntilNext time.Duration
	// Interval is the gap between the next two activations.
	Interval time.Duration
}

func GetTriggerInfo(cronExpr string, refTime time.Time) (*TriggerInfo, error) {
	schedule, err := ParseSchedule(cronExpr)
	if err != nil {
		return nil, err
	}

	next := schedule.Next(refTime)
	after := schedule.Next(next)
	return &TriggerInfo{
		Expression:    cronExpr,
		Next:          next,
		TimeUntilNext: next.Sub(refTime),
		Interval:      after.Sub(next),
	}, nil
}
