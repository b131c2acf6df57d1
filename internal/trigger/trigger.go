// Package trigger evaluates whether a pipeline run should be created for a
// given ref, and handles cron schedules for time-based triggers. It runs
// once, before admission to the concurrency governor.
package trigger

import (
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vk/conveyor/internal/config"
)

// Matches reports whether the triggering ref passes the branch filters.
// A nil trigger or an empty branch list lets every ref through. Patterns
// use glob syntax: "*" matches within one path segment, "**" across
// segments. Bare branch names match their "refs/heads/" form too.
func Matches(trg *config.Trigger, ref string) bool {
	if trg == nil || len(trg.Branches) == 0 {
		return true
	}
	short := strings.TrimPrefix(ref, "refs/heads/")
	for _, pattern := range trg.Branches {
		if matchPattern(pattern, ref) || matchPattern(pattern, short) {
			return true
		}
	}
	return false
}

// NextScheduled returns the next time the schedule fires after now. The
// second return is false when the trigger has no schedule.
func NextScheduled(trg *config.Trigger, now time.Time) (time.Time, bool, error) {
	if trg == nil || trg.Schedule == "" {
		return time.Time{}, false, nil
	}
	schedule, err := cron.ParseStandard(trg.Schedule)
	if err != nil {
		return time.Time{}, false, err
	}
	return schedule.Next(now), true, nil
}

// matchPattern compiles a branch glob into an anchored regexp and tests
// ref against it. Compilation failures only happen for patterns our own
// escaping produced, so they are treated as a non-match.
func matchPattern(pattern, ref string) bool {
	var sb strings.Builder
	sb.WriteRune('^')
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				sb.WriteString(`.*`)
				i++
			} else {
				sb.WriteString(`[^/]*`)
			}
		case '?':
			sb.WriteString(`[^/]`)
		default:
			sb.WriteString(regexp.QuoteMeta(string(pattern[i])))
		}
	}
	sb.WriteRune('$')

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return false
	}
	return re.MatchString(ref)
}
