package chat

import (
	"regexp"
	"strings"
	"time"
)

// Date phrases understood in receipt requests.
const (
	PeriodToday     = "today"
	PeriodYesterday = "yesterday"
	PeriodThisWeek  = "this week"
	PeriodLastWeek  = "last week"
	PeriodThisMonth = "this month"
	PeriodLastMonth = "last month"
)

var (
	periodRe     = regexp.MustCompile(`(?:\b(?:for|from|on|in|during)\s+)?\b(today|yesterday|this week|last week|this month|last month)\b`)
	trailingPrep = regexp.MustCompile(`(?:\s+(?:for|from|at|on|in))+$`)
	countRe      = regexp.MustCompile(`\b(?:recent|last|latest)\s+(\d+)\b`)
	receiptForRe = regexp.MustCompile(`\b(?:for|from|at)\s+(?:my\s+|the\s+)?(.+?)\s*(?:receipts?)?\s*[.!?]*$`)
)

// parseReceiptsRequest extracts the optional count, period and name filter
// from a lowercased receipt request.
func parseReceiptsRequest(lower string) ReceiptsCommand {
	var cmd ReceiptsCommand

	if m := countRe.FindStringSubmatch(lower); m != nil {
		cmd.Limit = atoi(m[1])
		lower = strings.Replace(lower, m[0], " ", 1)
	}
	if m := periodRe.FindStringSubmatch(lower); m != nil {
		cmd.Period = m[1]
		lower = strings.Replace(lower, m[0], " ", 1)
	}
	lower = strings.Join(strings.Fields(lower), " ")

	if m := receiptForRe.FindStringSubmatch(lower); m != nil {
		q := trimCapture(trailingPrep.ReplaceAllString(m[1], ""))
		// "from receipts" or a bare preposition.
		if q != "" && q != "receipt" && q != "receipts" && !trailingPrep.MatchString(" "+q) {
			cmd.Query = q
		}
	}
	return cmd
}

// periodRange resolves a period phrase to a half-open [from, to) range in
// now's location. Weeks start on Monday.
func periodRange(period string, now time.Time) (from, to time.Time, ok bool) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekday := (int(day.Weekday()) + 6) % 7
	week := day.AddDate(0, 0, -weekday)
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	switch period {
	case PeriodToday:
		return day, day.AddDate(0, 0, 1), true
	case PeriodYesterday:
		return day.AddDate(0, 0, -1), day, true
	case PeriodThisWeek:
		return week, week.AddDate(0, 0, 7), true
	case PeriodLastWeek:
		return week.AddDate(0, 0, -7), week, true
	case PeriodThisMonth:
		return month, month.AddDate(0, 1, 0), true
	case PeriodLastMonth:
		return month.AddDate(0, -1, 0), month, true
	}
	return time.Time{}, time.Time{}, false
}
