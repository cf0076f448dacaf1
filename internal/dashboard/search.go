package dashboard

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nhle/listadmin/internal/model"
)

// SearchTasks narrows tasks by a free-text query. Queries naming a task
// kind ("moderation", "subscription", "manual", "self", "reminder") or a
// priority ("priority high") match on those fields; anything else matches
// requester addresses. Matching is case-insensitive.
func SearchTasks(tasks []model.AdminTask, query string) []model.AdminTask {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return tasks
	}

	var match func(model.AdminTask) bool
	switch {
	case strings.Contains(q, "moderation"):
		match = typeIs(model.TaskTypeModeration)
	case strings.Contains(q, "subscription"):
		match = typeIs(model.TaskTypeSubscription)
	case strings.Contains(q, "manual"), strings.Contains(q, "self"), strings.Contains(q, "reminder"):
		match = typeIs(model.TaskTypeManual)
	case strings.Contains(q, "priority"):
		level := model.PriorityUnset
		switch {
		case strings.Contains(q, "high"):
			level = model.PriorityHigh
		case strings.Contains(q, "medium"):
			level = model.PriorityMedium
		case strings.Contains(q, "low"):
			level = model.PriorityLow
		}
		match = func(t model.AdminTask) bool { return t.Priority == level }
	default:
		match = func(t model.AdminTask) bool {
			return strings.Contains(strings.ToLower(t.UserEmail), q)
		}
	}

	res := make([]model.AdminTask, 0, len(tasks))
	for _, t := range tasks {
		if match(t) {
			res = append(res, t)
		}
	}
	return res
}

func typeIs(tt model.TaskType) func(model.AdminTask) bool {
	return func(t model.AdminTask) bool { return t.TaskType == tt }
}

// SearchLists returns the lists whose id contains query, ignoring case.
func SearchLists(lists []model.MailingList, query string) []model.MailingList {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return lists
	}

	res := make([]model.MailingList, 0, len(lists))
	for _, l := range lists {
		if strings.Contains(strings.ToLower(l.ListID), q) {
			res = append(res, l)
		}
	}
	return res
}

// SearchDomains returns the domains whose mail host contains query,
// ignoring case.
func SearchDomains(domains []model.Domain, query string) []model.Domain {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return domains
	}

	res := make([]model.Domain, 0, len(domains))
	for _, d := range domains {
		if strings.Contains(strings.ToLower(d.MailHost), q) {
			res = append(res, d)
		}
	}
	return res
}

// SearchPeople returns the members whose address contains query, ignoring
// case. An empty query matches nobody.
func SearchPeople(members []model.Member, query string) []model.Member {
	q := strings.ToLower(strings.TrimSpace(query))
	res := make([]model.Member, 0)
	if q == "" {
		return res
	}

	for _, m := range members {
		if strings.Contains(strings.ToLower(m.Email), q) {
			res = append(res, m)
		}
	}
	return res
}

// ReorderTasks returns a copy of tasks sorted descending by the named
// field. Ties keep their input order.
func ReorderTasks(tasks []model.AdminTask, by string) ([]model.AdminTask, error) {
	var less func(a, b model.AdminTask) bool
	switch by {
	case "priority":
		less = func(a, b model.AdminTask) bool { return a.Priority < b.Priority }
	case "made_on":
		less = func(a, b model.AdminTask) bool { return a.MadeOn.Before(b.MadeOn) }
	case "user_email":
		less = func(a, b model.AdminTask) bool { return a.UserEmail < b.UserEmail }
	case "list_id":
		less = func(a, b model.AdminTask) bool { return a.ListID < b.ListID }
	case "task_type":
		less = func(a, b model.AdminTask) bool { return a.TaskType < b.TaskType }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSortField, by)
	}

	sorted := append([]model.AdminTask(nil), tasks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return less(sorted[j], sorted[i])
	})
	return sorted, nil
}

var relTimeMagnitudes = []humanize.RelTimeMagnitude{
	{D: 10 * time.Second, Format: "Just Now", DivBy: time.Second},
	{D: time.Minute, Format: "%d seconds %s", DivBy: time.Second},
	{D: 2 * time.Minute, Format: "a minute %s", DivBy: time.Minute},
	{D: time.Hour, Format: "%d minutes %s", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "an hour %s", DivBy: time.Hour},
	{D: humanize.Day, Format: "%d hours %s", DivBy: time.Hour},
	{D: 2 * humanize.Day, Format: "Yesterday", DivBy: humanize.Day},
	{D: humanize.Week, Format: "%d days %s", DivBy: humanize.Day},
	{D: math.MaxInt64, Format: "%d weeks %s", DivBy: humanize.Week},
}

// RelativeTime describes how long before now t happened, e.g. "5 minutes
// ago" or "Yesterday". Times in the future yield an empty string.
func RelativeTime(t, now time.Time) string {
	if t.After(now) {
		return ""
	}
	return humanize.CustomRelTime(t, now, "ago", "from now", relTimeMagnitudes)
}
