package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/natefinch/atomic"

	"github.com/nhle/listadmin/internal/model"
	"github.com/nhle/listadmin/internal/store"
)

// WindowDays is the number of days covered by a graph, today included.
const WindowDays = 31

// DayCount is the number of new tasks observed on one day.
type DayCount struct {
	Date  string
	Count int
}

// Series is a day-by-day count covering the graph window, oldest first.
type Series []DayCount

// MarshalJSON renders the series as a JSON object keyed by date, keeping
// the chronological key order.
func (s Series) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, day := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(day.Date)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%d", day.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Total returns the sum of all counts in the series.
func (s Series) Total() int {
	total := 0
	for _, day := range s {
		total += day.Count
	}
	return total
}

// Graph holds the daily statistics shown on the dashboard.
type Graph struct {
	Subscriptions Series `json:"subscriptions"`
	Moderations   Series `json:"moderations"`
}

// CalendarReader is the part of the store a graph is built from.
type CalendarReader interface {
	GetCalendar(ctx context.Context, opts store.CalendarFilter) ([]model.CalendarEntry, error)
}

// GenerateGraph builds the graph for listIDs over the WindowDays days
// ending on today. Days without entries count zero. An empty listIDs
// selects nothing and yields an all-zero graph.
func GenerateGraph(
	ctx context.Context,
	cal CalendarReader,
	listIDs []string,
	today time.Time,
) (Graph, error) {
	days := windowDates(today)
	graph := Graph{
		Subscriptions: zeroSeries(days),
		Moderations:   zeroSeries(days),
	}
	if len(listIDs) == 0 {
		return graph, nil
	}

	entries, err := cal.GetCalendar(ctx, store.CalendarFilter{
		From:    days[0],
		To:      days[len(days)-1],
		ListIDs: listIDs,
	})
	if err != nil {
		return Graph{}, fmt.Errorf("loading task calendar: %w", err)
	}

	index := make(map[string]int, len(days))
	for i, d := range days {
		index[d] = i
	}

	for _, e := range entries {
		i, ok := index[e.OnDate]
		if !ok {
			continue
		}
		switch e.LogType {
		case model.TaskTypeSubscription:
			graph.Subscriptions[i].Count += e.LogNumber
		case model.TaskTypeModeration:
			graph.Moderations[i].Count += e.LogNumber
		}
	}
	return graph, nil
}

// WriteFile writes graph as indented JSON to path, replacing any existing
// file atomically.
func WriteFile(path string, graph Graph) error {
	data, err := json.MarshalIndent(graph, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding graph: %w", err)
	}
	data = append(data, '\n')

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing graph to %s: %w", path, err)
	}
	return nil
}

// windowDates returns the UTC dates of the graph window ending on today,
// oldest first.
func windowDates(today time.Time) []string {
	utc := today.UTC()
	day := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)

	dates := make([]string, WindowDays)
	for i := 0; i < WindowDays; i++ {
		dates[i] = day.AddDate(0, 0, i-(WindowDays-1)).Format(model.DateLayout)
	}
	return dates
}

func zeroSeries(days []string) Series {
	s := make(Series, len(days))
	for i, d := range days {
		s[i] = DayCount{Date: d}
	}
	return s
}
