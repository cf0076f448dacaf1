package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/listadmin/internal/model"
	"github.com/nhle/listadmin/internal/store"
	"github.com/nhle/listadmin/tests/testutil"
)

func subscriptionTask(token string, madeOn time.Time) model.AdminTask {
	return model.AdminTask{
		TaskID:    token,
		TaskType:  model.TaskTypeSubscription,
		MadeOn:    madeOn,
		UserEmail: "lorem@example.org",
		ListID:    "testlist.example.com",
		Priority:  model.PriorityUnset,
	}
}

func TestInsertTaskIgnoresDuplicates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	task := subscriptionTask("tok-1", time.Now())

	inserted, err := s.InsertTask(ctx, task)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.InsertTask(ctx, task)
	require.NoError(t, err)
	assert.False(t, inserted, "second insert of the same (type, id) must be ignored")

	n, err := s.CountTasks(ctx, model.TaskTypeSubscription)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSameTaskIDAllowedAcrossTypes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	sub := subscriptionTask("7", time.Now())
	mod := sub
	mod.TaskType = model.TaskTypeModeration

	for _, task := range []model.AdminTask{sub, mod} {
		inserted, err := s.InsertTask(ctx, task)
		require.NoError(t, err)
		assert.True(t, inserted)
	}
}

func TestRecordNewTaskCountsOnlyRealInserts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	now := time.Now()
	for _, token := range []string{"a", "b", "a"} {
		_, err := s.RecordNewTask(ctx, subscriptionTask(token, now))
		require.NoError(t, err)
	}

	entries, err := s.GetCalendar(ctx, store.CalendarFilter{})
	require.NoError(t, err)

	want := []model.CalendarEntry{{
		OnDate:    model.CalendarDate(now),
		ListID:    "testlist.example.com",
		LogType:   model.TaskTypeSubscription,
		LogNumber: 2,
	}}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("calendar mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordNewTaskConcurrentPassesInsertOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	task := subscriptionTask("race", time.Now())

	var wg sync.WaitGroup
	results := make([]bool, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.RecordNewTask(ctx, task)
		}(i)
	}
	wg.Wait()

	inserted := 0
	for i := range results {
		require.NoError(t, errs[i])
		if results[i] {
			inserted++
		}
	}
	assert.Equal(t, 1, inserted)

	entries, err := s.GetCalendar(ctx, store.CalendarFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].LogNumber)
}

func TestRecordNewTaskRejectsManual(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)

	_, err := s.RecordNewTask(context.Background(), model.AdminTask{
		TaskID:   "-1",
		TaskType: model.TaskTypeManual,
		MadeOn:   time.Now(),
	})
	require.Error(t, err)
}

func TestCreateManualTaskAllocatesDecreasingIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		task, err := s.CreateManualTask(ctx, model.AdminTask{
			UserEmail:  "owner@example.com",
			MadeOn:     time.Now(),
			MsgSubject: "Reminder",
		})
		require.NoError(t, err)
		assert.Equal(t, model.TaskTypeManual, task.TaskType)
		assert.Equal(t, model.PriorityUnset, task.Priority)
		assert.NotZero(t, task.ID)
		ids = append(ids, task.TaskID)
	}
	assert.Equal(t, []string{"-1", "-2", "-3"}, ids)

	// Removing a middle id does not affect allocation from the minimum.
	_, err := s.DeleteTask(ctx, model.TaskTypeManual, "-2")
	require.NoError(t, err)

	task, err := s.CreateManualTask(ctx, model.AdminTask{UserEmail: "owner@example.com", MadeOn: time.Now(), MsgSubject: "x"})
	require.NoError(t, err)
	assert.Equal(t, "-4", task.TaskID)
}

func TestGetTasksDefaultOrderAndFilters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	older := subscriptionTask("older", base)
	newer := subscriptionTask("newer", base.Add(time.Hour))
	urgent := subscriptionTask("urgent", base.Add(-time.Hour))
	urgent.Priority = model.PriorityHigh
	other := subscriptionTask("other", base)
	other.ListID = "other.example.com"

	for _, task := range []model.AdminTask{older, newer, urgent, other} {
		_, err := s.InsertTask(ctx, task)
		require.NoError(t, err)
	}

	tasks, err := s.GetTasks(ctx, store.TaskFilter{ListIDs: []string{"testlist.example.com"}})
	require.NoError(t, err)

	var got []string
	for _, task := range tasks {
		got = append(got, task.TaskID)
	}
	assert.Equal(t, []string{"urgent", "newer", "older"}, got)
	assert.True(t, tasks[1].MadeOn.Equal(newer.MadeOn), "made_on must round-trip")

	held := model.AdminTask{TaskID: "9", TaskType: model.TaskTypeModeration, MadeOn: base,
		UserEmail: "sender@example.org", ListID: "other.example.com", Priority: model.PriorityUnset}
	_, err = s.InsertTask(ctx, held)
	require.NoError(t, err)

	tasks, err = s.GetTasks(ctx, store.TaskFilter{TaskType: model.TaskTypeModeration})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "9", tasks[0].TaskID)

	tasks, err = s.GetTasks(ctx, store.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, tasks, 5)
}

func TestFindTaskReportsMiss(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	_, found, err := s.FindTask(ctx, model.TaskTypeSubscription, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = s.InsertTask(ctx, subscriptionTask("present", time.Now()))
	require.NoError(t, err)

	task, found, err := s.FindTask(ctx, model.TaskTypeSubscription, "present")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "lorem@example.org", task.UserEmail)

	_, found, err = s.FindTask(ctx, model.TaskTypeModeration, "present")
	require.NoError(t, err)
	assert.False(t, found, "lookups are scoped to the task type")
}

func TestUpdatePriorityAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	_, err := s.InsertTask(ctx, subscriptionTask("tok", time.Now()))
	require.NoError(t, err)
	task, _, err := s.FindTask(ctx, model.TaskTypeSubscription, "tok")
	require.NoError(t, err)

	require.NoError(t, s.UpdateTaskPriority(ctx, task.ID, model.PriorityHigh))
	task, _, err = s.FindTask(ctx, model.TaskTypeSubscription, "tok")
	require.NoError(t, err)
	assert.Equal(t, model.PriorityHigh, task.Priority)

	require.Error(t, s.UpdateTaskPriority(ctx, task.ID+100, model.PriorityHigh))

	deleted, err := s.DeleteTask(ctx, model.TaskTypeSubscription, "tok")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteTask(ctx, model.TaskTypeSubscription, "tok")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestTaskIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	for _, token := range []string{"a", "b"} {
		_, err := s.InsertTask(ctx, subscriptionTask(token, time.Now()))
		require.NoError(t, err)
	}

	ids, err := s.TaskIDs(ctx, model.TaskTypeSubscription)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true, "b": true}, ids)

	ids, err = s.TaskIDs(ctx, model.TaskTypeModeration)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCalendarFilters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	require.NoError(t, s.IncrementCalendar(ctx, "2024-05-01", "a.example.com", model.TaskTypeModeration))
	require.NoError(t, s.IncrementCalendar(ctx, "2024-05-02", "a.example.com", model.TaskTypeModeration))
	require.NoError(t, s.IncrementCalendar(ctx, "2024-05-02", "b.example.com", model.TaskTypeSubscription))
	require.Error(t, s.IncrementCalendar(ctx, "2024-05-02", "b.example.com", model.TaskTypeManual))

	entries, err := s.GetCalendar(ctx, store.CalendarFilter{
		From:    "2024-05-02",
		To:      "2024-05-31",
		ListIDs: []string{"a.example.com"},
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2024-05-02", entries[0].OnDate)
	assert.Equal(t, "a.example.com", entries[0].ListID)
	assert.Equal(t, model.TaskTypeModeration, entries[0].LogType)
}

func TestEventsNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	first, err := s.CreateEvent(ctx, model.Event{
		UserEmail: "lorem@example.org",
		EventOp:   "owner@example.com",
		Event:     "subscription-accept",
		ListID:    "testlist.example.com",
		MadeOn:    base,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = s.CreateEvent(ctx, model.Event{
		UserEmail: "ipsum@example.org",
		EventOp:   "mod@example.com",
		Event:     "moderation-reject",
		ListID:    "testlist.example.com",
		MadeOn:    base.Add(time.Minute),
	})
	require.NoError(t, err)

	events, err := s.GetEvents(ctx, store.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "moderation-reject", events[0].Event)
	assert.Equal(t, "subscription-accept", events[1].Event)

	events, err = s.GetEvents(ctx, store.EventFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "moderation-reject", events[0].Event)

	events, err = s.GetEvents(ctx, store.EventFilter{Kinds: []model.TaskType{model.TaskTypeSubscription}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, events, 1, "the limit applies after the kind filter")
	assert.Equal(t, "subscription-accept", events[0].Event)

	events, err = s.GetEvents(ctx, store.EventFilter{Kinds: []model.TaskType{model.TaskTypeModeration, model.TaskTypeSubscription}})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
