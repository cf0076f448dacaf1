package dashboard_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/listadmin/internal/dashboard"
	"github.com/nhle/listadmin/internal/mailman"
	"github.com/nhle/listadmin/internal/model"
	"github.com/nhle/listadmin/internal/store"
	"github.com/nhle/listadmin/tests/testutil"
)

type call struct {
	Op     string
	ListID string
	ID     string
	Action mailman.Action
}

type fakeRemote struct {
	lists    []model.MailingList
	held     []model.HeldMessage
	requests []model.SubscriptionRequest
	domains  []model.Domain
	members  map[string][]string
	listsErr error
	calls    []call
}

func (f *fakeRemote) Domains(context.Context) ([]model.Domain, error) {
	return f.domains, nil
}

func (f *fakeRemote) Roster(_ context.Context, listID string, role model.Role) ([]string, error) {
	if role != model.RoleSubscriber {
		return nil, fmt.Errorf("unexpected %s roster request", role)
	}
	return f.members[listID], nil
}

func (f *fakeRemote) HeldMessage(_ context.Context, list model.MailingList, requestID string) (model.HeldMessage, error) {
	for _, h := range f.held {
		if h.RequestID == requestID && h.FQDNListName == list.FQDNListName {
			return h, nil
		}
	}
	return model.HeldMessage{}, &mailman.NotFoundError{Path: "/lists/" + list.ListID + "/held/" + requestID}
}

func (f *fakeRemote) Lists(context.Context) ([]model.MailingList, error) {
	if f.listsErr != nil {
		return nil, f.listsErr
	}
	return f.lists, nil
}

func (f *fakeRemote) HeldMessages(context.Context, []model.MailingList) ([]model.HeldMessage, error) {
	return f.held, nil
}

func (f *fakeRemote) SubscriptionRequests(context.Context, []model.MailingList) ([]model.SubscriptionRequest, error) {
	return f.requests, nil
}

func (f *fakeRemote) ModerateMessage(_ context.Context, listID, requestID string, action mailman.Action) error {
	f.calls = append(f.calls, call{Op: "moderate", ListID: listID, ID: requestID, Action: action})
	return nil
}

func (f *fakeRemote) HandleRequest(_ context.Context, listID, token string, action mailman.Action) error {
	f.calls = append(f.calls, call{Op: "request", ListID: listID, ID: token, Action: action})
	return nil
}

func (f *fakeRemote) AddRole(_ context.Context, listID string, role model.Role, email string) error {
	f.calls = append(f.calls, call{Op: "add-" + string(role), ListID: listID, ID: email})
	return nil
}

func (f *fakeRemote) RemoveRole(_ context.Context, listID string, role model.Role, email string) error {
	f.calls = append(f.calls, call{Op: "remove-" + string(role), ListID: listID, ID: email})
	return nil
}

var (
	now   = time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)
	owner = model.User{Email: "owner@example.com"}
	mod   = model.User{Email: "mod@example.com"}
	root  = model.User{Email: "root@example.com", Superuser: true}
	guest = model.User{Email: "guest@example.com"}
)

func newRemote() *fakeRemote {
	return &fakeRemote{
		lists: []model.MailingList{{
			ListID:       "testlist.example.com",
			FQDNListName: "testlist@example.com",
			Owners:       []string{"owner@example.com"},
			Moderators:   []string{"mod@example.com"},
		}},
		held: []model.HeldMessage{{
			RequestID:    "1",
			HoldDate:     now.Add(-time.Hour),
			Sender:       "lorem@example.org",
			Subject:      "Hello",
			FQDNListName: "testlist@example.com",
		}},
		requests: []model.SubscriptionRequest{{
			Token:       "tok",
			RequestDate: now.Add(-2 * time.Hour),
			Email:       "ipsum@example.org",
			ListID:      "testlist.example.com",
		}},
	}
}

func newService(t *testing.T, remote *fakeRemote) (*dashboard.Service, store.Store) {
	t.Helper()
	s := testutil.NewTestStore(t)
	return dashboard.New(dashboard.Env{
		Remote: remote,
		Store:  s,
		Now:    func() time.Time { return now },
	}), s
}

func TestLoadFiltersByRole(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t, newRemote())

	view, err := svc.Load(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, view.Tasks, 2)
	assert.Len(t, view.Sync.NewModeration, 1)
	assert.Len(t, view.Sync.NewSubscription, 1)
	assert.Len(t, view.Lists, 1)
	assert.Equal(t, 1, view.Graph.Subscriptions.Total())
	assert.Equal(t, 1, view.Graph.Moderations.Total())

	view, err = svc.Load(ctx, mod)
	require.NoError(t, err)
	require.Len(t, view.Tasks, 1)
	assert.Equal(t, model.TaskTypeModeration, view.Tasks[0].TaskType)
	assert.Empty(t, view.Sync.NewModeration, "second load creates nothing")

	_, err = svc.Load(ctx, guest)
	require.ErrorIs(t, err, dashboard.ErrNoControlAccess)
}

func TestLoadFailsWhenServerUnreachable(t *testing.T) {
	t.Parallel()
	remote := newRemote()
	remote.listsErr = &mailman.APIError{Method: "GET", Path: "/lists", Err: errors.New("refused")}
	svc, _ := newService(t, remote)

	_, err := svc.Load(context.Background(), root)
	require.Error(t, err)
	assert.True(t, mailman.IsUnreachable(err))
}

func TestLoadOrdersByPriority(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t, newRemote())

	_, err := svc.Load(ctx, root)
	require.NoError(t, err)
	_, err = svc.SetTaskPriority(ctx, model.TaskTypeSubscription, "tok", model.PriorityHigh)
	require.NoError(t, err)

	view, err := svc.Load(ctx, root)
	require.NoError(t, err)
	require.Len(t, view.Tasks, 2)
	assert.Equal(t, "tok", view.Tasks[0].TaskID)
}

func TestPriorityRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, s := newService(t, newRemote())
	_, err := svc.Load(ctx, root)
	require.NoError(t, err)

	task, err := svc.SetTaskPriority(ctx, model.TaskTypeModeration, "1", model.PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, model.PriorityHigh, task.Priority)

	task, err = svc.SetTaskPriority(ctx, model.TaskTypeModeration, "1", model.PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, model.PriorityUnset, task.Priority)

	stored, _, err := s.FindTask(ctx, model.TaskTypeModeration, "1")
	require.NoError(t, err)
	assert.Equal(t, model.PriorityUnset, stored.Priority)

	task, err = svc.SetTaskPriority(ctx, model.TaskTypeModeration, "1", model.PriorityLow)
	require.NoError(t, err)
	assert.Equal(t, model.PriorityLow, task.Priority)
	task, err = svc.SetTaskPriority(ctx, model.TaskTypeModeration, "1", model.PriorityMedium)
	require.NoError(t, err)
	assert.Equal(t, model.PriorityMedium, task.Priority)

	_, err = svc.SetTaskPriority(ctx, model.TaskTypeModeration, "1", 7)
	require.ErrorIs(t, err, dashboard.ErrInvalidPriority)
	_, err = svc.SetTaskPriority(ctx, model.TaskTypeModeration, "missing", model.PriorityHigh)
	require.ErrorIs(t, err, dashboard.ErrTaskNotFound)
}

func TestManualTaskLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t, newRemote())

	_, err := svc.CreateManualTask(ctx, owner, "   ", "")
	require.ErrorIs(t, err, dashboard.ErrEmptySubject)

	first, err := svc.CreateManualTask(ctx, owner, "Check archive", "monthly")
	require.NoError(t, err)
	assert.Equal(t, "-1", first.TaskID)
	assert.Equal(t, "owner@example.com", first.UserEmail)
	assert.Empty(t, first.ListID)

	second, err := svc.CreateManualTask(ctx, mod, "Review filters", "")
	require.NoError(t, err)
	assert.Equal(t, "-2", second.TaskID)

	view, err := svc.Load(ctx, owner)
	require.NoError(t, err)
	var manual []string
	for _, task := range view.Tasks {
		if task.IsManual() {
			manual = append(manual, task.TaskID)
		}
	}
	assert.Equal(t, []string{"-1"}, manual, "manual tasks survive sync and are only shown to their creator")

	require.ErrorIs(t, svc.DiscardManualTask(ctx, mod, "-1"), dashboard.ErrNotTaskOwner)
	require.NoError(t, svc.DiscardManualTask(ctx, owner, "-1"))
	require.ErrorIs(t, svc.DiscardManualTask(ctx, owner, "-1"), dashboard.ErrTaskNotFound)
	require.ErrorIs(t, svc.DiscardManualTask(ctx, owner, "tok"), dashboard.ErrTaskNotFound)
}

func TestHandleSubscriptionTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	remote := newRemote()
	svc, s := newService(t, remote)
	_, err := svc.Load(ctx, root)
	require.NoError(t, err)

	err = svc.HandleSubscriptionTask(ctx, mod, "testlist.example.com", "tok", model.DecisionAccept)
	require.ErrorIs(t, err, dashboard.ErrForbidden)

	err = svc.HandleSubscriptionTask(ctx, owner, "testlist.example.com", "tok", model.DecisionDefer)
	require.ErrorIs(t, err, dashboard.ErrInvalidDecision)

	require.NoError(t, svc.HandleSubscriptionTask(ctx, owner, "testlist.example.com", "tok", model.DecisionAccept))
	assert.Equal(t, []call{{Op: "request", ListID: "testlist.example.com", ID: "tok", Action: mailman.ActionAccept}}, remote.calls)

	_, found, err := s.FindTask(ctx, model.TaskTypeSubscription, "tok")
	require.NoError(t, err)
	assert.False(t, found)

	events, err := s.GetEvents(ctx, store.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "subscription-accept", events[0].Event)
	assert.Equal(t, "ipsum@example.org", events[0].UserEmail)
	assert.Equal(t, "owner@example.com", events[0].EventOp)
	assert.Equal(t, "Owner accepted Ipsum's subscription request in Testlist", events[0].Describe())

	err = svc.HandleSubscriptionTask(ctx, owner, "testlist.example.com", "tok", model.DecisionAccept)
	require.ErrorIs(t, err, dashboard.ErrTaskNotFound)
}

func TestHandleModerationTaskDeferKeepsTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	remote := newRemote()
	svc, s := newService(t, remote)
	_, err := svc.Load(ctx, root)
	require.NoError(t, err)

	require.NoError(t, svc.HandleModerationTask(ctx, mod, "testlist.example.com", "1", model.DecisionDefer))
	_, found, err := s.FindTask(ctx, model.TaskTypeModeration, "1")
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, svc.HandleModerationTask(ctx, mod, "testlist.example.com", "1", model.DecisionDiscard))
	_, found, err = s.FindTask(ctx, model.TaskTypeModeration, "1")
	require.NoError(t, err)
	assert.False(t, found)

	events, err := s.GetEvents(ctx, store.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Mod discarded a post from Lorem in Testlist", events[0].Describe())

	err = svc.HandleModerationTask(ctx, mod, "other.example.com", "1", model.DecisionAccept)
	require.ErrorIs(t, err, dashboard.ErrTaskNotFound)
}

func TestRemoveRole(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	remote := newRemote()
	svc, _ := newService(t, remote)

	require.ErrorIs(t, svc.RemoveRole(ctx, mod, "testlist.example.com", model.RoleModerator, "mod@example.com"), dashboard.ErrForbidden)
	require.ErrorIs(t, svc.RemoveRole(ctx, owner, "testlist.example.com", model.RoleOwner, "mod@example.com"), dashboard.ErrNotInRole)
	require.ErrorIs(t, svc.RemoveRole(ctx, owner, "missing.example.com", model.RoleOwner, "x@example.com"), dashboard.ErrListNotFound)
	require.ErrorIs(t, svc.RemoveRole(ctx, owner, "testlist.example.com", model.Role("admin"), "x@example.com"), dashboard.ErrUnknownRole)

	require.NoError(t, svc.RemoveRole(ctx, owner, "testlist.example.com", model.RoleModerator, "mod@example.com"))
	require.NoError(t, svc.RemoveRole(ctx, root, "testlist.example.com", model.RoleSubscriber, "lorem@example.org"))
	assert.Equal(t, []call{
		{Op: "remove-moderator", ListID: "testlist.example.com", ID: "mod@example.com"},
		{Op: "remove-subscriber", ListID: "testlist.example.com", ID: "lorem@example.org"},
	}, remote.calls)
}

func TestGraphIgnoresListsOutsideViewerRoles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	remote := newRemote()
	svc, s := newService(t, remote)

	day := model.CalendarDate(now)
	require.NoError(t, s.IncrementCalendar(ctx, day, "testlist.example.com", model.TaskTypeModeration))
	require.NoError(t, s.IncrementCalendar(ctx, day, "secret.example.com", model.TaskTypeModeration))

	graph, err := svc.Graph(ctx, mod, []string{"testlist.example.com", "secret.example.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, graph.Moderations.Total())

	graph, err = svc.Graph(ctx, guest, nil)
	require.NoError(t, err)
	assert.Zero(t, graph.Moderations.Total())
}

func TestAddRole(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	remote := newRemote()
	svc, _ := newService(t, remote)

	require.ErrorIs(t, svc.AddRole(ctx, mod, "testlist.example.com", model.RoleModerator, "new@example.com"), dashboard.ErrForbidden)
	require.ErrorIs(t, svc.AddRole(ctx, owner, "testlist.example.com", model.RoleModerator, "mod@example.com"), dashboard.ErrAlreadyInRole)
	require.ErrorIs(t, svc.AddRole(ctx, owner, "missing.example.com", model.RoleOwner, "x@example.com"), dashboard.ErrListNotFound)
	require.ErrorIs(t, svc.AddRole(ctx, owner, "testlist.example.com", model.Role("admin"), "x@example.com"), dashboard.ErrUnknownRole)

	require.NoError(t, svc.AddRole(ctx, owner, "testlist.example.com", model.RoleModerator, "new@example.com"))
	require.NoError(t, svc.AddRole(ctx, root, "testlist.example.com", model.RoleSubscriber, "ipsum@example.org"))
	assert.Equal(t, []call{
		{Op: "add-moderator", ListID: "testlist.example.com", ID: "new@example.com"},
		{Op: "add-subscriber", ListID: "testlist.example.com", ID: "ipsum@example.org"},
	}, remote.calls)
}

func TestTasksSharingAnIDAcrossTypes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	remote := newRemote()
	remote.requests[0].Token = "1"
	svc, s := newService(t, remote)
	_, err := svc.Load(ctx, root)
	require.NoError(t, err)

	task, err := svc.SetTaskPriority(ctx, model.TaskTypeSubscription, "1", model.PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, model.TaskTypeSubscription, task.TaskType)

	held, found, err := s.FindTask(ctx, model.TaskTypeModeration, "1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.PriorityUnset, held.Priority)

	require.NoError(t, svc.HandleSubscriptionTask(ctx, owner, "testlist.example.com", "1", model.DecisionAccept))
	assert.Equal(t, []call{{Op: "request", ListID: "testlist.example.com", ID: "1", Action: mailman.ActionAccept}}, remote.calls)

	_, found, err = s.FindTask(ctx, model.TaskTypeModeration, "1")
	require.NoError(t, err)
	assert.True(t, found, "the held message with the same id is untouched")
}

func TestLoadCapsFeedToVisibleKinds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	svc := dashboard.New(dashboard.Env{
		Remote:    newRemote(),
		Store:     s,
		Now:       func() time.Time { return now },
		FeedLimit: 2,
	})

	for i, tag := range []string{"moderation-accept", "moderation-reject", "subscription-accept", "subscription-reject"} {
		_, err := s.CreateEvent(ctx, model.Event{
			UserEmail: "lorem@example.org",
			EventOp:   "root@example.com",
			Event:     tag,
			ListID:    "testlist.example.com",
			MadeOn:    now.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	view, err := svc.Load(ctx, mod)
	require.NoError(t, err)
	require.Len(t, view.Events, 2, "older moderation events fill the feed past newer subscription ones")
	for _, e := range view.Events {
		assert.True(t, e.IsModeration())
	}

	view, err = svc.Load(ctx, root)
	require.NoError(t, err)
	require.Len(t, view.Events, 2)
	assert.Equal(t, "subscription-reject", view.Events[0].Event)
}

func TestTasksNarrowsByTypeAndRole(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t, newRemote())
	_, err := svc.Load(ctx, root)
	require.NoError(t, err)

	tasks, err := svc.Tasks(ctx, mod, store.TaskFilter{}, 0)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, model.TaskTypeModeration, tasks[0].TaskType)

	tasks, err = svc.Tasks(ctx, owner, store.TaskFilter{TaskType: model.TaskTypeSubscription}, 0)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "tok", tasks[0].TaskID)

	tasks, err = svc.Tasks(ctx, owner, store.TaskFilter{ListIDs: []string{"testlist.example.com"}}, 1)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	_, err = svc.Tasks(ctx, guest, store.TaskFilter{}, 0)
	require.ErrorIs(t, err, dashboard.ErrNoControlAccess)
}

func TestHeldMessageRefresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t, newRemote())

	held, err := svc.HeldMessage(ctx, mod, "testlist.example.com", "1")
	require.NoError(t, err)
	assert.Equal(t, "Hello", held.Subject)

	_, err = svc.HeldMessage(ctx, mod, "testlist.example.com", "2")
	require.ErrorIs(t, err, dashboard.ErrTaskNotFound)

	_, err = svc.HeldMessage(ctx, guest, "testlist.example.com", "1")
	require.ErrorIs(t, err, dashboard.ErrForbidden)
}

func TestSearch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	remote := newRemote()
	remote.lists = append(remote.lists, model.MailingList{
		ListID:       "private.example.org",
		FQDNListName: "private@example.org",
		Owners:       []string{"someone@example.org"},
	})
	remote.domains = []model.Domain{
		{MailHost: "example.com", BaseURL: "http://example.com"},
		{MailHost: "example.org", BaseURL: "http://example.org"},
	}
	remote.members = map[string][]string{
		"testlist.example.com": {"lorem@example.org", "ipsum@example.org"},
		"private.example.org":  {"lorem@private.example.org"},
	}
	svc, _ := newService(t, remote)

	res, err := svc.Search(ctx, mod, "lorem")
	require.NoError(t, err)
	assert.Equal(t, []model.Member{{Email: "lorem@example.org", ListID: "testlist.example.com"}}, res.People,
		"only subscribers of lists the viewer administers are searched")
	assert.Empty(t, res.Lists)
	assert.Empty(t, res.Domains)

	res, err = svc.Search(ctx, mod, ".ORG")
	require.NoError(t, err)
	assert.Equal(t, []model.Domain{{MailHost: "example.org", BaseURL: "http://example.org"}}, res.Domains)
	assert.Len(t, res.People, 2)

	res, err = svc.Search(ctx, root, "private")
	require.NoError(t, err)
	require.Len(t, res.Lists, 1)
	assert.Equal(t, "private.example.org", res.Lists[0].ListID)
	assert.Len(t, res.People, 1)

	_, err = svc.Search(ctx, guest, "lorem")
	require.ErrorIs(t, err, dashboard.ErrNoControlAccess)
}
