package dashboard

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/listadmin/internal/access"
	"github.com/nhle/listadmin/internal/mailman"
	"github.com/nhle/listadmin/internal/model"
	"github.com/nhle/listadmin/internal/stats"
	"github.com/nhle/listadmin/internal/store"
	"github.com/nhle/listadmin/internal/sync"
)

// Remote is the Mailman server as seen by the dashboard.
type Remote interface {
	sync.Remote
	Lists(ctx context.Context) ([]model.MailingList, error)
	Domains(ctx context.Context) ([]model.Domain, error)
	Roster(ctx context.Context, listID string, role model.Role) ([]string, error)
	HeldMessage(ctx context.Context, list model.MailingList, requestID string) (model.HeldMessage, error)
	ModerateMessage(ctx context.Context, listID, requestID string, action mailman.Action) error
	HandleRequest(ctx context.Context, listID, token string, action mailman.Action) error
	AddRole(ctx context.Context, listID string, role model.Role, email string) error
	RemoveRole(ctx context.Context, listID string, role model.Role, email string) error
}

// Env carries the dependencies of a Service.
type Env struct {
	Remote Remote
	Store  store.Store
	Log    logrus.FieldLogger

	// Now defaults to time.Now.
	Now func() time.Time

	// FeedLimit bounds the activity feed; zero means DefaultFeedLimit.
	FeedLimit int
}

// DefaultFeedLimit is the number of events a dashboard view carries.
const DefaultFeedLimit = 50

// View is everything the dashboard shows to one viewer.
type View struct {
	Tasks  []model.AdminTask
	Events []model.Event
	Lists  []model.MailingList
	Graph  stats.Graph
	Sync   sync.Result
}

// Service implements the dashboard operations on top of the remote server
// and the local store.
type Service struct {
	remote Remote
	store  store.Store
	syncer *sync.Synchronizer
	log    logrus.FieldLogger
	now    func() time.Time

	feedLimit int
}

// New creates a Service for env.
func New(env Env) *Service {
	if env.Now == nil {
		env.Now = time.Now
	}
	if env.FeedLimit <= 0 {
		env.FeedLimit = DefaultFeedLimit
	}
	if env.Log == nil {
		log := logrus.New()
		log.SetOutput(io.Discard)
		env.Log = log
	}
	return &Service{
		remote: env.Remote,
		store:  env.Store,
		syncer: sync.New(sync.Env{
			Remote: env.Remote,
			Store:  env.Store,
			Log:    env.Log.WithField("component", "sync"),
			Now:    env.Now,
		}),
		log:       env.Log,
		now:       env.Now,
		feedLimit: env.FeedLimit,
	}
}

// SyncStatus returns the outcome of the most recent synchronization.
func (s *Service) SyncStatus() sync.Status {
	return s.syncer.Status()
}

// Load synchronizes the task store with the server and returns the
// dashboard contents visible to user.
func (s *Service) Load(ctx context.Context, user model.User) (View, error) {
	lists, err := s.remote.Lists(ctx)
	if err != nil {
		return View{}, fmt.Errorf("loading lists: %w", err)
	}
	if !access.HasControlAccess(user, lists) {
		return View{}, ErrNoControlAccess
	}

	result, err := s.syncer.Sync(ctx, lists)
	if err != nil {
		return View{}, fmt.Errorf("synchronizing tasks: %w", err)
	}

	tasks, err := s.store.GetTasks(ctx, store.TaskFilter{})
	if err != nil {
		return View{}, err
	}
	var events []model.Event
	if kinds := access.EventKinds(user, lists); len(kinds) > 0 {
		events, err = s.store.GetEvents(ctx, store.EventFilter{Kinds: kinds, Limit: s.feedLimit})
		if err != nil {
			return View{}, err
		}
	}

	allowed := access.AllowedLists(user, lists)
	graph, err := stats.GenerateGraph(ctx, s.store, listIDs(allowed), s.now())
	if err != nil {
		return View{}, err
	}

	return View{
		Tasks:  access.FilterTasksByRole(user, tasks, lists),
		Events: access.EventsAllowed(user, events, lists),
		Lists:  allowed,
		Graph:  graph,
		Sync:   result,
	}, nil
}

// Tasks returns the stored tasks user may act on, narrowed by filter and
// capped at limit when limit is positive. It does not synchronize.
func (s *Service) Tasks(
	ctx context.Context,
	user model.User,
	filter store.TaskFilter,
	limit int,
) ([]model.AdminTask, error) {
	lists, err := s.remote.Lists(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading lists: %w", err)
	}
	if !access.HasControlAccess(user, lists) {
		return nil, ErrNoControlAccess
	}

	tasks, err := s.store.GetTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	tasks = access.FilterTasksByRole(user, tasks, lists)
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

// HeldMessage fetches the current state of a held message from the server.
// A message no longer held yields ErrTaskNotFound.
func (s *Service) HeldMessage(
	ctx context.Context,
	user model.User,
	listID string,
	requestID string,
) (model.HeldMessage, error) {
	list, err := s.findList(ctx, listID)
	if err != nil {
		return model.HeldMessage{}, err
	}
	if !access.CanHandle(user, model.TaskTypeModeration, list) {
		return model.HeldMessage{}, ErrForbidden
	}

	held, err := s.remote.HeldMessage(ctx, list, requestID)
	if mailman.IsNotFound(err) {
		return model.HeldMessage{}, fmt.Errorf("held message %s: %w", requestID, ErrTaskNotFound)
	}
	if err != nil {
		return model.HeldMessage{}, err
	}
	return held, nil
}

// SearchResult is the outcome of a dashboard-wide search.
type SearchResult struct {
	Query   string
	Lists   []model.MailingList
	Domains []model.Domain
	People  []model.Member
}

// Search looks query up in the lists user administers, the server's mail
// hosts, and the subscribers of those lists.
func (s *Service) Search(ctx context.Context, user model.User, query string) (SearchResult, error) {
	lists, err := s.remote.Lists(ctx)
	if err != nil {
		return SearchResult{}, fmt.Errorf("loading lists: %w", err)
	}
	if !access.HasControlAccess(user, lists) {
		return SearchResult{}, ErrNoControlAccess
	}
	allowed := access.AllowedLists(user, lists)

	domains, err := s.remote.Domains(ctx)
	if err != nil {
		return SearchResult{}, err
	}

	var members []model.Member
	for _, l := range allowed {
		emails, err := s.remote.Roster(ctx, l.ListID, model.RoleSubscriber)
		if err != nil {
			return SearchResult{}, err
		}
		for _, email := range emails {
			members = append(members, model.Member{Email: email, ListID: l.ListID})
		}
	}

	return SearchResult{
		Query:   query,
		Lists:   SearchLists(allowed, query),
		Domains: SearchDomains(domains, query),
		People:  SearchPeople(members, query),
	}, nil
}

// Sync runs one synchronization pass over every list on the server.
func (s *Service) Sync(ctx context.Context) (sync.Result, error) {
	lists, err := s.remote.Lists(ctx)
	if err != nil {
		return sync.Result{}, fmt.Errorf("loading lists: %w", err)
	}
	return s.syncer.Sync(ctx, lists)
}

// Graph builds the statistics graph for the selected lists. Lists user does
// not administer are ignored; an empty selection means all allowed lists.
func (s *Service) Graph(ctx context.Context, user model.User, selected []string) (stats.Graph, error) {
	lists, err := s.remote.Lists(ctx)
	if err != nil {
		return stats.Graph{}, fmt.Errorf("loading lists: %w", err)
	}

	allowed := listIDs(access.AllowedLists(user, lists))
	if len(selected) > 0 {
		permitted := make(map[string]bool, len(allowed))
		for _, id := range allowed {
			permitted[id] = true
		}
		var ids []string
		for _, id := range selected {
			if permitted[id] {
				ids = append(ids, id)
			}
		}
		allowed = ids
	}

	return stats.GenerateGraph(ctx, s.store, allowed, s.now())
}

// CreateManualTask stores a reminder owned by user.
func (s *Service) CreateManualTask(
	ctx context.Context,
	user model.User,
	subject string,
	description string,
) (model.AdminTask, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return model.AdminTask{}, ErrEmptySubject
	}

	task, err := s.store.CreateManualTask(ctx, model.AdminTask{
		MadeOn:     s.now(),
		UserEmail:  user.Email,
		MsgSubject: subject,
		MsgData:    strings.TrimSpace(description),
	})
	if err != nil {
		return model.AdminTask{}, err
	}

	s.log.WithFields(logrus.Fields{
		"task_id": task.TaskID,
		"user":    user.Email,
	}).Info("manual task created")
	return task, nil
}

// DiscardManualTask deletes a manual task. Only its creator may do so.
func (s *Service) DiscardManualTask(ctx context.Context, user model.User, taskID string) error {
	task, found, err := s.store.FindTask(ctx, model.TaskTypeManual, taskID)
	if err != nil {
		return err
	}
	if !found {
		return ErrTaskNotFound
	}
	if task.UserEmail != user.Email {
		return ErrNotTaskOwner
	}

	if _, err := s.store.DeleteTask(ctx, model.TaskTypeManual, taskID); err != nil {
		return err
	}
	return nil
}

// SetTaskPriority toggles the priority of a task: requesting the level it
// already has resets it to unset, any other level replaces it.
func (s *Service) SetTaskPriority(
	ctx context.Context,
	taskType model.TaskType,
	taskID string,
	priority int,
) (model.AdminTask, error) {
	switch priority {
	case model.PriorityHigh, model.PriorityMedium, model.PriorityLow:
	default:
		return model.AdminTask{}, ErrInvalidPriority
	}

	task, found, err := s.store.FindTask(ctx, taskType, taskID)
	if err != nil {
		return model.AdminTask{}, err
	}
	if !found {
		return model.AdminTask{}, ErrTaskNotFound
	}

	if task.Priority == priority {
		task.Priority = model.PriorityUnset
	} else {
		task.Priority = priority
	}

	if err := s.store.UpdateTaskPriority(ctx, task.ID, task.Priority); err != nil {
		return model.AdminTask{}, err
	}
	return task, nil
}

// HandleSubscriptionTask accepts, rejects or discards a pending
// subscription request, records the decision, and removes the task.
func (s *Service) HandleSubscriptionTask(
	ctx context.Context,
	user model.User,
	listID string,
	token string,
	decision model.Decision,
) error {
	switch decision {
	case model.DecisionAccept, model.DecisionReject, model.DecisionDiscard:
	default:
		return ErrInvalidDecision
	}

	task, err := s.authorizeTask(ctx, user, model.TaskTypeSubscription, listID, token)
	if err != nil {
		return err
	}

	if err := s.remote.HandleRequest(ctx, listID, token, mailman.Action(decision)); err != nil {
		return err
	}
	return s.recordDecision(ctx, user, task, decision)
}

// HandleModerationTask accepts, rejects, discards or defers a held message
// and records the decision. The task is removed unless the message stays
// held.
func (s *Service) HandleModerationTask(
	ctx context.Context,
	user model.User,
	listID string,
	requestID string,
	decision model.Decision,
) error {
	switch decision {
	case model.DecisionAccept, model.DecisionReject, model.DecisionDiscard, model.DecisionDefer:
	default:
		return ErrInvalidDecision
	}

	task, err := s.authorizeTask(ctx, user, model.TaskTypeModeration, listID, requestID)
	if err != nil {
		return err
	}

	if err := s.remote.ModerateMessage(ctx, listID, requestID, mailman.Action(decision)); err != nil {
		return err
	}
	return s.recordDecision(ctx, user, task, decision)
}

// AddRole grants role on the list to email. Granting the subscriber role
// subscribes the address without confirmation. Only list owners and
// superusers may grant roles.
func (s *Service) AddRole(
	ctx context.Context,
	user model.User,
	listID string,
	role model.Role,
	email string,
) error {
	list, err := s.findList(ctx, listID)
	if err != nil {
		return err
	}
	if !user.Superuser && !list.IsOwner(user.Email) {
		return ErrForbidden
	}

	switch role {
	case model.RoleOwner:
		if list.IsOwner(email) {
			return fmt.Errorf("%s is already an owner of %s: %w", email, listID, ErrAlreadyInRole)
		}
	case model.RoleModerator:
		if list.IsModerator(email) {
			return fmt.Errorf("%s is already a moderator of %s: %w", email, listID, ErrAlreadyInRole)
		}
	case model.RoleSubscriber:
	default:
		return ErrUnknownRole
	}

	if err := s.remote.AddRole(ctx, listID, role, email); err != nil {
		return fmt.Errorf("the %s could not be added: %w", role, err)
	}

	s.log.WithFields(logrus.Fields{
		"list_id": listID,
		"role":    role,
		"email":   email,
		"user":    user.Email,
	}).Info("role added")
	return nil
}

// RemoveRole revokes role on the list from email. Owners and moderators
// must currently hold the role; removing a subscriber unsubscribes them.
// Only list owners and superusers may remove roles.
func (s *Service) RemoveRole(
	ctx context.Context,
	user model.User,
	listID string,
	role model.Role,
	email string,
) error {
	list, err := s.findList(ctx, listID)
	if err != nil {
		return err
	}
	if !user.Superuser && !list.IsOwner(user.Email) {
		return ErrForbidden
	}

	switch role {
	case model.RoleOwner:
		if !list.IsOwner(email) {
			return fmt.Errorf("%s is not an owner of %s: %w", email, listID, ErrNotInRole)
		}
	case model.RoleModerator:
		if !list.IsModerator(email) {
			return fmt.Errorf("%s is not a moderator of %s: %w", email, listID, ErrNotInRole)
		}
	case model.RoleSubscriber:
	default:
		return ErrUnknownRole
	}

	if err := s.remote.RemoveRole(ctx, listID, role, email); err != nil {
		return fmt.Errorf("the %s could not be removed: %w", role, err)
	}

	s.log.WithFields(logrus.Fields{
		"list_id": listID,
		"role":    role,
		"email":   email,
		"user":    user.Email,
	}).Info("role removed")
	return nil
}

// authorizeTask looks the task up and checks that user may decide on it.
func (s *Service) authorizeTask(
	ctx context.Context,
	user model.User,
	taskType model.TaskType,
	listID string,
	taskID string,
) (model.AdminTask, error) {
	task, found, err := s.store.FindTask(ctx, taskType, taskID)
	if err != nil {
		return model.AdminTask{}, err
	}
	if !found || task.ListID != listID {
		return model.AdminTask{}, ErrTaskNotFound
	}

	list, err := s.findList(ctx, listID)
	if err != nil {
		return model.AdminTask{}, err
	}
	if !access.CanHandle(user, taskType, list) {
		return model.AdminTask{}, ErrForbidden
	}
	return task, nil
}

// recordDecision appends the decision to the event log and drops the task
// unless it was deferred.
func (s *Service) recordDecision(
	ctx context.Context,
	user model.User,
	task model.AdminTask,
	decision model.Decision,
) error {
	event, err := s.store.CreateEvent(ctx, model.Event{
		UserEmail: task.UserEmail,
		EventOp:   user.Email,
		Event:     model.EventTag(task.TaskType, decision),
		ListID:    task.ListID,
		MadeOn:    s.now(),
	})
	if err != nil {
		return err
	}

	if decision != model.DecisionDefer {
		if _, err := s.store.DeleteTask(ctx, task.TaskType, task.TaskID); err != nil {
			return err
		}
	}

	s.log.WithFields(logrus.Fields{
		"event":   event.Event,
		"task_id": task.TaskID,
		"list_id": task.ListID,
		"user":    user.Email,
	}).Info("decision recorded")
	return nil
}

func (s *Service) findList(ctx context.Context, listID string) (model.MailingList, error) {
	lists, err := s.remote.Lists(ctx)
	if err != nil {
		return model.MailingList{}, fmt.Errorf("loading lists: %w", err)
	}
	for _, l := range lists {
		if l.ListID == listID {
			return l, nil
		}
	}
	return model.MailingList{}, ErrListNotFound
}

func listIDs(lists []model.MailingList) []string {
	ids := make([]string, 0, len(lists))
	for _, l := range lists {
		ids = append(ids, l.ListID)
	}
	return ids
}
