package sync

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	gosync "sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/listadmin/internal/model"
	"github.com/nhle/listadmin/internal/store"
)

// State represents the current state of the synchronizer.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateError
)

// Status holds the outcome of the most recent pass.
type Status struct {
	State    State
	LastSync time.Time
	Error    error
}

// Remote is the read side of the Mailman server the synchronizer mirrors.
type Remote interface {
	HeldMessages(ctx context.Context, lists []model.MailingList) ([]model.HeldMessage, error)
	SubscriptionRequests(ctx context.Context, lists []model.MailingList) ([]model.SubscriptionRequest, error)
}

// Env carries everything a pass needs. Nothing is read from package state.
type Env struct {
	Remote Remote
	Store  store.Store
	Log    logrus.FieldLogger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Snapshot is the set of requests pending on the server at one moment,
// each slice sorted oldest first.
type Snapshot struct {
	Held     []model.HeldMessage
	Requests []model.SubscriptionRequest
}

// Result summarizes a pass.
type Result struct {
	NewModeration   []model.AdminTask
	NewSubscription []model.AdminTask
	Removed         int
}

// Synchronizer mirrors the server's moderation and subscription queues
// into the local task store.
type Synchronizer struct {
	env Env

	mu     gosync.Mutex
	status Status
}

// New creates a Synchronizer for env.
func New(env Env) *Synchronizer {
	if env.Now == nil {
		env.Now = time.Now
	}
	if env.Log == nil {
		log := logrus.New()
		log.SetOutput(io.Discard)
		env.Log = log
	}
	return &Synchronizer{env: env}
}

// Status returns the outcome of the most recent pass.
func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Sync runs one full pass over lists: fetch both queues, store the tasks
// not seen before, then drop stored tasks that are no longer pending.
// Nothing is written unless both queues were fetched.
func (s *Synchronizer) Sync(ctx context.Context, lists []model.MailingList) (Result, error) {
	s.setStatus(StateRunning, nil)

	result, err := s.sync(ctx, lists)
	if err != nil {
		s.setStatus(StateError, err)
		return result, err
	}

	s.setStatus(StateIdle, nil)
	s.env.Log.WithFields(logrus.Fields{
		"lists":            len(lists),
		"new_moderation":   len(result.NewModeration),
		"new_subscription": len(result.NewSubscription),
		"removed":          result.Removed,
	}).Info("task sync complete")
	return result, nil
}

func (s *Synchronizer) sync(ctx context.Context, lists []model.MailingList) (Result, error) {
	var result Result

	snap, err := s.Fetch(ctx, lists)
	if err != nil {
		return result, err
	}

	result.NewModeration, err = s.CreateModerationTasks(ctx, snap.Held)
	if err != nil {
		return result, err
	}

	result.NewSubscription, err = s.CreateSubscriptionTasks(ctx, snap.Requests)
	if err != nil {
		return result, err
	}

	result.Removed, err = s.SyncTasksToCurrent(ctx, snap)
	if err != nil {
		return result, err
	}

	return result, nil
}

// Fetch reads both queues for lists and returns them sorted oldest first,
// ties broken by id.
func (s *Synchronizer) Fetch(ctx context.Context, lists []model.MailingList) (Snapshot, error) {
	held, err := s.env.Remote.HeldMessages(ctx, lists)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetching moderation queue: %w", err)
	}

	requests, err := s.env.Remote.SubscriptionRequests(ctx, lists)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetching subscription queue: %w", err)
	}

	sort.SliceStable(held, func(i, j int) bool {
		if !held[i].HoldDate.Equal(held[j].HoldDate) {
			return held[i].HoldDate.Before(held[j].HoldDate)
		}
		return requestIDLess(held[i].RequestID, held[j].RequestID)
	})
	sort.SliceStable(requests, func(i, j int) bool {
		if !requests[i].RequestDate.Equal(requests[j].RequestDate) {
			return requests[i].RequestDate.Before(requests[j].RequestDate)
		}
		return requests[i].Token < requests[j].Token
	})

	return Snapshot{Held: held, Requests: requests}, nil
}

// requestIDLess orders held-message request ids numerically when both are
// integers and lexically otherwise.
func requestIDLess(a, b string) bool {
	x, errA := strconv.ParseInt(a, 10, 64)
	y, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return x < y
	}
	return a < b
}

// CreateModerationTasks stores a moderation task for every held message
// not already stored and returns the tasks that were created.
func (s *Synchronizer) CreateModerationTasks(
	ctx context.Context,
	held []model.HeldMessage,
) ([]model.AdminTask, error) {
	tasks := make([]model.AdminTask, 0, len(held))
	for _, h := range held {
		tasks = append(tasks, ModerationTask(h))
	}
	return s.createTasks(ctx, model.TaskTypeModeration, tasks)
}

// CreateSubscriptionTasks stores a subscription task for every request not
// already stored and returns the tasks that were created.
func (s *Synchronizer) CreateSubscriptionTasks(
	ctx context.Context,
	requests []model.SubscriptionRequest,
) ([]model.AdminTask, error) {
	tasks := make([]model.AdminTask, 0, len(requests))
	for _, r := range requests {
		tasks = append(tasks, SubscriptionTask(r))
	}
	return s.createTasks(ctx, model.TaskTypeSubscription, tasks)
}

// createTasks records every candidate whose id is not yet stored. The store
// bumps the statistics calendar only for rows it actually inserted, so a
// concurrent pass that got there first is not counted twice.
func (s *Synchronizer) createTasks(
	ctx context.Context,
	taskType model.TaskType,
	candidates []model.AdminTask,
) ([]model.AdminTask, error) {
	stored, err := s.env.Store.TaskIDs(ctx, taskType)
	if err != nil {
		return nil, fmt.Errorf("loading stored %s tasks: %w", taskType, err)
	}

	var created []model.AdminTask
	for _, task := range candidates {
		if stored[task.TaskID] {
			continue
		}

		inserted, err := s.env.Store.RecordNewTask(ctx, task)
		if err != nil {
			return created, fmt.Errorf("recording %s task %s: %w", taskType, task.TaskID, err)
		}
		stored[task.TaskID] = true
		if !inserted {
			s.env.Log.WithFields(logrus.Fields{
				"task_type": taskType,
				"task_id":   task.TaskID,
			}).Debug("task already stored by another pass")
			continue
		}

		s.env.Log.WithFields(logrus.Fields{
			"task_type": taskType,
			"task_id":   task.TaskID,
			"list_id":   task.ListID,
		}).Debug("new task")
		created = append(created, task)
	}
	return created, nil
}

// SyncTasksToCurrent deletes every stored subscription or moderation task
// that is absent from snap. Manual tasks are never touched. It returns the
// number of tasks removed.
func (s *Synchronizer) SyncTasksToCurrent(ctx context.Context, snap Snapshot) (int, error) {
	pending := map[model.TaskType]map[string]bool{
		model.TaskTypeModeration:   make(map[string]bool, len(snap.Held)),
		model.TaskTypeSubscription: make(map[string]bool, len(snap.Requests)),
	}
	for _, h := range snap.Held {
		pending[model.TaskTypeModeration][h.RequestID] = true
	}
	for _, r := range snap.Requests {
		pending[model.TaskTypeSubscription][r.Token] = true
	}

	removed := 0
	for _, taskType := range []model.TaskType{model.TaskTypeModeration, model.TaskTypeSubscription} {
		stored, err := s.env.Store.TaskIDs(ctx, taskType)
		if err != nil {
			return removed, fmt.Errorf("loading stored %s tasks: %w", taskType, err)
		}

		for taskID := range stored {
			if pending[taskType][taskID] {
				continue
			}
			deleted, err := s.env.Store.DeleteTask(ctx, taskType, taskID)
			if err != nil {
				return removed, fmt.Errorf("removing stale %s task %s: %w", taskType, taskID, err)
			}
			if deleted {
				removed++
				s.env.Log.WithFields(logrus.Fields{
					"task_type": taskType,
					"task_id":   taskID,
				}).Debug("removed task no longer pending")
			}
		}
	}
	return removed, nil
}

// ModerationTask builds the task mirroring a held message.
func ModerationTask(h model.HeldMessage) model.AdminTask {
	return model.AdminTask{
		TaskID:     h.RequestID,
		TaskType:   model.TaskTypeModeration,
		MadeOn:     h.HoldDate,
		UserEmail:  h.Sender,
		ListID:     model.ListIDFromFQDN(h.FQDNListName),
		Priority:   model.PriorityUnset,
		MsgSubject: h.Subject,
		MsgData:    h.Msg,
	}
}

// SubscriptionTask builds the task mirroring a subscription request.
func SubscriptionTask(r model.SubscriptionRequest) model.AdminTask {
	return model.AdminTask{
		TaskID:    r.Token,
		TaskType:  model.TaskTypeSubscription,
		MadeOn:    r.RequestDate,
		UserEmail: r.Email,
		ListID:    r.ListID,
		Priority:  model.PriorityUnset,
	}
}

// setStatus updates the synchronizer status.
func (s *Synchronizer) setStatus(state State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.State = state
	s.status.Error = err
	if state == StateIdle && err == nil {
		s.status.LastSync = s.env.Now()
	}
}
