// Package access narrows lists, tasks and events to what a dashboard
// viewer may see. Every function is pure and never adds items.
package access

import "github.com/nhle/listadmin/internal/model"

// roles records which administrative roles a user holds across a set of
// lists.
type roles struct {
	owner     bool
	moderator bool
}

func rolesIn(user model.User, lists []model.MailingList) roles {
	var r roles
	for _, l := range lists {
		if l.IsOwner(user.Email) {
			r.owner = true
		}
		if l.IsModerator(user.Email) {
			r.moderator = true
		}
		if r.owner && r.moderator {
			break
		}
	}
	return r
}

// HasControlAccess reports whether user may open the dashboard: superusers
// always can, anyone else must own or moderate at least one list.
func HasControlAccess(user model.User, lists []model.MailingList) bool {
	if user.Superuser {
		return true
	}
	r := rolesIn(user, lists)
	return r.owner || r.moderator
}

// AllowedLists returns the lists user administers, in input order.
func AllowedLists(user model.User, lists []model.MailingList) []model.MailingList {
	if user.Superuser {
		return lists
	}

	allowed := make([]model.MailingList, 0, len(lists))
	for _, l := range lists {
		if l.IsOwner(user.Email) || l.IsModerator(user.Email) {
			allowed = append(allowed, l)
		}
	}
	return allowed
}

// EventsAllowed returns the activity feed entries user may see. Moderators
// see moderation decisions and owners see subscription decisions.
func EventsAllowed(user model.User, events []model.Event, lists []model.MailingList) []model.Event {
	if user.Superuser {
		return events
	}

	r := rolesIn(user, lists)
	allowed := make([]model.Event, 0, len(events))
	if !r.owner && !r.moderator {
		return allowed
	}

	for _, e := range events {
		if (r.moderator && e.IsModeration()) || (r.owner && e.IsSubscription()) {
			allowed = append(allowed, e)
		}
	}
	return allowed
}

// EventKinds returns the task types whose decisions user may see in the
// activity feed, matching EventsAllowed.
func EventKinds(user model.User, lists []model.MailingList) []model.TaskType {
	if user.Superuser {
		return []model.TaskType{model.TaskTypeModeration, model.TaskTypeSubscription}
	}

	r := rolesIn(user, lists)
	var kinds []model.TaskType
	if r.moderator {
		kinds = append(kinds, model.TaskTypeModeration)
	}
	if r.owner {
		kinds = append(kinds, model.TaskTypeSubscription)
	}
	return kinds
}

// FilterTasksByRole returns the tasks user may act on. Superusers see every
// synchronized task; others see subscription tasks on lists they own and
// moderation tasks on lists they own or moderate. Manual tasks are only
// visible to their creator. A task whose list is not in lists is hidden from
// everyone but superusers.
func FilterTasksByRole(user model.User, tasks []model.AdminTask, lists []model.MailingList) []model.AdminTask {
	allowed := make([]model.AdminTask, 0, len(tasks))
	for _, task := range tasks {
		if task.IsManual() {
			if task.UserEmail == user.Email {
				allowed = append(allowed, task)
			}
			continue
		}

		if user.Superuser {
			allowed = append(allowed, task)
			continue
		}

		list, found := findList(lists, task.ListID)
		if found && CanHandle(user, task.TaskType, list) {
			allowed = append(allowed, task)
		}
	}
	return allowed
}

// CanHandle reports whether user may decide on tasks of taskType in list.
func CanHandle(user model.User, taskType model.TaskType, list model.MailingList) bool {
	if user.Superuser {
		return true
	}
	switch taskType {
	case model.TaskTypeSubscription:
		return list.IsOwner(user.Email)
	case model.TaskTypeModeration:
		return list.IsOwner(user.Email) || list.IsModerator(user.Email)
	}
	return false
}

func findList(lists []model.MailingList, listID string) (model.MailingList, bool) {
	for _, l := range lists {
		if l.ListID == listID {
			return l, true
		}
	}
	return model.MailingList{}, false
}
