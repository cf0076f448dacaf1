package model

import (
	"fmt"
	"strings"
	"time"
)

// Decision is an action taken on a held message or subscription request.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionReject  Decision = "reject"
	DecisionDiscard Decision = "discard"
	DecisionDefer   Decision = "defer"
)

var pastTense = map[Decision]string{
	DecisionAccept:  "accepted",
	DecisionReject:  "rejected",
	DecisionDiscard: "discarded",
	DecisionDefer:   "deferred",
}

// Event is an append-only record of a moderation or subscription decision.
type Event struct {
	ID string `json:"id" db:"id"`

	// UserEmail is the address the decision was about.
	UserEmail string `json:"user_email" db:"user_email"`

	// EventOp is the address of the administrator who acted.
	EventOp string `json:"event_op" db:"event_op"`

	// Event is the tag, e.g. "subscription-accept".
	Event string `json:"event" db:"event"`

	ListID string    `json:"list_id" db:"list_id"`
	MadeOn time.Time `json:"made_on" db:"made_on"`
}

// EventTag builds the tag stored in Event.Event.
func EventTag(taskType TaskType, d Decision) string {
	return string(taskType) + "-" + string(d)
}

// IsModeration reports whether the event records a moderation decision.
func (e Event) IsModeration() bool {
	return strings.Contains(e.Event, string(TaskTypeModeration))
}

// IsSubscription reports whether the event records a subscription decision.
func (e Event) IsSubscription() bool {
	return strings.Contains(e.Event, string(TaskTypeSubscription))
}

// Describe renders the event as a sentence for the activity feed.
func (e Event) Describe() string {
	actor := capitalize(localPart(e.EventOp))
	user := capitalize(localPart(e.UserEmail))
	list := capitalize(shortListName(e.ListID))

	verb := e.Event
	if _, d, ok := strings.Cut(e.Event, "-"); ok {
		if past, known := pastTense[Decision(d)]; known {
			verb = past
		} else {
			verb = d + "ed"
		}
	}

	switch {
	case e.IsModeration():
		return fmt.Sprintf("%s %s a post from %s in %s", actor, verb, user, list)
	case e.IsSubscription():
		return fmt.Sprintf("%s %s %s's subscription request in %s", actor, verb, user, list)
	default:
		return fmt.Sprintf("%s %s in %s", actor, e.Event, list)
	}
}
