package model

import (
	"slices"
	"time"
)

// MailingList is a list on the Mailman server together with its
// administrative rosters.
type MailingList struct {
	ListID       string   `json:"list_id"`
	FQDNListName string   `json:"fqdn_listname"`
	DisplayName  string   `json:"display_name"`
	MailHost     string   `json:"mail_host"`
	Owners       []string `json:"owners"`
	Moderators   []string `json:"moderators"`
}

// IsOwner reports whether email is an owner of the list.
func (l MailingList) IsOwner(email string) bool {
	return slices.Contains(l.Owners, email)
}

// IsModerator reports whether email is a moderator of the list.
func (l MailingList) IsModerator(email string) bool {
	return slices.Contains(l.Moderators, email)
}

// Domain is a mail host served by the Mailman server.
type Domain struct {
	MailHost string `json:"mail_host"`
	BaseURL  string `json:"base_url"`
}

// Member is a subscriber of a list, as found by a people search.
type Member struct {
	Email  string `json:"email"`
	ListID string `json:"list_id"`
}

// HeldMessage is a message waiting for a moderator decision.
type HeldMessage struct {
	RequestID string    `json:"request_id"`
	HoldDate  time.Time `json:"hold_date"`
	Sender    string    `json:"sender"`
	Subject   string    `json:"subject"`
	Msg       string    `json:"msg"`
	Reason    string    `json:"reason"`

	// FQDNListName is the posting address of the list holding the message.
	FQDNListName string `json:"fqdn_listname"`
}

// SubscriptionRequest is a pending join request waiting for an owner.
type SubscriptionRequest struct {
	Token       string    `json:"token"`
	RequestDate time.Time `json:"request_date"`
	Email       string    `json:"email"`
	ListID      string    `json:"list_id"`
}

// User is the person viewing the dashboard.
type User struct {
	Email     string `json:"email"`
	Superuser bool   `json:"superuser"`
}

// Role names a membership role on a list.
type Role string

const (
	RoleOwner      Role = "owner"
	RoleModerator  Role = "moderator"
	RoleSubscriber Role = "subscriber"
)
