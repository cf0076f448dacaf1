package mailman

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/nhle/listadmin/internal/model"
)

// Action is a decision sent to a held message or a subscription request.
type Action string

const (
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
	ActionDiscard Action = "discard"
	ActionDefer   Action = "defer"
)

// Adapter exposes the Mailman REST resources the dashboard works with,
// translated into model types.
type Adapter struct {
	client *Client
}

// NewAdapter creates a new Mailman adapter.
func NewAdapter(baseURL, user, pass string, timeout time.Duration) *Adapter {
	return &Adapter{client: NewClient(baseURL, user, pass, timeout)}
}

// NewAdapterFromConfig creates an adapter from the application config. The
// password argument overrides the configured one when non-empty.
func NewAdapterFromConfig(cfg model.MailmanConfig, password string) *Adapter {
	if password == "" {
		password = cfg.APIPass
	}
	return NewAdapter(
		cfg.APIURL,
		cfg.APIUser,
		password,
		time.Duration(cfg.TimeoutSec)*time.Second,
	)
}

// ValidateConnection verifies credentials by calling GET /system/versions.
// Returns the server's Mailman version on success.
func (a *Adapter) ValidateConnection(ctx context.Context) (string, error) {
	var versions struct {
		MailmanVersion string `json:"mailman_version"`
	}
	if err := a.client.Get(ctx, "/system/versions", &versions); err != nil {
		return "", fmt.Errorf("validating Mailman connection: %w", err)
	}
	return versions.MailmanVersion, nil
}

// Lists returns every list on the server together with its owner and
// moderator rosters.
func (a *Adapter) Lists(ctx context.Context) ([]model.MailingList, error) {
	var page ListPage
	if err := a.client.Get(ctx, "/lists", &page); err != nil {
		return nil, fmt.Errorf("fetching lists: %w", err)
	}

	lists := make([]model.MailingList, 0, len(page.Entries))
	for _, info := range page.Entries {
		owners, err := a.Roster(ctx, info.ListID, model.RoleOwner)
		if err != nil {
			return nil, err
		}
		moderators, err := a.Roster(ctx, info.ListID, model.RoleModerator)
		if err != nil {
			return nil, err
		}
		lists = append(lists, model.MailingList{
			ListID:       info.ListID,
			FQDNListName: info.FQDNListName,
			DisplayName:  info.DisplayName,
			MailHost:     info.MailHost,
			Owners:       owners,
			Moderators:   moderators,
		})
	}
	return lists, nil
}

// Roster returns the email addresses holding role on the list.
func (a *Adapter) Roster(ctx context.Context, listID string, role model.Role) ([]string, error) {
	var page RosterPage
	path := fmt.Sprintf("/lists/%s/roster/%s", url.PathEscape(listID), memberRole(role))
	if err := a.client.Get(ctx, path, &page); err != nil {
		return nil, fmt.Errorf("fetching %s roster of %s: %w", role, listID, err)
	}

	emails := make([]string, 0, len(page.Entries))
	for _, m := range page.Entries {
		emails = append(emails, m.Email)
	}
	return emails, nil
}

// Domains returns the mail hosts served by the server.
func (a *Adapter) Domains(ctx context.Context) ([]model.Domain, error) {
	var page DomainPage
	if err := a.client.Get(ctx, "/domains", &page); err != nil {
		return nil, fmt.Errorf("fetching domains: %w", err)
	}

	domains := make([]model.Domain, 0, len(page.Entries))
	for _, d := range page.Entries {
		domains = append(domains, model.Domain{MailHost: d.MailHost, BaseURL: d.BaseURL})
	}
	return domains, nil
}

// HeldMessages returns the held messages of every given list.
func (a *Adapter) HeldMessages(
	ctx context.Context,
	lists []model.MailingList,
) ([]model.HeldMessage, error) {
	var held []model.HeldMessage
	for _, l := range lists {
		var page HeldPage
		path := fmt.Sprintf("/lists/%s/held", url.PathEscape(l.ListID))
		if err := a.client.Get(ctx, path, &page); err != nil {
			return nil, fmt.Errorf("fetching held messages of %s: %w", l.ListID, err)
		}
		for _, h := range page.Entries {
			held = append(held, heldToModel(h, l.FQDNListName))
		}
	}
	return held, nil
}

// HeldMessage returns a single held message.
func (a *Adapter) HeldMessage(
	ctx context.Context,
	list model.MailingList,
	requestID string,
) (model.HeldMessage, error) {
	var h Held
	path := fmt.Sprintf("/lists/%s/held/%s", url.PathEscape(list.ListID), url.PathEscape(requestID))
	if err := a.client.Get(ctx, path, &h); err != nil {
		return model.HeldMessage{}, fmt.Errorf("fetching held message %s: %w", requestID, err)
	}
	return heldToModel(h, list.FQDNListName), nil
}

// SubscriptionRequests returns the pending subscription requests of every
// given list.
func (a *Adapter) SubscriptionRequests(
	ctx context.Context,
	lists []model.MailingList,
) ([]model.SubscriptionRequest, error) {
	var requests []model.SubscriptionRequest
	for _, l := range lists {
		var page RequestPage
		path := fmt.Sprintf("/lists/%s/requests", url.PathEscape(l.ListID))
		if err := a.client.Get(ctx, path, &page); err != nil {
			return nil, fmt.Errorf("fetching subscription requests of %s: %w", l.ListID, err)
		}
		for _, r := range page.Entries {
			listID := r.ListID
			if listID == "" {
				listID = l.ListID
			}
			requests = append(requests, model.SubscriptionRequest{
				Token:       r.Token,
				RequestDate: r.RequestDate.Time,
				Email:       r.Email,
				ListID:      listID,
			})
		}
	}
	return requests, nil
}

// ModerateMessage sends a decision for a held message.
func (a *Adapter) ModerateMessage(
	ctx context.Context,
	listID string,
	requestID string,
	action Action,
) error {
	path := fmt.Sprintf("/lists/%s/held/%s", url.PathEscape(listID), url.PathEscape(requestID))
	if err := a.client.Post(ctx, path, actionBody{Action: string(action)}, nil); err != nil {
		return fmt.Errorf("sending %s for held message %s: %w", action, requestID, err)
	}
	return nil
}

// HandleRequest sends a decision for a subscription request. Deferring a
// subscription request is not supported by the server.
func (a *Adapter) HandleRequest(
	ctx context.Context,
	listID string,
	token string,
	action Action,
) error {
	if action == ActionDefer {
		return fmt.Errorf("subscription requests cannot be deferred")
	}
	path := fmt.Sprintf("/lists/%s/requests/%s", url.PathEscape(listID), url.PathEscape(token))
	if err := a.client.Post(ctx, path, actionBody{Action: string(action)}, nil); err != nil {
		return fmt.Errorf("sending %s for request %s: %w", action, token, err)
	}
	return nil
}

// AddRole grants role on the list to email. Granting the subscriber role
// subscribes the address without confirmation.
func (a *Adapter) AddRole(ctx context.Context, listID string, role model.Role, email string) error {
	body := subscribeBody{
		ListID:       listID,
		Subscriber:   email,
		Role:         memberRole(role),
		PreVerified:  true,
		PreConfirmed: true,
		PreApproved:  true,
	}
	if err := a.client.Post(ctx, "/members", body, nil); err != nil {
		return fmt.Errorf("adding %s as %s of %s: %w", email, role, listID, err)
	}
	return nil
}

// RemoveRole revokes role on the list from email. Removing the subscriber
// role unsubscribes the address.
func (a *Adapter) RemoveRole(ctx context.Context, listID string, role model.Role, email string) error {
	path := fmt.Sprintf("/lists/%s/%s/%s",
		url.PathEscape(listID), memberRole(role), url.PathEscape(email))
	if err := a.client.Delete(ctx, path); err != nil {
		return fmt.Errorf("removing %s as %s of %s: %w", email, role, listID, err)
	}
	return nil
}

func memberRole(role model.Role) string {
	if role == model.RoleSubscriber {
		return "member"
	}
	return string(role)
}

func heldToModel(h Held, fqdnListName string) model.HeldMessage {
	msg := model.HeldMessage{
		RequestID:    h.RequestID.String(),
		HoldDate:     h.HoldDate.Time,
		Sender:       h.Sender,
		Subject:      h.Subject,
		Msg:          h.Msg,
		Reason:       h.Reason,
		FQDNListName: fqdnListName,
	}
	if msg.Subject == "" && msg.Msg != "" {
		if parsed, err := ParseMessage(msg.Msg); err == nil {
			msg.Subject = parsed.Subject
		}
	}
	return msg
}
