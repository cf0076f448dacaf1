package mailman

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timestampLayouts are the forms Mailman uses for naive UTC timestamps.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

// Timestamp is a REST timestamp. Mailman emits naive values that are
// always in UTC.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON accepts the naive and RFC 3339 forms. Null and the empty
// string decode to the zero time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ParseTimestamp parses a REST timestamp, treating naive values as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ListPage is the response from GET /lists.
type ListPage struct {
	TotalSize int        `json:"total_size"`
	Entries   []ListInfo `json:"entries"`
}

// ListInfo is a single mailing list resource.
type ListInfo struct {
	ListID       string `json:"list_id"`
	FQDNListName string `json:"fqdn_listname"`
	DisplayName  string `json:"display_name"`
	MailHost     string `json:"mail_host"`
	ListName     string `json:"list_name"`
}

// DomainPage is the response from GET /domains.
type DomainPage struct {
	Entries []DomainInfo `json:"entries"`
}

// DomainInfo is a single domain resource.
type DomainInfo struct {
	MailHost    string `json:"mail_host"`
	BaseURL     string `json:"base_url"`
	Description string `json:"description,omitempty"`
}

// RosterPage is the response from GET /lists/{list_id}/roster/{role}.
type RosterPage struct {
	Entries []Member `json:"entries"`
}

// Member is a roster entry.
type Member struct {
	Email       string `json:"email"`
	Role        string `json:"role,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// HeldPage is the response from GET /lists/{list_id}/held.
type HeldPage struct {
	Entries []Held `json:"entries"`
}

// Held is a held message resource.
type Held struct {
	RequestID json.Number `json:"request_id"`
	HoldDate  Timestamp   `json:"hold_date"`
	Sender    string      `json:"sender"`
	Subject   string      `json:"subject"`
	Msg       string      `json:"msg"`
	Reason    string      `json:"reason"`
	MessageID string      `json:"message_id,omitempty"`
}

// RequestPage is the response from GET /lists/{list_id}/requests.
type RequestPage struct {
	Entries []Request `json:"entries"`
}

// Request is a pending subscription request resource.
type Request struct {
	Token       string    `json:"token"`
	RequestDate Timestamp `json:"request_date"`
	Email       string    `json:"email"`
	ListID      string    `json:"list_id"`
	Type        string    `json:"type,omitempty"`
}

// actionBody is the payload of moderation and request decisions.
type actionBody struct {
	Action string `json:"action"`
}

// subscribeBody is the payload of POST /members.
type subscribeBody struct {
	ListID       string `json:"list_id"`
	Subscriber   string `json:"subscriber"`
	Role         string `json:"role"`
	DisplayName  string `json:"display_name,omitempty"`
	PreVerified  bool   `json:"pre_verified"`
	PreConfirmed bool   `json:"pre_confirmed"`
	PreApproved  bool   `json:"pre_approved"`
}
