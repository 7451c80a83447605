package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChannelType identifies a delivery channel.
type ChannelType string

const (
	ChannelEmail ChannelType = "email"
	ChannelSMS   ChannelType = "sms"
)

// ParseChannel accepts "email" or "sms" (case-insensitive).
func ParseChannel(s string) (ChannelType, bool) {
	switch ChannelType(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelEmail:
		return ChannelEmail, true
	case ChannelSMS:
		return ChannelSMS, true
	default:
		return "", false
	}
}

// Status is the delivery state of one outbound unit.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool { return s == StatusSuccess || s == StatusFailure }

// ReceiveObjectType is the recipient category of an object-type fan-out.
type ReceiveObjectType string

const (
	ObjectUser     ReceiveObjectType = "USER"
	ObjectDept     ReceiveObjectType = "DEPT"
	ObjectGroup    ReceiveObjectType = "GROUP"
	ObjectTenant   ReceiveObjectType = "TENANT"
	ObjectToPolicy ReceiveObjectType = "TO_POLICY"
	ObjectPolicy   ReceiveObjectType = "POLICY"
	ObjectAll      ReceiveObjectType = "ALL"
)

func (t ReceiveObjectType) Valid() bool {
	switch t {
	case ObjectUser, ObjectDept, ObjectGroup, ObjectTenant, ObjectToPolicy, ObjectPolicy, ObjectAll:
		return true
	}
	return false
}

// DefaultPageSize is the resolver page size used for object-type fan-out.
const DefaultPageSize = 500

// MaxFailureReason bounds Message.FailureReason (in runes).
const MaxFailureReason = 200

// Receive describes an object-type fan-out target.
type Receive struct {
	ObjectType  ReceiveObjectType
	ObjectIDs   []string
	PolicyCodes []string
}

// Empty reports whether no fan-out target is described.
func (r *Receive) Empty() bool { return r == nil || r.ObjectType == "" }

// Origin tells the dispatcher who is waiting on the result.
type Origin int

const (
	// OriginInteractive callers receive provider failures as errors.
	OriginInteractive Origin = iota
	// OriginScheduled callers (jobs) get failures recorded and swallowed per unit.
	OriginScheduled
)

func (o Origin) String() string {
	if o == OriginScheduled {
		return "scheduled"
	}
	return "interactive"
}

// DispatchContext carries the caller identity explicitly through a send.
type DispatchContext struct {
	ActingUserID uuid.UUID
	TenantID     uuid.UUID
	Origin       Origin
}

// Message is one outbound unit for either channel.
type Message struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	CreatedBy       uuid.UUID
	Channel         ChannelType
	ChannelConfigID *uuid.UUID

	TemplateCode string
	From         string
	Subject      string
	Body         string

	Destinations []string
	Params       map[string]string
	// ParamSets holds per-destination variables; more than one set selects the batch provider call.
	ParamSets []map[string]string
	Receive   *Receive

	SendNow          bool
	Batch            bool
	Test             bool
	VerificationCode bool
	BizKey           string
	Code             string
	ValidSeconds     int

	Status           Status
	FailureReason    string
	ExpectedSendDate *time.Time
	ActualSendDate   *time.Time
	RetryCount       int

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Immediate reports whether the unit is delivered synchronously.
func (m *Message) Immediate() bool { return m.Test || m.VerificationCode || m.SendNow }

// Transition moves the unit to the next status. Terminal statuses are final.
func (m *Message) Transition(next Status) error {
	if m.Status.Terminal() && m.Status != next {
		return ErrTerminalStatus
	}
	m.Status = next
	return nil
}

// Rekey mints a new id and clears per-unit delivery state so the unit can be sent again
// for the next fan-out page.
func (m *Message) Rekey() {
	m.ID = uuid.New()
	m.Status = ""
	m.FailureReason = ""
	m.ActualSendDate = nil
	m.CreatedAt = time.Time{}
	m.UpdatedAt = time.Time{}
}

// Clone copies the unit with its own destination slice and param map.
func (m *Message) Clone() *Message {
	c := *m
	c.Destinations = append([]string(nil), m.Destinations...)
	if m.Params != nil {
		c.Params = make(map[string]string, len(m.Params))
		for k, v := range m.Params {
			c.Params[k] = v
		}
	}
	return &c
}

// SetFailure records a FAILURE with a reason bounded to MaxFailureReason runes.
func (m *Message) SetFailure(reason string) {
	m.Status = StatusFailure
	m.FailureReason = Truncate(reason, MaxFailureReason)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Contact is a directory row; which address is used depends on the channel.
type Contact struct {
	UserID uuid.UUID
	Seq    int64
	Email  string
	Mobile string
}

// ChannelConfig is a configured transport for one channel within a tenant.
type ChannelConfig struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	Channel       ChannelType
	Name          string
	Provider      string
	Enabled       bool
	From          string
	SubjectPrefix string
	Settings      map[string]string
}

// Template is a stored message template.
type Template struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	Channel             ChannelType
	Code                string
	Subject             string
	Content             string
	CodeValiditySeconds int
	Enabled             bool
}

// Report summarises one logical send.
type Report struct {
	MessageIDs []uuid.UUID
	Sent       int
	Failed     int
	Pending    int
	Failures   []*DispatchFailure
}

// Record accounts for a persisted unit and its failure, if any.
func (r *Report) Record(m *Message, f *DispatchFailure) {
	r.MessageIDs = append(r.MessageIDs, m.ID)
	switch m.Status {
	case StatusSuccess:
		r.Sent++
	case StatusFailure:
		r.Failed++
	case StatusPending:
		r.Pending++
	}
	if f != nil {
		r.Failures = append(r.Failures, f)
	}
}
