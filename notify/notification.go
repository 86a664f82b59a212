/*
Package notify builds role scoped alerts from domain events and applies
the client side alerting policy: sound profile per severity, desktop
deduplication, permission guidance throttling, bounded recent list.
*/
package notify

import (
	"time"

	"github.com/atelier-imprim/prodflow/workflow"
)

//Severity of a notification, urgency levels plus role flavored tones
type Severity string

//SeverityOverdue mirrors urgency
const SeverityOverdue Severity = "overdue"

//SeverityUrgent mirrors urgency
const SeverityUrgent Severity = "urgent"

//SeverityHigh mirrors urgency
const SeverityHigh Severity = "high"

//SeverityNormal mirrors urgency
const SeverityNormal Severity = "normal"

//SeverityInfo - informational role event
const SeverityInfo Severity = "info"

//SeveritySuccess - pleasant tone for completed work events
const SeveritySuccess Severity = "success"

//FromUrgency maps the classifier output to a severity
func FromUrgency(u workflow.Urgency) Severity {
	switch u {
	case workflow.UrgencyOverdue:
		return SeverityOverdue
	case workflow.UrgencyUrgent:
		return SeverityUrgent
	case workflow.UrgencyHigh:
		return SeverityHigh
	}
	return SeverityNormal
}

//Notification types
const (
	TypeEtapeConception = "etape_conception"
	TypeImpressionReady = "impression_ready"
	TypeOrderCompleted  = "order_completed"
	TypeReminderOverdue = "reminder_overdue"
	TypeGuidance        = "desktop_guidance"
)

//Notification is one alert entry pushed to clients.
//It lives in a bounded per client recent list, expires after Duration
//and can be dismissed early.
type Notification struct {
	ID          string        `json:"id"`
	Type        string        `json:"type"`
	Title       string        `json:"title"`
	Message     string        `json:"message"`
	Severity    Severity      `json:"severity"`
	Channels    []string      `json:"channels"`
	OrderID     string        `json:"orderId,omitempty"`
	OrderNumber string        `json:"orderNumber,omitempty"`
	//Tag keys desktop deduplication, one OS popup per tag per window
	Tag       string        `json:"tag,omitempty"`
	Sound     SoundProfile  `json:"sound"`
	CreatedAt time.Time     `json:"createdAt"`
	Duration  time.Duration `json:"duration"`
	//Desktop marks the entry as allowed to raise an OS level alert
	Desktop bool `json:"desktop"`
	//Guidance marks a periodic hint for clients that denied desktop alerts
	Guidance bool `json:"guidance,omitempty"`
}

//Expired reports if the entry outlived its display duration
func (n Notification) Expired(now time.Time) bool {
	return now.Sub(n.CreatedAt) >= n.Duration
}

//SoundProfile describes the alert tone of a severity
type SoundProfile struct {
	FrequencyHz int     `json:"frequencyHz"`
	DurationMs  int     `json:"durationMs"`
	Volume      float64 `json:"volume"`
	Repeat      int     `json:"repeat"`
}

//sounds is the escalation table, harsher and louder as severity rises,
//pleasant two tone style for the role flavored events
var sounds = map[Severity]SoundProfile{
	SeverityOverdue: {FrequencyHz: 880, DurationMs: 700, Volume: 1.0, Repeat: 3},
	SeverityUrgent:  {FrequencyHz: 760, DurationMs: 500, Volume: 0.8, Repeat: 2},
	SeverityHigh:    {FrequencyHz: 640, DurationMs: 400, Volume: 0.6, Repeat: 1},
	SeverityNormal:  {FrequencyHz: 520, DurationMs: 250, Volume: 0.4, Repeat: 1},
	SeverityInfo:    {FrequencyHz: 540, DurationMs: 300, Volume: 0.5, Repeat: 1},
	SeveritySuccess: {FrequencyHz: 620, DurationMs: 350, Volume: 0.5, Repeat: 2},
}

//Sound returns the profile of a severity
func Sound(s Severity) SoundProfile {
	if p, ok := sounds[s]; ok {
		return p
	}
	return sounds[SeverityNormal]
}
