package workflow

import (
	"time"
)

//Urgency is the alerting severity of a line, derived from time left
type Urgency string

//UrgencyOverdue - latest safe start time already passed
const UrgencyOverdue Urgency = "overdue"

//UrgencyUrgent - must start within 30 minutes
const UrgencyUrgent Urgency = "urgent"

//UrgencyHigh - must start within 60 minutes
const UrgencyHigh Urgency = "high"

//UrgencyNormal - no time pressure
const UrgencyNormal Urgency = "normal"

const (
	urgentSlack = 30 * time.Minute
	highSlack   = 60 * time.Minute
)

//Classify computes the alerting urgency of a line.
//The trigger is the latest safe start time (deadline minus estimated work),
//not the deadline itself: urgency rises before the deadline, proportional
//to the remaining work.
//Pure: identical inputs at identical now yield identical output.
func Classify(status Status, deadline *time.Time, estimatedWorkMins *int, now time.Time) Urgency {
	//finished work never alarms
	if status == StatusDone || status == StatusDelivered {
		return UrgencyNormal
	}
	//no deadline means client on site, no pressure
	if deadline == nil {
		return UrgencyNormal
	}
	work := DefaultWorkMinutes
	if estimatedWorkMins != nil {
		work = *estimatedWorkMins
	}
	mustStartBy := deadline.Add(-time.Duration(work) * time.Minute)
	slack := mustStartBy.Sub(now)
	switch {
	case slack < 0:
		return UrgencyOverdue
	case slack <= urgentSlack:
		return UrgencyUrgent
	case slack <= highSlack:
		return UrgencyHigh
	default:
		return UrgencyNormal
	}
}

//ClassifyLine is Classify over a line
func ClassifyLine(o OrderLine, now time.Time) Urgency {
	return Classify(o.Status, o.Deadline, o.EstimatedWorkMins, now)
}

//OverdueBy returns how long the line is past its latest safe start time,
//zero when it is not
func OverdueBy(o OrderLine, now time.Time) time.Duration {
	if o.Deadline == nil {
		return 0
	}
	mustStartBy := o.Deadline.Add(-time.Duration(o.WorkMinutes()) * time.Minute)
	d := now.Sub(mustStartBy)
	if d < 0 {
		return 0
	}
	return d
}

//DisplayBucket is the coarse 0-5 bucket used for sorting and coloring.
//Unlike Classify it compares raw time until deadline, not work adjusted.
//0 is past deadline, 5 is far away or no deadline.
func DisplayBucket(deadline *time.Time, now time.Time) int {
	if deadline == nil {
		return 5
	}
	left := deadline.Sub(now)
	switch {
	case left < 0:
		return 0
	case left <= time.Hour:
		return 1
	case left <= 3*time.Hour:
		return 2
	case left <= 8*time.Hour:
		return 3
	case left <= 24*time.Hour:
		return 4
	default:
		return 5
	}
}

//CompareDisplay orders lines for display: express lines first,
//express lines with no deadline (client on site) ahead of express with one,
//then by bucket, then by deadline.
//Returns negative when a sorts before b.
func CompareDisplay(a, b OrderLine, now time.Time) int {
	ae, be := a.Express == ExpressYes, b.Express == ExpressYes
	if ae != be {
		if ae {
			return -1
		}
		return 1
	}
	if ae && be {
		if a.OnSite() != b.OnSite() {
			if a.OnSite() {
				return -1
			}
			return 1
		}
	}
	ab, bb := DisplayBucket(a.Deadline, now), DisplayBucket(b.Deadline, now)
	if ab != bb {
		return ab - bb
	}
	switch {
	case a.Deadline == nil && b.Deadline == nil:
		return 0
	case a.Deadline == nil:
		return 1
	case b.Deadline == nil:
		return -1
	case a.Deadline.Before(*b.Deadline):
		return -1
	case b.Deadline.Before(*a.Deadline):
		return 1
	}
	return 0
}
