package laposte

import (
	"sort"
	"strings"
	"time"

	"github.com/tournevent/carrierbridge/pkg/shipper"
)

// dedupWindow is the distance under which a log entry repeating the
// description of an already merged event is the same physical event.
const dedupWindow = 60 * time.Second

// Timeline milestone types.
const (
	TimelinePickedUp       = 1
	TimelineInTransit      = 2
	TimelineOutForDelivery = 3
	TimelineDelivered      = 4
	TimelineReturned       = 5
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// MapTimelineType maps a milestone type to a status. Types outside 1..5 are
// not documented and read as in transit.
func MapTimelineType(t int) shipper.ShipmentStatus {
	switch t {
	case TimelinePickedUp:
		return shipper.StatusPickedUp
	case TimelineInTransit:
		return shipper.StatusInTransit
	case TimelineOutForDelivery:
		return shipper.StatusOutForDelivery
	case TimelineDelivered:
		return shipper.StatusDelivered
	case TimelineReturned:
		return shipper.StatusReturned
	}
	return shipper.StatusInTransit
}

// CurrentStatus returns the status of the highest reached milestone type.
// Array order is ignored: milestones may be reported out of order.
func CurrentStatus(timeline []TimelineEntry) shipper.ShipmentStatus {
	maxType, reached := 0, false
	for _, entry := range timeline {
		if !entry.Status {
			continue
		}
		if !reached || entry.Type > maxType {
			maxType = entry.Type
		}
		reached = true
	}
	if !reached {
		return shipper.StatusPending
	}
	return MapTimelineType(maxType)
}

// MergeEvents builds the event list from the reached milestones and the flat
// log, newest first. A log entry is dropped when an already merged event has
// the same description less than a minute away.
func MergeEvents(timeline []TimelineEntry, log []Event) []shipper.CarrierEvent {
	events := make([]shipper.CarrierEvent, 0, len(timeline)+len(log))
	for _, entry := range timeline {
		if !entry.Status {
			continue
		}
		description := entry.LongLabel
		if description == "" {
			description = entry.ShortLabel
		}
		events = append(events, shipper.CarrierEvent{
			Timestamp:   parseDate(entry.Date),
			Description: description,
			Location:    entry.Country,
		})
	}

	for _, evt := range log {
		e := shipper.CarrierEvent{
			Timestamp:   parseDate(evt.Date),
			Description: evt.Label,
			Code:        evt.Code,
		}
		if !isDuplicate(events, e) {
			events = append(events, e)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	return events
}

func isDuplicate(events []shipper.CarrierEvent, e shipper.CarrierEvent) bool {
	for _, existing := range events {
		if existing.Description != e.Description {
			continue
		}
		d := existing.Timestamp.Sub(e.Timestamp)
		if d < 0 {
			d = -d
		}
		if d < dedupWindow {
			return true
		}
	}
	return false
}

// parseDate reads the ISO 8601 dates of the API. Unreadable dates give the
// zero time, which sorts last.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
