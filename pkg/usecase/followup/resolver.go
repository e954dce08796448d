package followup

import (
	"time"

	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/inflect-gtm/inflect/pkg/utils/timeparse"
)

const (
	// MatchWindow is the exclusive bound on start time distance for a calendar match
	MatchWindow = 30 * time.Minute
	// SimilarityThreshold is the exclusive lower bound on subject similarity
	SimilarityThreshold = 0.6
)

// ResolveEvent matches meeting against candidates in the given order. The
// first candidate that starts within MatchWindow of the meeting and whose
// summary is similar enough to the meeting subject wins. Without a match the
// result is built from the meeting alone.
func ResolveEvent(meeting *model.MeetingLog, candidates []*model.CalendarEvent, loc *time.Location) *model.ResolvedEvent {
	if meeting == nil {
		meeting = &model.MeetingLog{}
	}

	if start, ok := timeparse.Parse(meeting.StartTime, loc); ok {
		for _, ev := range candidates {
			if ev != nil && matches(meeting, start, ev, loc) {
				return fromCalendar(meeting, ev)
			}
		}
	}

	return fromLog(meeting)
}

func matches(meeting *model.MeetingLog, start time.Time, ev *model.CalendarEvent, loc *time.Location) bool {
	evStart, ok := timeparse.Parse(ev.Start, loc)
	if !ok {
		return false
	}

	delta := evStart.Sub(start)
	if delta < 0 {
		delta = -delta
	}
	if delta >= MatchWindow {
		return false
	}

	return similarity(meeting.Subject, ev.Summary) > SimilarityThreshold
}

func fromCalendar(meeting *model.MeetingLog, ev *model.CalendarEvent) *model.ResolvedEvent {
	subject := meeting.Subject
	if subject == "" {
		subject = ev.Summary
	}

	resolved := &model.ResolvedEvent{
		Found:        true,
		Source:       model.EventSourceCalendar,
		Subject:      subject,
		StartTime:    ev.Start,
		EndTime:      ev.End,
		Participants: append([]model.Attendee{}, ev.Attendees...),
		Emails:       []string{},
		Names:        []string{},
		Event:        ev,
	}

	for _, a := range ev.Attendees {
		if a.Email != "" {
			resolved.Emails = append(resolved.Emails, a.Email)
		}
		if a.DisplayName != "" {
			resolved.Names = append(resolved.Names, a.DisplayName)
		}
	}

	return resolved
}

func fromLog(meeting *model.MeetingLog) *model.ResolvedEvent {
	resolved := &model.ResolvedEvent{
		Found:        false,
		Source:       model.EventSourceLogOnly,
		Subject:      meeting.Subject,
		StartTime:    meeting.StartTime,
		EndTime:      meeting.EndTime,
		Participants: make([]model.Attendee, 0, len(meeting.Participants)),
		Emails:       []string{},
		Names:        append([]string{}, meeting.Participants...),
	}

	for _, name := range meeting.Participants {
		resolved.Participants = append(resolved.Participants, model.Attendee{DisplayName: name})
	}

	return resolved
}
