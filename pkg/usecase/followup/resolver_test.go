package followup_test

import (
	"strings"
	"testing"
	"time"

	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/inflect-gtm/inflect/pkg/usecase/followup"
	"github.com/m-mizutani/gt"
)

func TestResolveEventTimeWindow(t *testing.T) {
	// 61 shared characters out of 200 gives a ratio of exactly 0.61
	subject := strings.Repeat("x", 61) + strings.Repeat("a", 39)
	summary := strings.Repeat("x", 61) + strings.Repeat("b", 39)

	meeting := &model.MeetingLog{
		Subject:   subject,
		StartTime: "2025-03-10T14:00:00Z",
	}

	t.Run("exactly 1800 seconds apart does not match", func(t *testing.T) {
		ev := &model.CalendarEvent{Summary: summary, Start: "2025-03-10T14:30:00Z", End: "2025-03-10T15:00:00Z"}
		r := followup.ResolveEvent(meeting, []*model.CalendarEvent{ev}, time.UTC)
		gt.False(t, r.Found)
		gt.Equal(t, r.Source, model.EventSourceLogOnly)
	})

	t.Run("1799 seconds apart matches", func(t *testing.T) {
		ev := &model.CalendarEvent{Summary: summary, Start: "2025-03-10T14:29:59Z", End: "2025-03-10T15:00:00Z"}
		r := followup.ResolveEvent(meeting, []*model.CalendarEvent{ev}, time.UTC)
		gt.True(t, r.Found)
		gt.Equal(t, r.Source, model.EventSourceCalendar)
	})

	t.Run("event before the meeting counts by absolute distance", func(t *testing.T) {
		ev := &model.CalendarEvent{Summary: summary, Start: "2025-03-10T13:30:01Z"}
		r := followup.ResolveEvent(meeting, []*model.CalendarEvent{ev}, time.UTC)
		gt.True(t, r.Found)
	})
}

func TestResolveEventSimilarity(t *testing.T) {
	meeting := &model.MeetingLog{Subject: "Slack Integration Discussion", StartTime: "2025-03-10T14:00:00Z"}

	unrelated := &model.CalendarEvent{Summary: "Quarterly budget review", Start: "2025-03-10T14:00:00Z"}
	r := followup.ResolveEvent(meeting, []*model.CalendarEvent{unrelated}, time.UTC)
	gt.False(t, r.Found)

	// comparison ignores case
	same := &model.CalendarEvent{Summary: "slack integration discussion", Start: "2025-03-10T14:05:00Z"}
	r = followup.ResolveEvent(meeting, []*model.CalendarEvent{unrelated, same}, time.UTC)
	gt.True(t, r.Found)
	gt.Equal(t, r.Event, same)
}

func TestResolveEventFirstMatchWins(t *testing.T) {
	meeting := &model.MeetingLog{Subject: "Pricing review", StartTime: "2025-03-10T14:00:00Z"}
	first := &model.CalendarEvent{ID: "1", Summary: "Pricing reviews", Start: "2025-03-10T14:20:00Z"}
	exact := &model.CalendarEvent{ID: "2", Summary: "Pricing review", Start: "2025-03-10T14:00:00Z"}

	r := followup.ResolveEvent(meeting, []*model.CalendarEvent{first, exact}, time.UTC)
	gt.True(t, r.Found)
	gt.Equal(t, r.Event.ID, "1")
}

func TestResolveEventCalendarFields(t *testing.T) {
	ev := &model.CalendarEvent{
		Summary: "Slack integration discussion",
		Start:   "2025-03-10T14:00:00Z",
		End:     "2025-03-10T14:30:00Z",
		Attendees: []model.Attendee{
			{Email: "sarah@x.com", DisplayName: "Sarah"},
			{Email: "james@x.com"},
			{DisplayName: "Room 4"},
		},
	}

	t.Run("parsed subject preferred", func(t *testing.T) {
		meeting := &model.MeetingLog{Subject: "Slack integration discussions", StartTime: "2025-03-10 14:10"}
		r := followup.ResolveEvent(meeting, []*model.CalendarEvent{ev}, time.UTC)
		gt.True(t, r.Found)
		gt.Equal(t, r.Subject, "Slack integration discussions")
		gt.Equal(t, r.StartTime, ev.Start)
		gt.Equal(t, r.EndTime, ev.End)
		gt.Equal(t, r.Emails, []string{"sarah@x.com", "james@x.com"})
		gt.Equal(t, r.Names, []string{"Sarah", "Room 4"})
		gt.A(t, r.Participants).Length(3)
	})

	t.Run("event summary used when parsed subject is empty", func(t *testing.T) {
		// an empty subject is not similar to anything, so match on an empty summary too
		blank := &model.CalendarEvent{Start: "2025-03-10T14:00:00Z", Attendees: ev.Attendees}
		meeting := &model.MeetingLog{StartTime: "2025-03-10T14:00:00Z"}
		r := followup.ResolveEvent(meeting, []*model.CalendarEvent{blank}, time.UTC)
		gt.True(t, r.Found)
		gt.Equal(t, r.Subject, "")
	})
}

func TestResolveEventFallback(t *testing.T) {
	meeting := &model.MeetingLog{
		Subject:      "Demo follow-up",
		Participants: []string{"Sarah", "James"},
		StartTime:    "2025-03-10T14:00:00Z",
		EndTime:      "2025-03-10T15:00:00Z",
	}

	r := followup.ResolveEvent(meeting, nil, time.UTC)
	gt.False(t, r.Found)
	gt.Equal(t, r.Source, model.EventSourceLogOnly)
	gt.Equal(t, r.Subject, "Demo follow-up")
	gt.Equal(t, r.StartTime, meeting.StartTime)
	gt.Equal(t, r.EndTime, meeting.EndTime)
	gt.Equal(t, r.Names, []string{"Sarah", "James"})
	gt.A(t, r.Emails).Length(0)
	gt.Equal(t, r.Participants, []model.Attendee{{DisplayName: "Sarah"}, {DisplayName: "James"}})
	gt.V(t, r.Event).Nil()
}

func TestResolveEventUnparseableTimes(t *testing.T) {
	ev := &model.CalendarEvent{Summary: "Sync", Start: "2025-03-10T14:00:00Z"}

	for _, start := range []string{"", "sometime after lunch", "25:99"} {
		meeting := &model.MeetingLog{Subject: "Sync", StartTime: start}
		r := followup.ResolveEvent(meeting, []*model.CalendarEvent{ev}, time.UTC)
		gt.False(t, r.Found)
	}

	meeting := &model.MeetingLog{Subject: "Sync", StartTime: "2025-03-10T14:00:00Z"}
	broken := &model.CalendarEvent{Summary: "Sync", Start: "not a date"}
	r := followup.ResolveEvent(meeting, []*model.CalendarEvent{broken, nil}, time.UTC)
	gt.False(t, r.Found)
}

func TestResolveEventTimeFormats(t *testing.T) {
	ev := &model.CalendarEvent{Summary: "Sync", Start: "2025-03-10T14:00:00Z"}

	for _, start := range []string{
		"2025-03-10T14:00:00Z",
		"2025-03-10T15:00:00+01:00",
		"2025-03-10 14:10:00",
		"2025-03-10T14:10",
		"2025-03-10 14:10",
		"March 10, 2025 2:10 PM",
	} {
		t.Run(start, func(t *testing.T) {
			meeting := &model.MeetingLog{Subject: "Sync", StartTime: start}
			r := followup.ResolveEvent(meeting, []*model.CalendarEvent{ev}, time.UTC)
			gt.True(t, r.Found)
		})
	}
}

func TestResolveEventNaiveTimesUseLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	ev := &model.CalendarEvent{Summary: "Sync", Start: "2025-03-10T05:00:00Z"}
	meeting := &model.MeetingLog{Subject: "Sync", StartTime: "2025-03-10 14:00"}

	gt.True(t, followup.ResolveEvent(meeting, []*model.CalendarEvent{ev}, tokyo).Found)
	gt.False(t, followup.ResolveEvent(meeting, []*model.CalendarEvent{ev}, time.UTC).Found)
}
