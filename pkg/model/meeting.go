package model

import "strings"

// MeetingLog is the structured form of free-text meeting notes.
// StartTime and EndTime keep the text the LLM produced; JSON null decodes to "".
type MeetingLog struct {
	Subject      string   `json:"subject"`
	Participants []string `json:"participants"`
	Summary      string   `json:"summary"`
	ActionItems  []string `json:"action_items"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
}

// ParseFailure is the error-shaped outcome of meeting log extraction
type ParseFailure struct {
	Error       string `json:"error"`
	RawResponse string `json:"raw_response"`
}

// ParseResult carries exactly one of Meeting or Failure
type ParseResult struct {
	Meeting *MeetingLog
	Failure *ParseFailure
}

// Failed reports whether the parser produced the error-shaped record
func (r *ParseResult) Failed() bool {
	return r == nil || r.Failure != nil
}

// MeetingOrEmpty returns the parsed meeting, or an empty record when parsing failed
func (r *ParseResult) MeetingOrEmpty() *MeetingLog {
	if r == nil || r.Meeting == nil {
		return &MeetingLog{}
	}
	return r.Meeting
}

// ParticipantList joins participants for display, "" when there are none
func (m *MeetingLog) ParticipantList() string {
	names := make([]string, 0, len(m.Participants))
	for _, p := range m.Participants {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return strings.Join(names, ", ")
}
