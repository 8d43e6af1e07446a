package models

import "time"

// MainSession groups all coaching sessions of one client and anchors the
// free-trial window via its Created timestamp.
type MainSession struct {
	ID       string    `json:"id"`
	ClientID string    `json:"client_id"`
	Created  time.Time `json:"created"`
	Deleted  bool      `json:"deleted"`
}

type Session struct {
	ID            string     `json:"id"`
	ClientID      string     `json:"client_id"`
	TherapistID   string     `json:"therapist_id"`
	MainSessionID string     `json:"main_session_id"`
	Number        int        `json:"number"`
	Language      string     `json:"language"`
	Created       time.Time  `json:"created"`
	Ended         *time.Time `json:"ended"`
	Summary       *string    `json:"summary,omitempty"`
	Deleted       bool       `json:"deleted"`
}

type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Created   time.Time `json:"created"`
	Language  string    `json:"language"`
	IsClient  bool      `json:"is_client"`
	Content   string    `json:"content"`
}

type TrialStatus struct {
	Active   bool `json:"active"`
	DaysLeft int  `json:"days_left,omitempty"`
}

// SessionListItem is the read shape for client session listings, joined
// with the therapist row.
type SessionListItem struct {
	ID              string     `json:"id"`
	Created         time.Time  `json:"created"`
	Ended           *time.Time `json:"ended"`
	TherapistID     string     `json:"therapistId"`
	TherapistName   string     `json:"therapistName"`
	TherapistGender Gender     `json:"therapistGender"`
}
