package storage

import "time"

// SessionRecord describes one launcher run. Written at first spawn,
// updated once when the session ends or goes fatal.
type SessionRecord struct {
	ID          string    `json:"id"` // uuid
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at,omitempty"`
	PrimaryPort uint16    `json:"primary_port"`
	ControlPort uint16    `json:"control_port"`
	// Outcome is empty while running, then one of "clean", "fatal".
	Outcome string `json:"outcome,omitempty"`
	// FatalReason names the fatal condition when Outcome is "fatal".
	FatalReason string `json:"fatal_reason,omitempty"`
}

// CrashRecord describes one abnormal backend exit. Keyed by ULID so
// records sort chronologically in the bucket.
type CrashRecord struct {
	ID        string    `json:"id"` // ulid
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
	ExitCode  int       `json:"exit_code"`
	Signal    string    `json:"signal,omitempty"`
	// Attempt is the restart-budget attempt count after this crash.
	Attempt uint `json:"attempt"`
	// Restarted reports whether a restart was scheduled for this crash.
	Restarted bool `json:"restarted"`
}
