package model

import "time"

// Violation is a detected breach of lockdown conditions or an attempted
// restricted action. The agent keeps it only while the report is in flight;
// the backend holds the authoritative record.
type Violation struct {
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// WarningAck is the mandatory candidate-visible acknowledgment produced after
// every recorded violation.
type WarningAck struct {
	Reason       string `json:"reason"`
	WarningCount int    `json:"warning_count"`
	MaxWarnings  int    `json:"max_warnings"`
	Remaining    int    `json:"remaining"`
	// Authoritative is false when the backend was unreachable and the count
	// was incremented locally.
	Authoritative bool `json:"authoritative"`
}
