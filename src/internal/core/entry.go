// FILE: synctrack/src/internal/core/entry.go
package core

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LogEvent is a single diagnostic record shipped to the logging app.
// Field tags follow the LogEntry schema of the logging backend.
type LogEvent struct {
	ID           primitive.ObjectID `bson:"_id" json:"_id"`
	AppID        string             `bson:"appId" json:"appId"`
	LogLevel     Severity           `bson:"logLevel" json:"logLevel"`
	LogSessionID primitive.ObjectID `bson:"logSessionId" json:"logSessionId"`
	Message      string             `bson:"message" json:"message"`
	Timestamp    time.Time          `bson:"timestamp" json:"timestamp"`
	UserID       *string            `bson:"userId,omitempty" json:"userId,omitempty"`
}

// NewLogEvent stamps a fresh id and the given creation time.
// An empty userID leaves the event without a user.
func NewLogEvent(appID string, sessionID primitive.ObjectID, level Severity, message string, userID string, now time.Time) LogEvent {
	e := LogEvent{
		ID:           primitive.NewObjectID(),
		AppID:        appID,
		LogLevel:     level,
		LogSessionID: sessionID,
		Message:      message,
		Timestamp:    now,
	}
	if userID != "" {
		e.UserID = &userID
	}
	return e
}
