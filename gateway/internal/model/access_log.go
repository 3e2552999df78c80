package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	DecisionAllowed = "allowed"
	DecisionDenied  = "denied"
	DecisionError   = "error"
)

type AccessLogEntry struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Timestamp    time.Time `gorm:"column:ts;index;not null" json:"ts"`
	Port         int       `gorm:"not null" json:"port"`
	ListenerName string    `gorm:"column:listener_name" json:"listener_name"`
	ClientIP     string    `gorm:"column:client_ip;index" json:"client_ip"`
	Method       string    `json:"method"`
	Path         string    `json:"path"`
	Decision     string    `gorm:"not null" json:"decision"`
	Status       int       `json:"status"`
}

func (AccessLogEntry) TableName() string {
	return "access_logs"
}

func NewAccessLogEntry(port int, listenerName, clientIP, method, path, decision string, status int) AccessLogEntry {
	return AccessLogEntry{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Port:         port,
		ListenerName: listenerName,
		ClientIP:     clientIP,
		Method:       method,
		Path:         path,
		Decision:     decision,
		Status:       status,
	}
}
