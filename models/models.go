package models

import "time"

type User struct {
	ID           int64
	Username     string
	PasswordHash string
}

type Message struct {
	ID        int64
	Sender    string
	Receiver  string
	Body      string
	Delivered bool
	Timestamp time.Time
}
