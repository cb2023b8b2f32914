package models

import "time"

// SignalMessage is a signal record received over MQTT
type SignalMessage struct {
	UserID     string
	Day        time.Time // zero when the sender did not name a day
	Signals    SignalSet
	ReceivedAt time.Time
}

// PredictionMessage is published back to the user's prediction topic
type PredictionMessage struct {
	UserID     string     `json:"user_id"`
	Date       string     `json:"date"` // YYYY-MM-DD
	Prediction Prediction `json:"prediction"`
}
