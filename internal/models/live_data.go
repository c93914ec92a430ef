package models

import "time"

// LiveData is the latest raw value of every polled feed, as returned by the broker.
type LiveData struct {
	UltrasonicCM *string `json:"ultrasonic_cm"`
	IRLeft       *string `json:"ir_left"`
	IRCenter     *string `json:"ir_center"`
	IRRight      *string `json:"ir_right"`
	LineState    *string `json:"line_state"`
	CameraMotion *string `json:"camera_motion"`
	Timestamp    string  `json:"timestamp"`
}

// FeedEntry is a cached feed value and the time it was fetched.
type FeedEntry struct {
	Value     string    `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}
