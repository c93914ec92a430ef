package models

// SensorSample is one telemetry reading from the robot car.
// Timestamp is the join key between the local and cloud stores.
type SensorSample struct {
	ID           int64    `json:"id,omitempty"`
	Timestamp    string   `json:"timestamp"`
	UltrasonicCM *float64 `json:"ultrasonic_cm"`
	IRLeft       *int     `json:"ir_left"`
	IRCenter     *int     `json:"ir_center"`
	IRRight      *int     `json:"ir_right"`
	LineState    *string  `json:"line_state"`
	Synced       bool     `json:"synced"`
}
