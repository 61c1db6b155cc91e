package domain

import "time"

// Sensor describes one measured or forecast quantity: a unique name, the
// unit of its event values, and the duration each event spans. A zero
// EventResolution means the sensor records instantaneous states.
type Sensor struct {
	ID              int64         `json:"id"`
	Name            string        `json:"name"`
	Unit            string        `json:"unit"`
	EventResolution time.Duration `json:"event_resolution"`
	Latitude        *float64      `json:"latitude,omitempty"`
	Longitude       *float64      `json:"longitude,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

func (s Sensor) Instantaneous() bool {
	return s.EventResolution == 0
}
