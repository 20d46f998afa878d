package domain

// Sample is one analog reading taken off the telemetry link.
// Timestamp is in nanoseconds from the source's monotonic origin.
type Sample struct {
	Timestamp int64   `json:"ts"`
	Value     float64 `json:"value"`
}

// Point is a storage-ready measurement as accepted by a PointWriter.
type Point struct {
	Measurement string  `json:"measurement"`
	Field       string  `json:"field"`
	Value       float64 `json:"value"`
	Timestamp   int64   `json:"ts"`
}

// PointFromSample builds the storage point for s.
func PointFromSample(measurement, field string, s Sample) Point {
	return Point{
		Measurement: measurement,
		Field:       field,
		Value:       s.Value,
		Timestamp:   s.Timestamp,
	}
}
