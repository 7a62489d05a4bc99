package models

import "time"

// SystemMetrics is a lightweight aggregate snapshot exposed on the admin
// surface alongside the Prometheus endpoint.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	MileageSubmissions       uint64    `json:"mileage_submissions"`
	MileageRejections        uint64    `json:"mileage_rejections"`
	MileageCorrections       uint64    `json:"mileage_corrections"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
