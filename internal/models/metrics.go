package models

import "time"

// SystemMetrics summarises runtime counters for the admin status endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	Transitions              uint64    `json:"transitions"`
	RecommenderFallbacks     uint64    `json:"recommenderFallbacks"`
	JournalWrites            uint64    `json:"journalWrites"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
