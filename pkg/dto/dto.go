// Package dto provides data transfer objects for the status HTTP surface.
package dto

import "time"

// IndexStats is the payload of GET /index/stats.
type IndexStats struct {
	Buckets     int       `json:"buckets"`
	Images      int       `json:"images"`
	Discovered  int       `json:"discovered"`
	LastRefresh time.Time `json:"last_refresh,omitempty"`
}

// RefreshResponse is the payload of POST /index/refresh.
type RefreshResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
