package domain

import "time"

// Entity type names used as cache-key roots and sync-queue routing keys.
const (
	EntityTypeFarmer  = "farmer"
	EntityTypeFarm    = "farm"
	EntityTypeCluster = "cluster"
)

// Farmer is a registered field farmer.
type Farmer struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone"`
	NIN       string    `json:"nin,omitempty"`
	ClusterID string    `json:"cluster_id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Farm is a mapped plot belonging to a farmer.
type Farm struct {
	ID       string  `json:"id"`
	FarmerID string  `json:"farmer_id"`
	Name     string  `json:"name"`
	Crop     string  `json:"crop,omitempty"`
	SizeHa   float64 `json:"size_ha,omitempty"`
	// Boundary is a closed polygon of lat/lng pairs captured on site.
	Boundary  [][2]float64 `json:"boundary,omitempty"`
	CreatedAt time.Time    `json:"created_at,omitempty"`
	UpdatedAt time.Time    `json:"updated_at,omitempty"`
}

// Cluster groups farmers under a lead aggregator.
type Cluster struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	LeadName string `json:"lead_name,omitempty"`
	Region   string `json:"region,omitempty"`
}

// SaveOutcome tells the caller how a write was handled.
type SaveOutcome string

const (
	// SavedRemotely means the backend accepted the write directly.
	SavedRemotely SaveOutcome = "saved_remotely"
	// SavedOffline means the write was queued for later replay.
	SavedOffline SaveOutcome = "saved_offline"
)

// DataOrigin tells the caller where a read was served from.
type DataOrigin string

const (
	FromNetwork DataOrigin = "network"
	FromCache   DataOrigin = "cache"
)
