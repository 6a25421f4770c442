package models

import "time"

// Registration records that a tenant (webhook id) was issued by the admin endpoint.
type Registration struct {
	TenantID   string
	Registered bool
	CreatedAt  time.Time
}
