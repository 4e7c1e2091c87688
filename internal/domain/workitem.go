package domain

// WorkItem is the durable queue payload carrying one dining request from the
// dialog code hook to the fulfillment worker. Every field is validated when
// the item is created; the worker only guards against absent or malformed
// bodies, never re-checks business rules.
type WorkItem struct {
	Location    string `json:"location" validate:"required,min=2"`
	Cuisine     string `json:"cuisine" validate:"required,oneof=american chinese italian japanese indian"`
	DiningTime  string `json:"dining_time" validate:"required,datetime=15:04"`
	PartySize   int    `json:"party_size" validate:"required,min=1,max=20"`
	Email       string `json:"email" validate:"required,email"`
	RequestedAt string `json:"requested_at_iso" validate:"required"`
}
