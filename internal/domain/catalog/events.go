package catalog

import "time"

// Resource names a backend collection that views fetch and the admin console mutates.
type Resource string

const (
	ResourceCategories     Resource = "categories"
	ResourceProducts       Resource = "products"
	ResourcePaymentMethods Resource = "payment-methods"
	ResourceOverview       Resource = "overview"
	ResourceRatings        Resource = "ratings"
	ResourceTop            Resource = "top"
)

// Valid reports whether r is one of the known resources.
func (r Resource) Valid() bool {
	switch r {
	case ResourceCategories, ResourceProducts, ResourcePaymentMethods,
		ResourceOverview, ResourceRatings, ResourceTop:
		return true
	}
	return false
}

// ResourceChangedEvent is published after a successful mutation so dependent views refetch.
// Origin names the synchronizer that already reloads itself after the
// mutation; refreshers leave it alone.
type ResourceChangedEvent struct {
	Resource   Resource
	Action     string
	Origin     string
	OccurredAt time.Time
}

func (ResourceChangedEvent) EventName() string { return "resource.changed" }

func NewResourceChangedEvent(r Resource, action string) ResourceChangedEvent {
	return ResourceChangedEvent{
		Resource:   r,
		Action:     action,
		OccurredAt: time.Now().UTC(),
	}
}
