package enums

// OutboxEventType names the change events queued for publishing.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order.created"
	EventOrderStatusChanged    OutboxEventType = "order.status_changed"
	EventProductChanged        OutboxEventType = "product.changed"
	EventVendorLocationUpdated OutboxEventType = "vendor.location_updated"
)

// OutboxAggregateType scopes an event to the table consumers should re-poll.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "orders"
	AggregateProduct OutboxAggregateType = "products"
	AggregateVendor  OutboxAggregateType = "vendors"
)

// String implements fmt.Stringer.
func (t OutboxEventType) String() string {
	return string(t)
}

// String implements fmt.Stringer.
func (t OutboxAggregateType) String() string {
	return string(t)
}
