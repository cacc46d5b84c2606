package pos

const (
	TopicOrderCreated = "pos.order.created"
	TopicOrderSettled = "pos.order.settled"
	TopicOrderFailed  = "pos.order.failed"
	TopicOrderExpired = "pos.order.expired"
)

// Partition key = order_id, so every event of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
