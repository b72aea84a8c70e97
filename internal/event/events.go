package event

import "time"

// Topics
const (
	// TopicBoxOpened 开盒成功，等待铸造
	TopicBoxOpened = "blindbox_events_opened"
)

// BoxOpenedEvent 开盒事件
// Topic: blindbox_events_opened
// 只携带 id，消费方必须重新加载最新的 BoxItem / Collectible
type BoxOpenedEvent struct {
	EventID       string    `json:"event_id"`
	BoxItemID     uint64    `json:"box_item_id"`
	CollectibleID uint64    `json:"collectible_id"`
	OwnerID       uint64    `json:"owner_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}
