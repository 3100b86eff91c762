package physics

// EventType 领域事件类型（与线协议一致）
type EventType string

const (
	EventCollision      EventType = "collision"
	EventPickup         EventType = "pickup"
	EventTrick          EventType = "trick"
	EventYetiSpawn      EventType = "yeti_spawn"
	EventPlayerFinished EventType = "player_finished"
)

// Event 单个 Tick 内产生的事件；字段按类型选用
type Event struct {
	Type       EventType `json:"type"`
	PlayerID   string    `json:"playerId,omitempty"`
	ObjectID   string    `json:"objectId,omitempty"`
	PickupType string    `json:"pickupType,omitempty"`
	Score      int       `json:"score,omitempty"`
	YetiID     string    `json:"yetiId,omitempty"`
	Placement  int       `json:"placement,omitempty"`
}
