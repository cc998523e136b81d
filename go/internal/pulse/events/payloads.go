package events

// Payload types shared between the pulse app and the gateway

// JoinPayload is sent by a client to register with a color
type JoinPayload struct {
	Color string `json:"color"`
}

// ChangeColorPayload is sent by a client to switch its color
type ChangeColorPayload struct {
	Color string `json:"color"`
}

// JoinedPayload is sent to the joining connection only
type JoinedPayload struct {
	Ordinal    uint64 `json:"ordinal"`
	Color      string `json:"color"`
	Streak     int    `json:"streak"`
	BestStreak int    `json:"bestStreak"`
}

// PulsePayload is broadcast for every admitted pulse
type PulsePayload struct {
	UserID  string `json:"userId"`
	Color   string `json:"color"`
	T       int64  `json:"t"` // unix millis
	Ordinal uint64 `json:"ordinal"`
}

// BurstPayload is broadcast when a window met quorum
type BurstPayload struct {
	Streak       int `json:"streak"`
	Contributors int `json:"contributors"`
}

// StreakBrokenPayload is broadcast when an active streak ends
type StreakBrokenPayload struct{}

// UserCountPayload carries the number of connected clients
type UserCountPayload struct {
	Count int `json:"count"`
}

// ColorChangedPayload is broadcast after a successful color change
type ColorChangedPayload struct {
	UserID  string `json:"userId"`
	Color   string `json:"color"`
	Ordinal uint64 `json:"ordinal"`
}

// ErrorPayload is sent to the originating connection only
type ErrorPayload struct {
	Message string `json:"message"`
}

// StatsPayload is returned by the stats endpoint
type StatsPayload struct {
	ConnectedUsers    int    `json:"connectedUsers"`
	TotalUsersCreated uint64 `json:"totalUsersCreated"`
	CurrentStreak     int    `json:"currentStreak"`
	BestStreak        int    `json:"bestStreak"`
	TodayBestStreak   int    `json:"todayBestStreak"`
	WindowEnd         int64  `json:"windowEnd"` // unix millis
	Contributors      int    `json:"contributors"`
	RequiredUsers     int    `json:"requiredUsers"`
}
