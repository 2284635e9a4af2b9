package domain

type StreamStats struct {
	Connections int            `json:"connections"`
	Sessions    int            `json:"sessions"`
	Rooms       map[string]int `json:"rooms"`
	Uptime      string         `json:"uptime"`
}
