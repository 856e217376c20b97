package channel

// Member captures the display metadata a channel keeps per participant.
type Member struct {
	UUID        string `json:"userUuid"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
}
