package synthesis

// Descriptor is the request-scoped state of one synthesis run. Output starts
// empty and accumulates partial completion chunks until the terminal signal.
type Descriptor struct {
	ID     string   `json:"id"`
	Prompt string   `json:"prompt"`
	Clips  []string `json:"clips"`
	Output string   `json:"output"`
}
