// Package providers holds the assistant gateway implementations and the
// static content they share.
package providers

// headlines is the rotating news ticker shown on the idle status surface.
var headlines = []string{
	"Tech Update: Quantum computing breakthrough achieves stable coherence at room temperature.",
	"Global News: AI-designed fusion reactor hits net positive energy for 48 hours.",
	"Science: Mars colony project announces successful water extraction from soil.",
	"Digital World: New neural interface allows direct thought-to-text communication.",
	"Cyber Security: Major encryption protocol update rolls out worldwide to prevent quantum decryption.",
	"Space: Voyager 1 sends back unexpected data from interstellar space suggesting a new particle.",
	"Health: Nanobot trials show 99% success rate in targeted cellular repair.",
	"Environment: Ocean cleanup drones remove 50% of Pacific patch ahead of schedule.",
	"Entertainment: First fully AI-generated movie wins award at Cannes Film Festival.",
}

// Headlines returns the ticker entries. The slice is a copy; callers may
// reorder it freely.
func Headlines() []string {
	out := make([]string, len(headlines))
	copy(out, headlines)
	return out
}
