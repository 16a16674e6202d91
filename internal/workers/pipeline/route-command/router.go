// internal/workers/pipeline/route-command/router.go
package routecommand

import (
	"fmt"

	"command-pipeline/internal/common/policy"
	"command-pipeline/internal/models"
)

// Router is a fixed intent to brain table. It is built once and never
// mutated.
type Router struct {
	table map[models.IntentKind]models.BrainID
}

// NewRouter copies the policy routing table after checking every intent has
// exactly one entry and Unknown maps to no brain.
func NewRouter(p *policy.Policy) (*Router, error) {
	table := make(map[models.IntentKind]models.BrainID, len(p.Routing))
	for _, intent := range models.AllIntents() {
		brain, ok := p.Routing[intent]
		if !ok {
			return nil, fmt.Errorf("routing table has no entry for intent %q", intent)
		}
		if !brain.Valid() {
			return nil, fmt.Errorf("intent %q routes to unknown brain %q", intent, brain)
		}
		if (intent == models.IntentUnknown) != (brain == models.BrainNone) {
			return nil, fmt.Errorf("intent %q cannot route to %q", intent, brain)
		}
		table[intent] = brain
	}
	if len(table) != len(p.Routing) {
		return nil, fmt.Errorf("routing table has %d entries for %d intents", len(p.Routing), len(table))
	}
	return &Router{table: table}, nil
}

// Route returns the brain for intent. The boolean is false for Unknown,
// which always ends in a fixed needs-human outcome.
func (r *Router) Route(intent models.IntentKind) (models.BrainID, bool) {
	brain, ok := r.table[intent]
	if !ok || brain == models.BrainNone {
		return models.BrainNone, false
	}
	return brain, true
}
