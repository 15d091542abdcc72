package game

import (
	"fmt"

	"github.com/yagpdc/words-game/models"
)

// transitions lists the legal run status changes. Terminal states have
// no outgoing edges, which makes them absorbing.
var transitions = map[models.RunStatus][]models.RunStatus{
	models.RunActive: {models.RunCompleted, models.RunFailed},
}

func (r *Run) transition(to models.RunStatus) error {
	for _, allowed := range transitions[r.status] {
		if allowed == to {
			r.status = to
			return nil
		}
	}
	return fmt.Errorf("run %s: transition %s -> %s not allowed", r.id, r.status, to)
}
