package orchestrator

import "errors"

// ErrUnknownScenario is returned when an explicit scenario id matches no
// discovered run.
var ErrUnknownScenario = errors.New("unknown scenario")
