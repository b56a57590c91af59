package runner

import (
	"strings"

	"github.com/eddiedunn/moltest/internal/api"
)

// Placeholders recognized in a command template.
const (
	PlaceholderScenario = "{scenario}"
	PlaceholderID       = "{id}"
	PlaceholderRole     = "{role}"
)

// ExpandCommand substitutes the run's placeholders into every template
// argument. Placeholders may appear anywhere inside an argument.
func ExpandCommand(template []string, run api.Run) []string {
	r := strings.NewReplacer(
		PlaceholderScenario, run.Scenario.Name,
		PlaceholderID, run.ID,
		PlaceholderRole, run.Scenario.Role,
	)
	argv := make([]string, len(template))
	for i, arg := range template {
		argv[i] = r.Replace(arg)
	}
	return argv
}
