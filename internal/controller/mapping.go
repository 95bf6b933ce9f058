package controller

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// targetRule is the common shape of LightingControl and InputControls rules
type targetRule struct {
	Type   string
	Target string
	Value  string // schedule name or input name
}

// buildAssignments runs one mapping pass over the known outputs.
// Rules apply in file order; the first assignment to an output wins and
// later conflicting rules are logged and ignored. Targets that don't name a
// known output (or group) are skipped with a warning. Returns the
// assignment map (empty string = unassigned) and the captured default
// target, if any.
func buildAssignments(outputs []OutputInfo, rules []targetRule, kind string) (map[string]string, string) {
	assignments := make(map[string]string)
	groupMap := make(map[string][]string)

	for _, out := range outputs {
		if out.Group != "" {
			groupMap[out.Group] = append(groupMap[out.Group], out.Name)
		}
		assignments[out.Name] = ""
	}

	var defaultTarget string
	for _, rule := range rules {
		switch strings.ToLower(rule.Type) {
		case "default":
			if defaultTarget == "" {
				defaultTarget = rule.Value
			}

		case "switch":
			if _, known := assignments[rule.Target]; !known {
				log.Warn().Str("target", rule.Target).Str("kind", kind).Msg("Rule targets unknown output, skipping")
				continue
			}
			if existing := assignments[rule.Target]; existing != "" {
				log.Warn().
					Str("switch", rule.Target).
					Str("assigned", existing).
					Str("kind", kind).
					Msg("Switch already assigned, keeping first assignment")
			} else {
				assignments[rule.Target] = rule.Value
			}

		case "switch group", "switch-group":
			members := groupMap[rule.Target]
			if len(members) == 0 {
				log.Warn().Str("group", rule.Target).Str("kind", kind).Msg("Rule targets unknown or empty group, skipping")
				continue
			}
			for _, name := range members {
				if existing := assignments[name]; existing != "" {
					log.Warn().
						Str("switch", name).
						Str("group", rule.Target).
						Str("assigned", existing).
						Str("kind", kind).
						Msg("Switch already assigned, keeping first assignment")
				} else {
					assignments[name] = rule.Value
				}
			}

		default:
			log.Warn().Str("type", rule.Type).Str("kind", kind).Msg("Unknown rule type, skipping")
		}
	}

	// Fill remaining outputs with the default target, if any
	if defaultTarget != "" {
		for name, v := range assignments {
			if v == "" {
				assignments[name] = defaultTarget
			}
		}
	}

	return assignments, defaultTarget
}

// mapSchedulesToOutputs maps every known output to its governing schedule.
// Every output must end up with a schedule, so a missing default while
// outputs are unresolved is a fatal configuration error.
func (c *Controller) mapSchedulesToOutputs() (map[string]string, error) {
	outputs := c.devices.Outputs()
	if len(outputs) == 0 {
		log.Warn().Msg("No outputs configured")
		return map[string]string{}, nil
	}

	if len(c.cfg.LightingControl) == 0 {
		log.Warn().Msg("No lighting controls configured")
		return emptyAssignments(outputs), nil
	}

	rules := make([]targetRule, 0, len(c.cfg.LightingControl))
	for _, r := range c.cfg.LightingControl {
		rules = append(rules, targetRule{Type: r.Type, Target: r.Target, Value: r.Schedule})
	}

	assignments, defaultSchedule := buildAssignments(outputs, rules, "schedule")

	if defaultSchedule == "" {
		var unassigned []string
		for name, v := range assignments {
			if v == "" {
				unassigned = append(unassigned, name)
			}
		}
		if len(unassigned) > 0 {
			return nil, configErrorf("no default schedule configured and outputs %v have no schedule assigned", unassigned)
		}
	}

	return assignments, nil
}

// mapInputsToOutputs maps outputs to their override inputs. Unassigned
// outputs are valid here: absence of input control simply means the
// schedule always governs.
func (c *Controller) mapInputsToOutputs() map[string]string {
	outputs := c.devices.Outputs()
	if len(outputs) == 0 {
		log.Warn().Msg("No outputs configured")
		return map[string]string{}
	}

	if len(c.cfg.InputControls) == 0 {
		log.Warn().Msg("No input controls configured")
		return emptyAssignments(outputs)
	}

	rules := make([]targetRule, 0, len(c.cfg.InputControls))
	for _, r := range c.cfg.InputControls {
		rules = append(rules, targetRule{Type: r.Type, Target: r.Target, Value: r.Input})
	}

	assignments, _ := buildAssignments(outputs, rules, "input")
	return assignments
}

func emptyAssignments(outputs []OutputInfo) map[string]string {
	m := make(map[string]string, len(outputs))
	for _, out := range outputs {
		m[out.Name] = ""
	}
	return m
}
