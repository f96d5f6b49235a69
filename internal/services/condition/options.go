package condition

// Option is a single selectable value.
type Option struct {
	Value string
	Label string
}

// OptionGroup is a labelled group of options.
type OptionGroup struct {
	Label   string
	Options []Option
}

// OptionGroups is an ordered list of option groups.
type OptionGroups []OptionGroup

// Group returns the group with the given label.
func (g OptionGroups) Group(label string) (OptionGroup, bool) {
	for _, group := range g {
		if group.Label == label {
			return group, true
		}
	}
	return OptionGroup{}, false
}

// Len returns the number of options across all groups.
func (g OptionGroups) Len() int {
	n := 0
	for _, group := range g {
		n += len(group.Options)
	}
	return n
}

// Map returns the options of the group keyed by value.
func (g OptionGroup) Map() map[string]string {
	out := make(map[string]string, len(g.Options))
	for _, opt := range g.Options {
		out[opt.Value] = opt.Label
	}
	return out
}

// set adds an option, replacing the label if the value is already present.
func (g *OptionGroup) set(value, label string) {
	for i := range g.Options {
		if g.Options[i].Value == value {
			g.Options[i].Label = label
			return
		}
	}
	g.Options = append(g.Options, Option{Value: value, Label: label})
}
