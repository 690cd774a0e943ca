package model

import (
	"fmt"
	"sort"
)

// SensorGrouping maps logical group names to ordered lists of physical
// channel names. It is supplied per request.
type SensorGrouping map[string][]string

// GroupNames returns the group names in sorted order.
func (g SensorGrouping) GroupNames() []string {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every channel named by the grouping resolves to a
// channel in the raw data.
func (g SensorGrouping) Validate(raw *RawData) error {
	if len(g) == 0 {
		return fmt.Errorf("sensor grouping is empty")
	}
	for _, group := range g.GroupNames() {
		channels := g[group]
		if len(channels) == 0 {
			return fmt.Errorf("sensor group %q names no channels", group)
		}
		for _, channel := range channels {
			if _, ok := raw.Channel(channel); !ok {
				return fmt.Errorf("sensor group %q names unknown channel %q", group, channel)
			}
		}
	}
	return nil
}
