package handlers

import (
	"slices"

	"pulto/models"
)

type Chart struct {
	// key is the identifier and doubles as the name.
	key string
	// streams to display in this chart
	streams []models.StreamConfig
	// layoutPriority determines what order in the ui this chart should be shown
	layoutPriority uint8
}

func NewChart(
	key string,
	streams []models.StreamConfig,
	layoutPriority uint8,
) *Chart {
	return &Chart{
		key,
		streams,
		layoutPriority,
	}
}

func (c *Chart) Key() string {
	return c.key
}

func (c *Chart) Streams() []models.StreamConfig {
	return c.streams
}

func (c *Chart) LayoutPriority() uint8 {
	return c.layoutPriority
}

// ChartsForStreams groups streams into one chart per category, ordered by category.
func ChartsForStreams(configs []models.StreamConfig) []*Chart {
	byCategory := make(map[models.Category][]models.StreamConfig)
	for _, c := range configs {
		byCategory[c.Category] = append(byCategory[c.Category], c)
	}

	var charts []*Chart
	for category, streams := range byCategory {
		charts = append(charts, NewChart(category.String(), streams, uint8(category)))
	}
	slices.SortFunc(charts, func(a, b *Chart) int {
		return int(a.LayoutPriority()) - int(b.LayoutPriority())
	})
	return charts
}

// chartView is a chart as one client sees it, with that client's active stream.
type chartView struct {
	*Chart
	ActiveStream models.StreamConfig
	ActiveValue  float64
}
