package ui

import (
	"testing"

	"github.com/charmbracelet/bubbles/table"
	"github.com/stretchr/testify/assert"
)

func TestNewTable(t *testing.T) {
	tbl := NewTable([]TableColumn{
		{Title: "Crab", Width: 12},
		{Title: "Sensors", Width: 20},
	}, []table.Row{
		{"local_system", "cpu, memory"},
	})

	view := tbl.View()
	assert.Contains(t, view, "Crab")
	assert.Contains(t, view, "Sensors")
	assert.Contains(t, view, "local_system")
}

func TestRenderTable(t *testing.T) {
	out := RenderTable([]TableColumn{{Title: "Crab"}, {Title: "Interval", Width: 10}}, [][]string{
		{"local_system", "5s"},
		{"web", "30s"},
	})

	assert.Contains(t, out, "local_system")
	assert.Contains(t, out, "30s")

	assert.Empty(t, RenderTable([]TableColumn{{Title: "Crab"}}, nil))
}
