package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Absence report",
		Headers: []string{"ID", "Teacher", "Day", "Period", "Status"},
		Rows: [][]string{
			{"1", "Mr. Smith", "Monday", "2", "REPORTED"},
			{"2", "Ms. Jones", "Tuesday", "1", "ASSIGNED"},
		},
		GeneratedAt: time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC),
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "ID,Teacher,Day,Period,Status\n1,Mr. Smith,Monday,2,REPORTED\n2,Ms. Jones,Tuesday,1,ASSIGNED\n", string(out))
}

func TestCSVExporterRejectsRaggedRows(t *testing.T) {
	data := sampleDataset()
	data.Rows = append(data.Rows, []string{"3"})
	_, err := NewCSVExporter().Render(data)
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestColumnWidthsFillUsableWidth(t *testing.T) {
	widths := columnWidths(sampleDataset(), 190)
	var sum float64
	for _, w := range widths {
		sum += w
	}
	assert.InDelta(t, 190, sum, 0.001)
	assert.Greater(t, widths[1], widths[0])
}
