package report

import (
	"github.com/juanxmartel/ecowatch/pkg/ecowatch/record"
)

// CriticalAlerts reports readings whose CO2 level or temperature is above threshold
type CriticalAlerts struct {
	CO2Threshold  float64
	TempThreshold float64
}

func (r *CriticalAlerts) Name() string {
	return "Critical_Alerts_Report"
}

// Generate keeps input order. No matching records is a valid, empty result.
func (r *CriticalAlerts) Generate(records []record.Record) Table {
	rows := make([][]string, 0)
	for _, rec := range records {
		if rec.CO2Level > r.CO2Threshold || rec.Temperature > r.TempThreshold {
			rows = append(rows, []string{
				formatTime(rec.Timestamp),
				rec.Room,
				formatFloat(rec.Temperature),
				formatFloat(rec.Humidity),
				formatFloat(rec.CO2Level),
			})
		}
	}

	return Table{
		Columns: []string{
			record.FieldTimestamp,
			record.FieldRoom,
			record.FieldTemperature,
			record.FieldHumidity,
			record.FieldCO2Level,
		},
		Rows: rows,
	}
}
