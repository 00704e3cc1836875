package report

import (
	"sort"

	"github.com/juanxmartel/ecowatch/pkg/ecowatch/record"
)

// RoomStatus reports the most recent reading of every room
type RoomStatus struct{}

func (r *RoomStatus) Name() string {
	return "Room_Status_Report"
}

// Generate returns one row per room, rooms in name order. On equal
// timestamps the first record seen wins.
func (r *RoomStatus) Generate(records []record.Record) Table {
	latest := make(map[string]record.Record)
	for _, rec := range records {
		cur, ok := latest[rec.Room]
		if !ok || rec.Timestamp.After(cur.Timestamp) {
			latest[rec.Room] = rec
		}
	}

	rooms := make([]string, 0, len(latest))
	for room := range latest {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)

	rows := make([][]string, 0, len(rooms))
	for _, room := range rooms {
		rec := latest[room]
		rows = append(rows, []string{
			rec.Room,
			formatFloat(rec.Temperature),
			formatFloat(rec.Humidity),
			formatFloat(rec.CO2Level),
			formatTime(rec.Timestamp),
		})
	}

	return Table{
		Columns: []string{
			record.FieldRoom,
			record.FieldTemperature,
			record.FieldHumidity,
			record.FieldCO2Level,
			record.FieldTimestamp,
		},
		Rows:       rows,
		WriteEmpty: true,
	}
}
