package audit

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"
)

// WriteCSV serialises timeline rows with meta as a JSON column.
func WriteCSV(w io.Writer, rows []TimelineRow) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"ID", "At", "Actor", "Action", "Entity", "Entity ID", "Meta"}); err != nil {
		return err
	}
	for _, row := range rows {
		meta := ""
		if len(row.Meta) > 0 {
			raw, err := json.Marshal(row.Meta)
			if err != nil {
				return err
			}
			meta = string(raw)
		}
		if err := writer.Write([]string{
			strconv.FormatInt(row.ID, 10),
			row.At.UTC().Format(time.RFC3339),
			row.Actor,
			row.Action,
			row.Entity,
			row.EntityID,
			meta,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
