// Package export writes a rendered schedule as JSON or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/obsched/core/schedule"
)

// Formats lists the supported output formats.
var Formats = []string{"json", "csv"}

// Write encodes v to w in the named format.
func Write(w io.Writer, format string, v schedule.View, loc *time.Location) error {
	switch format {
	case "json":
		return WriteJSON(w, v)
	case "csv":
		return WriteCSV(w, v, loc)
	}
	return fmt.Errorf("unknown export format %q", format)
}

// WriteJSON writes the schedule view to w in JSON format.
func WriteJSON(w io.Writer, v schedule.View) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteCSV writes one row per entry. Times are RFC 3339 in loc and the
// offset is seconds from the contest start.
func WriteCSV(w io.Writer, v schedule.View, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "name", "start", "stop", "offset_s", "duration_s"}); err != nil {
		return err
	}
	for _, e := range v.Schedule {
		rec := []string{
			e.ID,
			e.Name,
			time.UnixMilli(e.StartMs).In(loc).Format(time.RFC3339),
			time.UnixMilli(e.StopMs).In(loc).Format(time.RFC3339),
			strconv.FormatInt((e.StartMs-v.ContestTimestamp)/1000, 10),
			strconv.FormatInt((e.StopMs-e.StartMs)/1000, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
