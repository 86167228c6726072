// README: CSV layout shared by import and export, and the always-quoted writer.
package transfer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"locater/internal/modules/saved"
)

// DateLayout renders "dd/MM/yyyy, H:mm".
const DateLayout = "02/01/2006, 15:04"

const fieldCount = 9

var Header = []string{
	"Name", "Description", "Street", "Place",
	"Latitude", "Longitude", "Favorite",
	"Created Date", "Location Added Date",
}

var (
	ErrEmptyFile     = errors.New("the selected file is empty")
	ErrInvalidFormat = errors.New("the file format is invalid")
)

// InvalidDataError names the field of a row that failed to parse or validate.
type InvalidDataError struct {
	Field string
}

func (e *InvalidDataError) Error() string {
	return "invalid data for field: " + e.Field
}

// FileName is the export file name for day t.
func FileName(t time.Time) string {
	return "Locations-" + t.Format("2006-01-02") + ".csv"
}

// WriteCSV writes the header and one row per location. Every field is quoted.
func WriteCSV(w io.Writer, ls []*saved.Location, loc *time.Location) error {
	bw := bufio.NewWriter(w)
	if err := writeRecord(bw, Header); err != nil {
		return err
	}
	for _, l := range ls {
		if err := writeRecord(bw, record(l, loc)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func record(l *saved.Location, loc *time.Location) []string {
	var street, place, lat, lng, added string
	lat, lng = "0", "0"
	if e := l.Entry; e != nil {
		if e.Street != nil {
			street = *e.Street
		}
		if e.Place != nil {
			place = *e.Place
		}
		lat = strconv.FormatFloat(e.Latitude, 'f', -1, 64)
		lng = strconv.FormatFloat(e.Longitude, 'f', -1, 64)
		added = e.Timestamp.In(loc).Format(DateLayout)
	}
	return []string{
		l.Name,
		l.Description,
		street,
		place,
		lat,
		lng,
		strconv.FormatBool(l.IsFavorite),
		l.CreatedAt.In(loc).Format(DateLayout),
		added,
	}
}

func writeRecord(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, `"%s"`, strings.ReplaceAll(f, `"`, `""`)); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\n")
	return err
}
