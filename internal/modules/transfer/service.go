// README: Transfer service: CSV export (download or S3) and CSV import with duplicate detection.
package transfer

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"locater/internal/metrics"
	"locater/internal/modules/location"
	"locater/internal/modules/saved"
	"locater/internal/types"
)

// DuplicateTolerance is the per-axis coordinate distance, in degrees, under
// which two rows with the same name are the same place.
const DuplicateTolerance = 0.0001

// float slack so values exactly at the tolerance still match.
const toleranceEpsilon = 1e-12

var ErrSinkNotConfigured = errors.New("export sink is not configured")

type Report struct {
	Imported   int      `json:"imported"`
	Duplicates int      `json:"duplicates"`
	Errors     []string `json:"errors,omitempty"`
}

type importRow struct {
	Name      string  `validate:"required"`
	Latitude  float64 `validate:"gte=-90,lte=90"`
	Longitude float64 `validate:"gte=-180,lte=180"`
}

type Service struct {
	repo     saved.Repository
	sink     *S3Sink
	validate *validator.Validate
	log      zerolog.Logger
	loc      *time.Location
	now      func() time.Time
	newID    func() types.ID
}

// NewService wires the transfer service. sink may be nil when S3 export is
// not configured. Dates are read and written in UTC.
func NewService(repo saved.Repository, sink *S3Sink, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		sink:     sink,
		validate: validator.New(),
		log:      log,
		loc:      time.UTC,
		now:      time.Now,
		newID:    func() types.ID { return types.ID(uuid.NewString()) },
	}
}

// FileName is today's export file name.
func (s *Service) FileName() string {
	return FileName(s.now().In(s.loc))
}

// Export writes every saved location, newest first.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	ls, err := s.repo.List(ctx, saved.ListFilter{})
	if err != nil {
		return err
	}
	return WriteCSV(w, ls, s.loc)
}

// Upload exports to the configured S3 sink and returns the object key.
func (s *Service) Upload(ctx context.Context) (string, error) {
	if s.sink == nil {
		return "", ErrSinkNotConfigured
	}
	var buf bytes.Buffer
	if err := s.Export(ctx, &buf); err != nil {
		return "", err
	}
	key, err := s.sink.Put(ctx, s.FileName(), buf.Bytes())
	if err != nil {
		return "", err
	}
	s.log.Info().Str("key", key).Int("bytes", buf.Len()).Msg("export uploaded")
	return key, nil
}

// Import reads a CSV produced by Export. Bad rows are reported and skipped;
// accepted rows are committed together at the end.
func (s *Service) Import(ctx context.Context, r io.Reader) (Report, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return Report{}, ErrEmptyFile
		}
		return Report{}, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}

	var report Report
	var accepted []*saved.Location
	known := make(map[string][]*saved.Location)

	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return report, err
			}
			report.Errors = append(report.Errors, rowError(pe.StartLine, ErrInvalidFormat))
			continue
		}
		line, _ := cr.FieldPos(0)

		l, err := s.parseRow(fields)
		if err != nil {
			report.Errors = append(report.Errors, rowError(line, err))
			continue
		}

		dup, err := s.isDuplicate(ctx, l, known)
		if err != nil {
			return report, err
		}
		if dup {
			report.Duplicates++
			continue
		}
		known[l.Name] = append(known[l.Name], l)
		accepted = append(accepted, l)
	}

	if err := s.repo.CreateBatch(ctx, accepted); err != nil {
		return Report{Duplicates: report.Duplicates, Errors: report.Errors}, fmt.Errorf("import: %w", err)
	}
	report.Imported = len(accepted)

	metrics.ImportRowsTotal.WithLabelValues("imported").Add(float64(report.Imported))
	metrics.ImportRowsTotal.WithLabelValues("duplicate").Add(float64(report.Duplicates))
	metrics.ImportRowsTotal.WithLabelValues("invalid").Add(float64(len(report.Errors)))
	s.log.Info().
		Int("imported", report.Imported).
		Int("duplicates", report.Duplicates).
		Int("errors", len(report.Errors)).
		Msg("csv import finished")
	return report, nil
}

func (s *Service) parseRow(fields []string) (*saved.Location, error) {
	if len(fields) < fieldCount {
		return nil, ErrInvalidFormat
	}
	field := func(i int) string { return strings.TrimSpace(fields[i]) }

	lat, err := strconv.ParseFloat(field(4), 64)
	if err != nil {
		return nil, &InvalidDataError{Field: "latitude"}
	}
	lng, err := strconv.ParseFloat(field(5), 64)
	if err != nil {
		return nil, &InvalidDataError{Field: "longitude"}
	}
	favorite, err := strconv.ParseBool(field(6))
	if err != nil {
		return nil, &InvalidDataError{Field: "favorite status"}
	}
	created, err := time.ParseInLocation(DateLayout, field(7), s.loc)
	if err != nil {
		return nil, &InvalidDataError{Field: "created date"}
	}
	added, err := time.ParseInLocation(DateLayout, field(8), s.loc)
	if err != nil {
		added = created
	}

	row := importRow{Name: field(0), Latitude: lat, Longitude: lng}
	if err := s.validate.Struct(row); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, &InvalidDataError{Field: strings.ToLower(verrs[0].Field())}
		}
		return nil, err
	}

	entry := &location.Entry{
		ID:        s.newID(),
		Timestamp: added,
		Latitude:  lat,
		Longitude: lng,
		Street:    optional(field(2)),
		Place:     optional(field(3)),
	}
	return &saved.Location{
		ID:          s.newID(),
		Name:        row.Name,
		Description: field(1),
		EntryID:     entry.ID,
		Entry:       entry,
		CreatedAt:   created,
		IsFavorite:  favorite,
	}, nil
}

// isDuplicate checks l against stored rows and rows accepted earlier in the
// same file. known caches lookups by name.
func (s *Service) isDuplicate(ctx context.Context, l *saved.Location, known map[string][]*saved.Location) (bool, error) {
	candidates, ok := known[l.Name]
	if !ok {
		stored, err := s.repo.FindByName(ctx, l.Name)
		if err != nil {
			return false, err
		}
		known[l.Name] = stored
		candidates = stored
	}
	for _, c := range candidates {
		if c.Entry != nil && near(c.Entry.Point(), l.Entry.Point()) {
			return true, nil
		}
	}
	return false, nil
}

func near(a, b types.Point) bool {
	limit := DuplicateTolerance + toleranceEpsilon
	return math.Abs(a.Lat-b.Lat) <= limit && math.Abs(a.Lng-b.Lng) <= limit
}

func rowError(line int, err error) string {
	var invalid *InvalidDataError
	switch {
	case errors.As(err, &invalid):
		return fmt.Sprintf("Row %d: Invalid %s", line, invalid.Field)
	case errors.Is(err, ErrInvalidFormat):
		return fmt.Sprintf("Row %d: The file format is invalid", line)
	}
	return fmt.Sprintf("Row %d: %v", line, err)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
