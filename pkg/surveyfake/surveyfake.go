// Package surveyfake generates realistic, reproducible training feedback
// uploads for tests and local demos.
package surveyfake

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"
)

// RatingColumn is the delegate survey's overall rating question.
const RatingColumn = "Please give the course a rating out of 5"

// DelegateColumns is the header of a generated delegate feedback export.
var DelegateColumns = []string{
	"Completion Date",
	"Tutor Name",
	"Course Title",
	RatingColumn,
	"Tutor knowledge of subject",
	"Tutor adaptability",
	"Quality of tutor feedback",
	"Tutor guidance",
	"Any other comments?",
}

// PartnerColumns is the header of a generated partner company export.
var PartnerColumns = []string{"Company", "Contact", "Sessions Booked", "Date"}

// MasterColumns is the header of a generated master schedule export. It
// carries no delegate or partner keywords, so only its size identifies it.
var MasterColumns = []string{"Session Date", "Region", "Venue", "Attendees"}

var courses = []string{
	"Excel Essentials",
	"Project Management Foundations",
	"Leadership Skills",
	"Customer Service Excellence",
	"Data Protection Awareness",
	"Presentation Skills",
}

var comments = []string{
	"Really engaging and well paced session",
	"The practical examples made everything clear",
	"Would have liked more time for questions",
	"Excellent trainer, very knowledgeable",
	"Good content but the room was too warm",
	"Helpful handouts and clear explanations",
	"A bit rushed towards the end",
	"",
	"",
}

// Response is one generated delegate survey answer.
type Response struct {
	Date         time.Time
	Trainer      string
	Course       string
	Rating       int
	Knowledge    int
	Adaptability int
	Feedback     int
	Guidance     int
	Comment      string
}

// dayMonthYear marshals as DD/MM/YYYY, the layout of the survey exports.
type dayMonthYear time.Time

func (d dayMonthYear) MarshalCSV() (string, error) {
	return time.Time(d).Format("02/01/2006"), nil
}

type delegateRow struct {
	Date         dayMonthYear `csv:"Completion Date"`
	Trainer      string       `csv:"Tutor Name"`
	Course       string       `csv:"Course Title"`
	Rating       int          `csv:"Please give the course a rating out of 5"`
	Knowledge    int          `csv:"Tutor knowledge of subject"`
	Adaptability int          `csv:"Tutor adaptability"`
	Feedback     int          `csv:"Quality of tutor feedback"`
	Guidance     int          `csv:"Tutor guidance"`
	Comment      string       `csv:"Any other comments?"`
}

type partnerRow struct {
	Company  string       `csv:"Company"`
	Contact  string       `csv:"Contact"`
	Sessions int          `csv:"Sessions Booked"`
	Date     dayMonthYear `csv:"Date"`
}

type masterRow struct {
	Date      dayMonthYear `csv:"Session Date"`
	Region    string       `csv:"Region"`
	Venue     string       `csv:"Venue"`
	Attendees int          `csv:"Attendees"`
}

// Generator produces survey data from a seeded faker.
type Generator struct {
	faker    *gofakeit.Faker
	trainers []string
	quality  map[string]float64
}

// New creates a generator with trainerCount trainers. The same seed always
// yields the same data.
func New(seed int64, trainerCount int) *Generator {
	f := gofakeit.New(seed)
	g := &Generator{faker: f, quality: make(map[string]float64)}
	for len(g.trainers) < trainerCount {
		name := f.FirstName() + " " + f.LastName()
		if _, dup := g.quality[name]; dup {
			continue
		}
		g.trainers = append(g.trainers, name)
		g.quality[name] = f.Float64Range(3.2, 4.9)
	}
	return g
}

// Trainers returns the generated trainer names.
func (g *Generator) Trainers() []string {
	return append([]string(nil), g.trainers...)
}

// Responses generates n answers dated between from and to. Each trainer has
// a stable quality level that ratings scatter around.
func (g *Generator) Responses(n int, from, to time.Time) []Response {
	out := make([]Response, n)
	for i := range out {
		trainer := g.faker.RandomString(g.trainers)
		q := g.quality[trainer]
		out[i] = Response{
			Date:         g.faker.DateRange(from, to).UTC().Truncate(24 * time.Hour),
			Trainer:      trainer,
			Course:       g.faker.RandomString(courses),
			Rating:       g.score(q),
			Knowledge:    g.score(q + 0.2),
			Adaptability: g.score(q),
			Feedback:     g.score(q - 0.1),
			Guidance:     g.score(q),
			Comment:      g.faker.RandomString(comments),
		}
	}
	return out
}

func (g *Generator) score(quality float64) int {
	v := int(math.Round(quality + g.faker.Float64Range(-0.8, 0.8)))
	return max(1, min(5, v))
}

// Records renders responses as delegate rows, dates as DD/MM/YYYY.
func Records(responses []Response) [][]string {
	out := make([][]string, len(responses))
	for i, r := range responses {
		out[i] = []string{
			r.Date.Format("02/01/2006"),
			r.Trainer,
			r.Course,
			strconv.Itoa(r.Rating),
			strconv.Itoa(r.Knowledge),
			strconv.Itoa(r.Adaptability),
			strconv.Itoa(r.Feedback),
			strconv.Itoa(r.Guidance),
			r.Comment,
		}
	}
	return out
}

// DelegateCSV renders responses as a delegate feedback CSV export.
func DelegateCSV(responses []Response) []byte {
	rows := make([]delegateRow, len(responses))
	for i, r := range responses {
		rows[i] = delegateRow{
			Date:         dayMonthYear(r.Date),
			Trainer:      r.Trainer,
			Course:       r.Course,
			Rating:       r.Rating,
			Knowledge:    r.Knowledge,
			Adaptability: r.Adaptability,
			Feedback:     r.Feedback,
			Guidance:     r.Guidance,
			Comment:      r.Comment,
		}
	}
	return marshalCSV(rows)
}

// DelegateWorkbook renders responses into one sheet per entry of sheets,
// splitting the rows evenly in order.
func DelegateWorkbook(responses []Response, sheets ...string) ([]byte, error) {
	if len(sheets) == 0 {
		sheets = []string{"Responses"}
	}
	f := excelize.NewFile()
	defer f.Close()

	records := Records(responses)
	per := (len(records) + len(sheets) - 1) / len(sheets)
	for i, name := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return nil, fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}

		lo := min(i*per, len(records))
		hi := min(lo+per, len(records))
		if err := setRow(f, name, 1, DelegateColumns); err != nil {
			return nil, err
		}
		for j, rec := range records[lo:hi] {
			if err := setRow(f, name, j+2, rec); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// PartnerCSV generates n partner company rows.
func (g *Generator) PartnerCSV(n int) []byte {
	rows := make([]partnerRow, n)
	for i := range rows {
		rows[i] = partnerRow{
			Company:  g.faker.Company(),
			Contact:  g.faker.Name(),
			Sessions: g.faker.IntRange(1, 20),
			Date:     dayMonthYear(g.faker.Date()),
		}
	}
	return marshalCSV(rows)
}

// MasterCSV generates n master schedule rows.
func (g *Generator) MasterCSV(n int, from, to time.Time) []byte {
	rows := make([]masterRow, n)
	for i := range rows {
		rows[i] = masterRow{
			Date:      dayMonthYear(g.faker.DateRange(from, to)),
			Region:    g.faker.State(),
			Venue:     g.faker.City(),
			Attendees: g.faker.IntRange(4, 30),
		}
	}
	return marshalCSV(rows)
}

// marshalCSV panics on error; the row types only hold strings, ints and
// dayMonthYear, which always marshal.
func marshalCSV(rows any) []byte {
	out, err := gocsv.MarshalBytes(rows)
	if err != nil {
		panic(fmt.Sprintf("surveyfake: %v", err))
	}
	return out
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}
