package api

import (
	"bytes"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"evently/internal/models"

	ical "github.com/arran4/golang-ical"
	"github.com/go-pdf/fpdf"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Events without an explicit end are exported as one hour long.
const defaultEventDuration = time.Hour

// BuildCalendar renders events as an iCalendar document. Event times are
// interpreted in loc.
func BuildCalendar(events []models.Event, loc *time.Location, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//evently//events//EN")
	cal.SetName("Evently")

	for _, ev := range events {
		start, err := time.ParseInLocation(dateLayout+" "+timeLayout, ev.Date+" "+ev.Time, loc)
		if err != nil {
			logrus.WithField("event_id", ev.ID).Warn("skipping event with bad date in calendar export")
			continue
		}
		vev := cal.AddEvent(fmt.Sprintf("event-%d@evently", ev.ID))
		vev.SetDtStampTime(stamp)
		vev.SetStartAt(start)
		vev.SetEndAt(start.Add(defaultEventDuration))
		vev.SetSummary(ev.Name)
		if ev.Description != "" {
			vev.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			vev.SetLocation(ev.Location)
		}
		if len(ev.Categories) > 0 {
			vev.SetProperty(ical.ComponentPropertyCategories, strings.Join(ev.Categories, ","))
		}
	}
	return cal.Serialize()
}

func CalendarHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		events, err := queryEvents(db, "e.user_id = ?", currentUserID(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch events")
		}
		c.Set(fiber.HeaderContentType, "text/calendar; charset=utf-8")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="events.ics"`)
		return c.SendString(BuildCalendar(events, time.Local, time.Now()))
	}
}

var exportHeader = []string{"ID", "Name", "Description", "Date", "Time", "Location", "Organizer", "Categories"}

// BuildWorkbook renders events as a single-sheet xlsx file.
func BuildWorkbook(events []models.Event) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Events"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", "H1", bold); err != nil {
		return nil, err
	}

	for i, ev := range events {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{ev.ID, ev.Name, ev.Description, ev.Date, ev.Time, ev.Location, ev.Username, strings.Join(ev.Categories, ",")}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPDF renders events as a table, one row per event.
func BuildPDF(events []models.Event) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "Letter", "")
	pdf.SetTitle("Events", true)
	pdf.AddPage()

	headers := []string{"ID", "Name", "Date", "Time", "Location", "Organizer"}
	widths := []float64{15, 75, 30, 20, 70, 40}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(128, 128, 128)
	pdf.SetTextColor(245, 245, 245)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetFillColor(245, 245, 220)
	pdf.SetTextColor(0, 0, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, ev := range events {
		cells := []string{fmt.Sprint(ev.ID), ev.Name, ev.Date, ev.Time, ev.Location, ev.Username}
		for i, v := range cells {
			pdf.CellFormat(widths[i], 7, tr(truncate(v, int(widths[i]/2))), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func ExportExcelHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		events, err := queryEvents(db, "1 = 1")
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch events")
		}
		data, err := BuildWorkbook(events)
		if err != nil {
			logrus.WithError(err).Error("excel export failed")
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to build spreadsheet")
		}
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, "attachment; filename=events.xlsx")
		return c.Send(data)
	}
}

func ExportPDFHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		events, err := queryEvents(db, "1 = 1")
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch events")
		}
		data, err := BuildPDF(events)
		if err != nil {
			logrus.WithError(err).Error("pdf export failed")
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to build PDF")
		}
		c.Set(fiber.HeaderContentType, "application/pdf")
		c.Set(fiber.HeaderContentDisposition, "attachment; filename=events.pdf")
		return c.Send(data)
	}
}
