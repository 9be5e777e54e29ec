// Package export renders course data as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"attendancecontrol/internal/attendance"
)

// RosterSheet is the name of the worksheet written by WriteRoster.
const RosterSheet = "Roster"

var rosterHeader = []string{"Student Nr", "Email", "First Name", "Last Name", "MAC"}

// WriteRoster writes the enrolled students of a course as an xlsx workbook.
func WriteRoster(w io.Writer, course *attendance.Course, students []attendance.Student) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", RosterSheet); err != nil {
		return err
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: course.Name, Identifier: course.UUID.String()}); err != nil {
		return err
	}

	for i, h := range rosterHeader {
		if err := setCell(f, i+1, 1, h); err != nil {
			return err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(RosterSheet, "A1", "E1", bold); err != nil {
		return err
	}

	for i, s := range students {
		row := i + 2
		var email, first, last, mac string
		if s.User != nil {
			email, first, last = s.User.Email, s.User.FirstName, s.User.LastName
		}
		if s.MAC != nil {
			mac = *s.MAC
		}
		for col, v := range []any{s.StudentNr, email, first, last, mac} {
			if err := setCell(f, col+1, row, v); err != nil {
				return err
			}
		}
	}
	if err := f.SetColWidth(RosterSheet, "A", "E", 22); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write roster: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(RosterSheet, cell, v)
}
