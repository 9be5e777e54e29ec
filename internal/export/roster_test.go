package export

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"attendancecontrol/internal/attendance"
)

func TestWriteRoster(t *testing.T) {
	mac := "00-1B-77-49-54-FD"
	course := &attendance.Course{ID: 1, UUID: uuid.New(), Name: "Networks"}
	students := []attendance.Student{
		{UserID: 3, StudentNr: 1001, MAC: &mac, User: &attendance.User{Email: "ada@uni.example", FirstName: "Ada", LastName: "L"}},
		{UserID: 4, StudentNr: 1002},
	}

	var buf bytes.Buffer
	if err := WriteRoster(&buf, course, students); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	checks := map[string]string{
		"A1": "Student Nr",
		"E1": "MAC",
		"A2": "1001",
		"B2": "ada@uni.example",
		"E2": mac,
		"A3": "1002",
		"B3": "",
	}
	for cell, want := range checks {
		got, err := f.GetCellValue(RosterSheet, cell)
		if err != nil {
			t.Fatalf("%s: %v", cell, err)
		}
		if got != want {
			t.Fatalf("%s = %q, want %q", cell, got, want)
		}
	}
}
