package ingestion

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/TedTes/genres-sub000/internal/types"
)

var (
	isoDay      = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	isoMonth    = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})$`)
	monthYear   = regexp.MustCompile(`^(\d{1,2})[-/.](\d{4})$`)
	yearOnly    = regexp.MustCompile(`^(\d{4})$`)
	namedMonth  = regexp.MustCompile(`^([a-z]+)\.?,?\s+(\d{4})$`)
	presentWord = map[string]bool{
		"present": true, "current": true, "currently": true, "now": true,
		"ongoing": true, "today": true, "to date": true,
	}
	monthNames = map[string]int{
		"jan": 1, "january": 1, "feb": 2, "february": 2, "mar": 3, "march": 3,
		"apr": 4, "april": 4, "may": 5, "jun": 6, "june": 6, "jul": 7, "july": 7,
		"aug": 8, "august": 8, "sep": 9, "sept": 9, "september": 9, "oct": 10, "october": 10,
		"nov": 11, "november": 11, "dec": 12, "december": 12,
	}
)

// NormalizeDate maps a resume date to "YYYY-MM-DD", "YYYY-MM", "YYYY" or
// "Present". Anything unrecognised becomes "" rather than a guess.
func NormalizeDate(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if presentWord[s] {
		return types.DatePresent
	}

	if m := isoDay.FindStringSubmatch(s); m != nil {
		year, month, day := atoi(m[1]), atoi(m[2]), atoi(m[3])
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if !validYear(year) || t.Month() != time.Month(month) || t.Day() != day {
			return ""
		}
		return t.Format("2006-01-02")
	}
	if m := isoMonth.FindStringSubmatch(s); m != nil {
		return yearMonth(atoi(m[1]), atoi(m[2]))
	}
	if m := monthYear.FindStringSubmatch(s); m != nil {
		return yearMonth(atoi(m[2]), atoi(m[1]))
	}
	if m := yearOnly.FindStringSubmatch(s); m != nil {
		if !validYear(atoi(m[1])) {
			return ""
		}
		return m[1]
	}
	if m := namedMonth.FindStringSubmatch(s); m != nil {
		if month, ok := monthNames[m[1]]; ok {
			return yearMonth(atoi(m[2]), month)
		}
	}
	return ""
}

// normalizeDates rewrites every date field in place.
func normalizeDates(r *types.NormalizedResume) {
	for i := range r.Experience {
		r.Experience[i].StartDate = NormalizeDate(r.Experience[i].StartDate)
		r.Experience[i].EndDate = NormalizeDate(r.Experience[i].EndDate)
	}
	for i := range r.Education {
		r.Education[i].GraduationDate = NormalizeDate(r.Education[i].GraduationDate)
	}
	for i := range r.Certifications {
		r.Certifications[i].Date = NormalizeDate(r.Certifications[i].Date)
	}
}

func yearMonth(year, month int) string {
	if !validYear(year) || month < 1 || month > 12 {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", year, month)
}

func validYear(year int) bool {
	return year >= 1900 && year <= 2100
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
