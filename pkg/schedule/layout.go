package schedule

import (
	"strings"
	"time"
)

// momentTokens maps Moment.js/dayjs format tokens to Go reference-time
// fragments. Longer tokens must come first so "YYYY" is not read as "YY".
var momentTokens = []struct {
	token  string
	layout string
}{
	{"YYYY", "2006"},
	{"YY", "06"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "01"},
	{"M", "1"},
	{"DD", "02"},
	{"D", "2"},
	{"dddd", "Monday"},
	{"ddd", "Mon"},
	{"HH", "15"},
	{"H", "15"},
	{"hh", "03"},
	{"h", "3"},
	{"mm", "04"},
	{"m", "4"},
	{"ss", "05"},
	{"s", "5"},
	{"A", "PM"},
	{"a", "pm"},
}

// Layout converts a Moment-style format such as "YYYY-MM-DD" into a Go time
// layout. Text inside square brackets is copied literally.
func Layout(format string) string {
	var b strings.Builder
	for i := 0; i < len(format); {
		if format[i] == '[' {
			end := strings.IndexByte(format[i+1:], ']')
			if end >= 0 {
				b.WriteString(format[i+1 : i+1+end])
				i += end + 2
				continue
			}
		}
		matched := false
		for _, tk := range momentTokens {
			if strings.HasPrefix(format[i:], tk.token) {
				b.WriteString(tk.layout)
				i += len(tk.token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(format[i])
			i++
		}
	}
	return b.String()
}

// Format renders t using a Moment-style format.
func Format(t time.Time, format string) string {
	return t.Format(Layout(format))
}
