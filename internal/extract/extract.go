package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrNoMatch means the message carried no recognizable customer name or
// time-of-day. That is a legitimate terminal outcome, not a failure: the
// raw message stays stored and unprocessed.
var ErrNoMatch = errors.New("no_match")

const (
	FieldCustomer = "customer_name"
	FieldService  = "service"
	FieldDate     = "date"
	FieldTime     = "time"
)

// Result is the transient output of extraction. It is folded into a
// booking by the pipeline and never persisted on its own.
type Result struct {
	CustomerName    string
	Service         string
	DatePart        string
	TimePart        string
	FieldConfidence map[string]float64
	Confidence      float64
}

// Field weights are fixed per field. Rule order inside a table is
// matching priority only: a fallback pattern contributes the same
// weight as the primary, so a recognized name plus a recognized time
// always sums to 0.5 no matter which pattern caught them.
const (
	weightCustomer = 0.3
	weightService  = 0.3
	weightDate     = 0.2
	weightTime     = 0.2
)

// Per-field pattern tables, tried in order; the first accepted match
// wins the field. Keeping them data-driven lets new platform formats
// slot in without touching control flow.
var customerRules = []*regexp.Regexp{
	// "You just got booked! Jane Smith scheduled a ..."
	regexp.MustCompile(`(?i)booked!\s+([A-Za-z][A-Za-z\-]+(?:\s+[A-Za-z][A-Za-z\-]+)+?)\s+scheduled`),
	// "Jane Smith scheduled/booked/requested ..."
	regexp.MustCompile(`([A-Z][a-z\-]+(?:\s+[A-Z][a-z\-]+)+)\s+(?:scheduled|booked|requested)`),
	// name immediately preceding the appointment time
	regexp.MustCompile(`([A-Z][a-z\-]+(?:\s+[A-Z][a-z\-]+)*)[^A-Za-z0-9]*?\s*at\s+\d{1,2}(?::\d{2})?\s*(?:AM|PM|am|pm)`),
}

var serviceRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)scheduled\s+a\s+(.+?)\s+with\s+you\s+on`),
	regexp.MustCompile(`(?i)scheduled\s+(?:a|an)\s+(.+?)\s+(?:appointment|session)\b`),
	regexp.MustCompile(`(?i)\bfor\s+(?:a|an)\s+([A-Za-z][A-Za-z \-]+?)\s+(?:on|at)\b`),
}

var dateRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)with\s+you\s+on\s+([A-Za-z]+\s+\d{1,2}(?:,?\s*\d{4})?)`),
	regexp.MustCompile(`(?i)\bon\s+([A-Za-z]+\s+\d{1,2}(?:,?\s*\d{4})?)`),
	regexp.MustCompile(`(?i)\b(today|tomorrow)\b`),
}

var timeRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)at\s+(\d{1,2}:\d{2}\s*(?:AM|PM))`),
	regexp.MustCompile(`(?i)at\s+(\d{1,2}\s*(?:AM|PM))`),
	regexp.MustCompile(`\b(\d{1,2}:\d{2})\b`),
}

// capitalized words that look like names to the fallback rule but never are
var nameStopwords = map[string]struct{}{
	"You": {}, "Your": {}, "The": {}, "New": {}, "Just": {}, "Hi": {}, "Hello": {},
}

var escapeRe = regexp.MustCompile(`\\([!'"?])`)

// Normalize collapses backslash-escaped punctuation introduced by the
// transport encoding and trims surrounding whitespace. Fingerprints and
// pattern matching both run on normalized text so a re-delivery with
// different escaping still dedups.
func Normalize(text string) string {
	return strings.TrimSpace(escapeRe.ReplaceAllString(text, "$1"))
}

// Fingerprint is the exactly-once dedup key for a message body.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

func matchField(text string, rules []*regexp.Regexp, reject map[string]struct{}) string {
	for _, re := range rules {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			val := strings.TrimSpace(m[1])
			if val == "" {
				continue
			}
			if reject != nil {
				if _, bad := reject[strings.Fields(val)[0]]; bad {
					continue
				}
			}
			return val
		}
	}
	return ""
}

// Extract runs the rule tables over raw text. A matched field scores
// its full field weight, so name+time alone always yields 0.5: enough
// to keep, not enough to auto-sync.
func Extract(raw string) (*Result, error) {
	text := Normalize(raw)

	res := &Result{FieldConfidence: map[string]float64{}}

	if v := matchField(text, customerRules, nameStopwords); v != "" {
		res.CustomerName = v
		res.FieldConfidence[FieldCustomer] = weightCustomer
	}
	if v := matchField(text, serviceRules, nil); v != "" {
		res.Service = v
		res.FieldConfidence[FieldService] = weightService
	}
	if v := matchField(text, dateRules, nil); v != "" {
		res.DatePart = v
		res.FieldConfidence[FieldDate] = weightDate
	}
	if v := matchField(text, timeRules, nil); v != "" {
		res.TimePart = v
		res.FieldConfidence[FieldTime] = weightTime
	}

	// name and time have no safe default; everything else does
	if res.CustomerName == "" || res.TimePart == "" {
		return nil, ErrNoMatch
	}

	for _, w := range res.FieldConfidence {
		res.Confidence += w
	}
	if res.Service == "" {
		res.Service = "Unknown Service"
	}
	return res, nil
}

var (
	timeOfDayRe = regexp.MustCompile(`(?i)^(\d{1,2})(?::(\d{2}))?\s*(AM|PM)?$`)
	monthDayRe  = regexp.MustCompile(`(?i)^([A-Za-z]+)\s+(\d{1,2})(?:,?\s*(\d{4}))?$`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// parseTimeOfDay normalizes 12-hour clock with AM/PM markers to 24-hour,
// case-insensitively and tolerant of missing whitespace ("2:00PM").
func parseTimeOfDay(s string) (hour, minute int, err error) {
	m := timeOfDayRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, fmt.Errorf("unparseable time %q", s)
	}
	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch strings.ToUpper(m[3]) {
	case "PM":
		if hour < 12 {
			hour += 12
		}
	case "AM":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("time out of range %q", s)
	}
	return hour, minute, nil
}

// ResolveTime turns the extracted date/time parts into a concrete local
// timestamp. Date defaults to today. When no year is given and the
// resulting moment is already past, the year rolls forward by one:
// booking platforms never reference past dates.
func (r *Result) ResolveTime(now time.Time, loc *time.Location) (time.Time, error) {
	hour, minute, err := parseTimeOfDay(r.TimePart)
	if err != nil {
		return time.Time{}, err
	}
	now = now.In(loc)

	day := now
	explicitDate := false
	hasYear := false

	switch strings.ToLower(r.DatePart) {
	case "", "today":
	case "tomorrow":
		day = now.AddDate(0, 0, 1)
	default:
		m := monthDayRe.FindStringSubmatch(r.DatePart)
		if m == nil {
			return time.Time{}, fmt.Errorf("unparseable date %q", r.DatePart)
		}
		key := strings.ToLower(m[1])
		if len(key) > 3 {
			key = key[:3]
		}
		month, ok := months[key]
		if !ok {
			return time.Time{}, fmt.Errorf("unknown month %q", m[1])
		}
		dom, _ := strconv.Atoi(m[2])
		year := now.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
			hasYear = true
		}
		day = time.Date(year, month, dom, 0, 0, 0, 0, loc)
		explicitDate = true
	}

	at := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
	if explicitDate && !hasYear && at.Before(now) {
		at = at.AddDate(1, 0, 0)
	}
	return at, nil
}
