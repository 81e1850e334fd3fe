package formula

import (
	"strings"
	"time"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

func (r *Registry) registerDateTime() {
	r.Register("DATE", fnDate)
	r.Register("TODAY", func(ctx *Context, args []Operand) models.Value {
		now := r.clock.Now().UTC()
		return models.TimeValue(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC))
	})
	r.Register("NOW", func(ctx *Context, args []Operand) models.Value {
		return models.TimeValue(r.clock.Now().UTC())
	})
	r.Register("YEAR", timePart(func(t time.Time) int { return t.Year() }))
	r.Register("MONTH", timePart(func(t time.Time) int { return int(t.Month()) }))
	r.Register("DAY", timePart(func(t time.Time) int { return t.Day() }))
	r.Register("HOUR", timePart(func(t time.Time) int { return t.Hour() }))
	r.Register("MINUTE", timePart(func(t time.Time) int { return t.Minute() }))
	r.Register("SECOND", timePart(func(t time.Time) int { return t.Second() }))
	r.Register("WEEKDAY", fnWeekday)
	r.Register("DAYS", fnDays)
	r.Register("EDATE", fnEdate)
	r.Register("EOMONTH", fnEomonth)
}

// dateLayouts are the text forms asTime will accept besides serial
// numbers.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
}

// asTime coerces a value to a point in time: time values directly,
// numbers through the serial-date model, text through a small set of
// layouts.
func asTime(v models.Value) (time.Time, bool) {
	switch v.Kind {
	case models.KindTime:
		return v.Time, true
	case models.KindNumber:
		return models.TimeFromSerial(v.Num), true
	case models.KindText:
		s := strings.TrimSpace(v.Text)
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func timePart(f func(time.Time) int) Func {
	return func(ctx *Context, args []Operand) models.Value {
		if !argCount(args, 1, 1) {
			return errNA()
		}
		v := args[0].scalar()
		if v.IsError() {
			return v
		}
		t, ok := asTime(v)
		if !ok {
			return errValue()
		}
		return models.NumberFromInt(int64(f(t)))
	}
}

func fnDate(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 3, 3) {
		return errNA()
	}
	year, yerr := scalarInt(args[0])
	if yerr.IsError() {
		return yerr
	}
	month, merr := scalarInt(args[1])
	if merr.IsError() {
		return merr
	}
	day, derr := scalarInt(args[2])
	if derr.IsError() {
		return derr
	}
	// Two-digit years follow the 1900-window convention.
	if year >= 0 && year < 1900 {
		year += 1900
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() < 1900 {
		return errNum()
	}
	return models.TimeValue(t)
}

// fnWeekday maps a date to a day-of-week number: type 1 counts Sunday
// as 1, type 2 counts Monday as 1, type 3 counts Monday as 0.
func fnWeekday(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 1, 2) {
		return errNA()
	}
	v := args[0].scalar()
	if v.IsError() {
		return v
	}
	t, ok := asTime(v)
	if !ok {
		return errValue()
	}
	kind := 1
	if len(args) == 2 {
		var kerr models.Value
		kind, kerr = scalarInt(args[1])
		if kerr.IsError() {
			return kerr
		}
	}
	wd := int(t.Weekday()) // Sunday == 0
	switch kind {
	case 1:
		return models.NumberFromInt(int64(wd + 1))
	case 2:
		return models.NumberFromInt(int64((wd+6)%7 + 1))
	case 3:
		return models.NumberFromInt(int64((wd + 6) % 7))
	}
	return errNum()
}

// fnDays is the whole-day difference end minus start.
func fnDays(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 2, 2) {
		return errNA()
	}
	endV := args[0].scalar()
	if endV.IsError() {
		return endV
	}
	startV := args[1].scalar()
	if startV.IsError() {
		return startV
	}
	end, ok := asTime(endV)
	if !ok {
		return errValue()
	}
	start, ok := asTime(startV)
	if !ok {
		return errValue()
	}
	endSerial := models.SerialFromTime(end).IntPart()
	startSerial := models.SerialFromTime(start).IntPart()
	return models.NumberFromInt(endSerial - startSerial)
}

// fnEdate shifts a date by whole months, clamping the day to the
// target month's length.
func fnEdate(ctx *Context, args []Operand) models.Value {
	t, months, errv := dateShiftArgs(args)
	if errv.IsError() {
		return errv
	}
	return models.TimeValue(addMonthsClamped(t, months))
}

// fnEomonth lands on the last day of the shifted month.
func fnEomonth(ctx *Context, args []Operand) models.Value {
	t, months, errv := dateShiftArgs(args)
	if errv.IsError() {
		return errv
	}
	shifted := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months+1, -1)
	return models.TimeValue(shifted)
}

func dateShiftArgs(args []Operand) (time.Time, int, models.Value) {
	if !argCount(args, 2, 2) {
		return time.Time{}, 0, errNA()
	}
	v := args[0].scalar()
	if v.IsError() {
		return time.Time{}, 0, v
	}
	t, ok := asTime(v)
	if !ok {
		return time.Time{}, 0, errValue()
	}
	months, merr := scalarInt(args[1])
	if merr.IsError() {
		return time.Time{}, 0, merr
	}
	return t, months, models.Value{}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	lastDay := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}
