// Package numerology implements the digit-reduction engine: repeated base-10
// digit summation that maps dates to a cyclic code between 1 and 9.
//
// Every function here is pure. Master numbers (11, 22, 33) get no special
// treatment and reduce like any other value.
package numerology

import "github.com/numatrix/numatrix/internal/models"

// Reduce repeatedly replaces n with the sum of its decimal digits until a
// single digit remains. Reduce(0) is 0. Negative inputs are reduced by
// magnitude, so the result is always in [0, 9].
func Reduce(n int) int {
	if n < 0 {
		n = -n
	}
	for n > 9 {
		n = digitSum(n)
	}
	return n
}

func digitSum(n int) int {
	sum := 0
	for n > 0 {
		sum += n % 10
		n /= 10
	}
	return sum
}

// LifePathCode reduces the digits of the date written as YYYYMMDD.
// Summing each component's digits is equivalent to concatenating them first,
// and avoids building an integer that can overflow for large years.
func LifePathCode(d models.Date) int {
	year := d.Year
	if year < 0 {
		year = -year
	}
	return Reduce(digitSum(year) + digitSum(d.Month) + digitSum(d.Day))
}

// PersonalYearCode is the life path code of d shifted by targetYear.
func PersonalYearCode(d models.Date, targetYear int) int {
	return Reduce(LifePathCode(d) + targetYear)
}

// PersonalMonthCode layers a calendar month on top of the personal year code.
func PersonalMonthCode(d models.Date, year, month int) int {
	return Reduce(PersonalYearCode(d, year) + month)
}

// PersonalDayCode layers the target day on top of the personal month code
// for the target's year and month.
func PersonalDayCode(d models.Date, target models.Date) int {
	return Reduce(PersonalMonthCode(d, target.Year, target.Month) + target.Day)
}

var interpretations = map[int]string{
	1: "System status: initial boot. Installing new drivers and protocols.",
	2: "System status: cooperative mode. Building alliances and networks.",
	3: "System status: creative mode. Intense expression and communication.",
	4: "System status: structural mode. Laying solid foundations.",
	5: "System status: freedom mode. Changes and expansion.",
	6: "System status: harmonious mode. Balance and responsibility.",
	7: "System status: introspective mode. Deep analysis and reflection.",
	8: "System status: executive mode. Material manifestation and achievement.",
	9: "System status: cache flush. Removing obsolete dependencies.",
}

// UnknownInterpretation is returned by Interpret for codes outside 1..9.
const UnknownInterpretation = "Unknown status."

// Interpret returns the descriptive text for a personal year code.
func Interpret(code int) string {
	if text, ok := interpretations[code]; ok {
		return text
	}
	return UnknownInterpretation
}

// LifeCycle projects personal year codes for startYear through
// startYear+yearsAhead inclusive. A negative yearsAhead yields no entries.
func LifeCycle(d models.Date, startYear, yearsAhead int) []models.CycleEntry {
	if yearsAhead < 0 {
		return nil
	}
	entries := make([]models.CycleEntry, 0, yearsAhead+1)
	for year := startYear; year <= startYear+yearsAhead; year++ {
		code := PersonalYearCode(d, year)
		entries = append(entries, models.CycleEntry{
			Year:           year,
			Code:           code,
			Interpretation: Interpret(code),
		})
	}
	return entries
}
