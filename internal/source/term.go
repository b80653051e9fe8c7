package source

import (
	"fmt"
	"time"

	"github.com/zombor/invoice-checker/internal/lottery"
)

// rocEpoch converts a Gregorian year into the Republic of China calendar
const rocEpoch = 1911

// LatestDrawnTerm returns the term and period label of the most recent period
// that has been drawn as of now. Draws happen on the 25th of odd months for the
// two months before, so the previous even month is used.
func LatestDrawnTerm(now time.Time) (term string, period string) {
	year := now.Year() - rocEpoch
	end := int(now.Month()) - 1
	if end%2 != 0 {
		end--
	}
	if end == 0 {
		end = 12
		year--
	}
	return fmt.Sprintf("%d%02d", year, end), lottery.FormatPeriod(year, end)
}
