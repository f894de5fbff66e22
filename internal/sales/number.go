package sales

import (
	"fmt"
	"strconv"
	"strings"
)

const saleNumberPrefix = "V"

// formatSaleNumber renders V{year}{sequence}, the sequence padded to four
// digits.
func formatSaleNumber(year, seq int) string {
	return fmt.Sprintf("%s%d%04d", saleNumberPrefix, year, seq)
}

func yearPrefix(year int) string {
	return fmt.Sprintf("%s%d", saleNumberPrefix, year)
}

// nextSequence returns the sequence following latest, or 1 when latest is
// empty or not a number of the given year.
func nextSequence(latest string, year int) int {
	prefix := yearPrefix(year)
	if !strings.HasPrefix(latest, prefix) {
		return 1
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(latest, prefix))
	if err != nil || seq < 0 {
		return 1
	}
	return seq + 1
}
