package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NormalizeJourneyDate resolves the journey date to DD-MMM-YYYY. "auto"
// means today, "auto+N" means N days from today; anything else must already
// be in DD-MMM-YYYY form.
func NormalizeJourneyDate(date string, now time.Time) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(date))

	if strings.HasPrefix(lower, "auto") {
		offset := 0
		if rest, ok := strings.CutPrefix(lower, "auto+"); ok {
			n, err := strconv.Atoi(rest)
			if err != nil {
				return "", fmt.Errorf("invalid auto date %q: %w", date, err)
			}
			offset = n
		} else if lower != "auto" {
			return "", fmt.Errorf("invalid auto date %q", date)
		}
		return now.AddDate(0, 0, offset).Format("02-Jan-2006"), nil
	}

	if _, err := time.Parse("02-Jan-2006", date); err != nil {
		return "", fmt.Errorf("journey date %q is not DD-MMM-YYYY: %w", date, err)
	}
	return date, nil
}
