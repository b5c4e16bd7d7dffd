package core

import (
	"time"

	"wfm-core/model"
)

// ResolveBreaks picks the applicable break table with the precedence
// position -> shop -> network default.
func ResolveBreaks(position *model.Position, shop *model.Shop, networkBreaks model.BreakTriples) model.BreakTriples {
	if position != nil && len(position.Breaks) > 0 {
		return position.Breaks
	}
	if shop != nil && len(shop.Breaks) > 0 {
		return shop.Breaks
	}
	return networkBreaks
}

// BreakMinutesFor returns the total break minutes of the first triple whose
// range contains the raw shift duration.
func BreakMinutesFor(breaks model.BreakTriples, shift time.Duration) time.Duration {
	minutes := int(shift / time.Minute)
	for _, triple := range breaks {
		if minutes >= triple.MinMinutes && minutes <= triple.MaxMinutes {
			total := 0
			for _, b := range triple.BreakMinutes {
				total += b
			}
			return time.Duration(total) * time.Minute
		}
	}
	return 0
}
