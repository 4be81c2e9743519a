package models

import "time"

// RunStats are the totals recorded when a scan finishes.
type RunStats struct {
	Pages      int
	Written    int
	Failed     int
	Badges     int
	Visible    int
	FinishedAt time.Time
}
