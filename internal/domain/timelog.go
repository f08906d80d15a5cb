package domain

// TimeLog is one recorded work interval. Start and End are kept as the raw
// ISO-8601 strings the backend sent so that malformed values can be carried
// through and rendered rather than rejected at decode time.
type TimeLog struct {
	ID    string `json:"id,omitempty"`
	Start string `json:"start"`
	End   string `json:"end,omitempty"` // empty while the interval is open
}
