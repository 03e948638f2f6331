package model

// Zone is one row of the taxi zone lookup table. LocationID is globally
// unique; any trip referencing an id outside the loaded set is referentially
// invalid.
type Zone struct {
	LocationID  int64  `json:"LocationID"`
	Borough     string `json:"Borough"`
	Zone        string `json:"Zone"`
	ServiceZone string `json:"service_zone"`
}

// ZoneSet is the in-memory set of valid location ids built by the zone
// loader. A nil ZoneSet means no reference table was loaded and referential
// checks are skipped.
type ZoneSet map[int64]struct{}

// Contains reports whether id is a known location. A nil set accepts
// everything.
func (z ZoneSet) Contains(id int64) bool {
	if z == nil {
		return true
	}
	_, ok := z[id]
	return ok
}
