package models

// Default USR trailer words. Readers use them to check record alignment.
const (
	DefaultUser1 int32 = 0x2222
	DefaultUser2 int32 = 0x3333
	DefaultUser3 int32 = 0x5555
)

// DefaultSentinels returns the USR1..USR3 trailer words in order.
func DefaultSentinels() [3]int32 {
	return [3]int32{DefaultUser1, DefaultUser2, DefaultUser3}
}

// Record is one muxed sample instant. Channels holds sensorCount×4
// values ordered S1X S1Y S1Z S1T S2X ...; Position is only meaningful
// for schemas that carry XPOS/YPOS/ZPOS.
type Record struct {
	Channels []int16
	Position [3]int32
	Count    int32
	Usec     int32
	User     [3]int32
}

// Channel returns the value of one sensor axis (sensor numbered from 1).
func (r *Record) Channel(sensor int, axis Axis) int16 {
	return r.Channels[(sensor-1)*AxesPerSensor+int(axis)]
}

// Trailer returns the SPAD words CNT, USEC, USR1, USR2, USR3 in order.
func (r *Record) Trailer() [5]int32 {
	return [5]int32{r.Count, r.Usec, r.User[0], r.User[1], r.User[2]}
}

// CSVRow serialises the record in field order; position columns are
// emitted only when withPosition is set.
func (r *Record) CSVRow(withPosition bool) []string {
	row := make([]string, 0, len(r.Channels)+3+5)
	for _, c := range r.Channels {
		row = append(row, itoa(int(c)))
	}
	if withPosition {
		for _, p := range r.Position {
			row = append(row, itoa(int(p)))
		}
	}
	for _, t := range r.Trailer() {
		row = append(row, itoa(int(t)))
	}
	return row
}

// Equal reports whether two records carry identical field values.
func (r *Record) Equal(o *Record) bool {
	if len(r.Channels) != len(o.Channels) {
		return false
	}
	for i := range r.Channels {
		if r.Channels[i] != o.Channels[i] {
			return false
		}
	}
	return r.Position == o.Position && r.Trailer() == o.Trailer()
}
