package views

import (
	"fmt"
	"strings"

	"muxsynth/models"
)

// A muxed record for n sensors, packed little-endian with no header or
// padding:
//
//	offset 0        S1X S1Y S1Z S1T S2X ... SnT      int16 each
//	offset 8n       XPOS YPOS ZPOS                   int32, optional
//	then            CNT USEC USR1 USR2 USR3          int32 each

const (
	channelWidth = 2
	wordWidth    = 4
)

var (
	positionNames = [...]string{"XPOS", "YPOS", "ZPOS"}
	trailerNames  = [...]string{"CNT", "USEC", "USR1", "USR2", "USR3"}
)

// Field is one column of a record.
type Field struct {
	Name   string
	Width  int // bytes
	Signed bool
	Offset int // bytes from record start
}

// DType renders the field type in numpy notation, e.g. "<i2".
func (f Field) DType() string {
	kind := "u"
	if f.Signed {
		kind = "i"
	}
	return fmt.Sprintf("<%s%d", kind, f.Width)
}

// Schema is the fixed binary layout of a record. It is fully determined
// by the sensor count and whether position words are included.
type Schema struct {
	fields   []Field
	index    map[string]int
	sensors  int
	position bool
	size     int
}

// NewSchema derives the record layout:
//
//	S{1..n}{X,Y,Z,T} int16 ++ [XPOS YPOS ZPOS int32] ++ CNT USEC USR1 USR2 USR3 int32
func NewSchema(sensorCount int, positionIncluded bool) (Schema, error) {
	if sensorCount < 1 {
		return Schema{}, fmt.Errorf("%w: %d (need >= 1)", models.ErrInvalidSensorCount, sensorCount)
	}
	s := Schema{
		sensors:  sensorCount,
		position: positionIncluded,
		index:    make(map[string]int),
	}
	for n := 1; n <= sensorCount; n++ {
		for _, a := range models.Axes() {
			s.add(models.ChannelName(n, a), channelWidth)
		}
	}
	if positionIncluded {
		for _, name := range positionNames {
			s.add(name, wordWidth)
		}
	}
	for _, name := range trailerNames {
		s.add(name, wordWidth)
	}
	return s, nil
}

func (s *Schema) add(name string, width int) {
	s.index[name] = len(s.fields)
	s.fields = append(s.fields, Field{Name: name, Width: width, Signed: true, Offset: s.size})
	s.size += width
}

// RecordSize returns the size of one record in bytes.
func (s Schema) RecordSize() int { return s.size }

func (s Schema) SensorCount() int  { return s.sensors }
func (s Schema) HasPosition() bool { return s.position }

// Fields returns a copy of the field list in record order.
func (s Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Field looks a column up by name.
func (s Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Names returns the column names in record order.
func (s Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// String renders the schema as a numpy structured dtype, which is what
// downstream readers pass to np.fromfile.
func (s Schema) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = fmt.Sprintf("('%s', '%s')", f.Name, f.DType())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// channelCount is the number of int16 channel words per record.
func (s Schema) channelCount() int { return s.sensors * models.AxesPerSensor }
