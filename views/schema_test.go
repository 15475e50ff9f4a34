package views

import (
	"errors"
	"strings"
	"testing"

	"muxsynth/models"
)

func TestSchemaSizes(t *testing.T) {
	cases := []struct {
		sensors  int
		position bool
		want     int
		usr3     int
	}{
		{8, true, 96, 92},
		{8, false, 84, 80},
		{1, false, 28, 24},
		{2, true, 48, 44},
	}
	for _, c := range cases {
		s, err := NewSchema(c.sensors, c.position)
		if err != nil {
			t.Fatalf("NewSchema(%d, %v): %v", c.sensors, c.position, err)
		}
		if s.RecordSize() != c.want {
			t.Fatalf("NewSchema(%d, %v) size = %d, want %d", c.sensors, c.position, s.RecordSize(), c.want)
		}
		f, ok := s.Field("USR3")
		if !ok || f.Offset != c.usr3 {
			t.Fatalf("NewSchema(%d, %v) USR3 = %+v, want offset %d", c.sensors, c.position, f, c.usr3)
		}
	}
}

func TestSchemaRejectsNoSensors(t *testing.T) {
	for _, n := range []int{0, -3} {
		if _, err := NewSchema(n, true); !errors.Is(err, models.ErrInvalidSensorCount) {
			t.Fatalf("NewSchema(%d): got %v, want ErrInvalidSensorCount", n, err)
		}
	}
}

func TestSchemaFieldOrder(t *testing.T) {
	s, err := NewSchema(2, true)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"S1X", "S1Y", "S1Z", "S1T", "S2X", "S2Y", "S2Z", "S2T",
		"XPOS", "YPOS", "ZPOS", "CNT", "USEC", "USR1", "USR2", "USR3",
	}
	got := s.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("names = %v", got)
	}

	offset := 0
	for _, f := range s.Fields() {
		if f.Offset != offset {
			t.Fatalf("%s at offset %d, want %d", f.Name, f.Offset, offset)
		}
		if !f.Signed {
			t.Fatalf("%s unsigned", f.Name)
		}
		offset += f.Width
	}

	f, ok := s.Field("XPOS")
	if !ok || f.Offset != 16 || f.Width != 4 {
		t.Fatalf("XPOS = %+v, %v", f, ok)
	}
	f, ok = s.Field("S2T")
	if !ok || f.Offset != 14 || f.Width != 2 {
		t.Fatalf("S2T = %+v, %v", f, ok)
	}

	np, _ := NewSchema(2, false)
	if _, ok := np.Field("XPOS"); ok {
		t.Fatal("no-position schema has XPOS")
	}
	if f, _ := np.Field("CNT"); f.Offset != 16 {
		t.Fatalf("CNT offset %d, want 16", f.Offset)
	}
}

func TestSchemaString(t *testing.T) {
	s, _ := NewSchema(1, false)
	want := "[('S1X', '<i2'), ('S1Y', '<i2'), ('S1Z', '<i2'), ('S1T', '<i2'), " +
		"('CNT', '<i4'), ('USEC', '<i4'), ('USR1', '<i4'), ('USR2', '<i4'), ('USR3', '<i4')]"
	if got := s.String(); got != want {
		t.Fatalf("got %s", got)
	}
}
