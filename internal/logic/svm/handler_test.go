package svm

import (
	"errors"
	"math"
	"testing"

	"github.com/cjeanneret/svmdrive/internal/logic/fixed"
)

var unity = fixed.FromReal[int32, fixed.Q10](1.0)

// expectedChannels is a float reference of the modulator for sector angle
// steps of 60/n degrees.
func expectedChannels(elec, n int, scaleMax uint16, m float64) [3]uint16 {
	sector := elec / n
	rad := float64(elec%n) * (60.0 / float64(n)) * math.Pi / 180.0

	a := int(math.Round(math.Sin(math.Pi/3.0-rad) * float64(scaleMax) * m))
	b := int(math.Round(math.Sin(rad) * float64(scaleMax) * m))
	z := (int(scaleMax) - a - b + 1) >> 1

	var c [3]int
	switch sector % 6 {
	case 0:
		c = [3]int{z, z + b, z + a + b}
	case 1:
		c = [3]int{z, z + a + b, z + a}
	case 2:
		c = [3]int{z + b, z + a + b, z}
	case 3:
		c = [3]int{z + a + b, z + a, z}
	case 4:
		c = [3]int{z + a + b, z, z + b}
	case 5:
		c = [3]int{z + a, z, z + a + b}
	}
	return [3]uint16{uint16(c[0]), uint16(c[1]), uint16(c[2])}
}

func mustHandler[P Precision](t *testing.T, scaleMax uint16) *Handler[P] {
	t.Helper()
	h, err := NewHandler[P](scaleMax)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return h
}

func TestNewHandler(t *testing.T) {
	h := mustHandler[P8](t, 1000)
	if h.ElecAngle() != 0 {
		t.Errorf("ElecAngle() = %d, want 0", h.ElecAngle())
	}
	if h.AnglePrecision() != 0.234375 {
		t.Errorf("AnglePrecision() = %v, want 0.234375", h.AnglePrecision())
	}
	if h.MaxAngle() != 1536 {
		t.Errorf("MaxAngle() = %d, want 1536", h.MaxAngle())
	}
	if h.ScaleMax() != 1000 {
		t.Errorf("ScaleMax() = %d, want 1000", h.ScaleMax())
	}
	if h.Channels() != [3]uint16{} {
		t.Errorf("Channels() = %v before Update, want zeros", h.Channels())
	}

	if _, err := NewHandler[P8](0); !errors.Is(err, ErrInvalidScale) {
		t.Errorf("NewHandler(0) err = %v, want ErrInvalidScale", err)
	}
}

func TestSetElecAngle(t *testing.T) {
	tests := []struct {
		in          int32
		want        int32
		sector      uint8
		sectorAngle uint16
	}{
		{0, 0, 0, 0},
		{255, 255, 0, 255},
		{256, 256, 1, 0},
		{1535, 1535, 5, 255},
		{1536, 0, 0, 0},
		{-1, 1535, 5, 255},
		{-1537, 1535, 5, 255},
		{3072 + 5, 5, 0, 5},
	}
	h := mustHandler[P8](t, 1000)
	for _, tt := range tests {
		h.SetElecAngle(tt.in)
		if h.ElecAngle() != tt.want {
			t.Errorf("SetElecAngle(%d): ElecAngle() = %d, want %d", tt.in, h.ElecAngle(), tt.want)
		}
		pos := h.Position()
		if pos.Sector != tt.sector || pos.SectorAngle != tt.sectorAngle {
			t.Errorf("SetElecAngle(%d): Position() = %+v, want {%d %d}", tt.in, pos, tt.sector, tt.sectorAngle)
		}
	}
}

func TestSetAngleDegrees(t *testing.T) {
	h := mustHandler[P8](t, 1000)
	h.SetAngleDegrees(73)
	if h.ElecAngle() != 311 {
		t.Errorf("SetAngleDegrees(73): ElecAngle() = %d, want 311", h.ElecAngle())
	}
	h.SetAngleDegrees(-90)
	if h.ElecAngle() != 1152 {
		t.Errorf("SetAngleDegrees(-90): ElecAngle() = %d, want 1152", h.ElecAngle())
	}
	if h.AngleDegrees() != 270 {
		t.Errorf("AngleDegrees() = %v, want 270", h.AngleDegrees())
	}
}

func TestMoveWraps(t *testing.T) {
	h := mustHandler[P8](t, 1000)
	h.Move(-1)
	if h.ElecAngle() != 1535 {
		t.Errorf("Move(-1) from 0 = %d, want 1535", h.ElecAngle())
	}
	h.Move(1)
	if h.ElecAngle() != 0 {
		t.Errorf("Move(1) from 1535 = %d, want 0", h.ElecAngle())
	}

	small := mustHandler[P3](t, 1000)
	small.Move(32767)
	if small.ElecAngle() != 31 {
		t.Errorf("P3 Move(32767) = %d, want 31", small.ElecAngle())
	}
	small.Move(-32768)
	if want := int32((31 - 32768%48 + 48) % 48); small.ElecAngle() != want {
		t.Errorf("P3 Move(-32768) = %d, want %d", small.ElecAngle(), want)
	}
}

func checkProgression[P Precision](t *testing.T, step int16) {
	t.Helper()
	h := mustHandler[P](t, 1000)
	n := Steps[P]()
	full := 6 * n
	for i := 0; i < 2*full; i++ {
		// Walking backwards, step i sits at angle -i mod full.
		elec := i % full
		if step < 0 {
			elec = (full - elec) % full
		}
		if got := int(h.ElecAngle()); got != elec {
			t.Fatalf("P%d step %d: ElecAngle() = %d, want %d", bits[P](), i, got, elec)
		}
		if got := int(h.Sector()); got != elec/n {
			t.Fatalf("P%d step %d: Sector() = %d, want %d", bits[P](), i, got, elec/n)
		}
		if got := int(h.SectorAngle()); got != elec%n {
			t.Fatalf("P%d step %d: SectorAngle() = %d, want %d", bits[P](), i, got, elec%n)
		}
		h.Move(step)
	}
}

func TestMoveSectorProgression(t *testing.T) {
	t.Run("forward", func(t *testing.T) {
		checkProgression[P3](t, 1)
		checkProgression[P8](t, 1)
		checkProgression[P12](t, 1)
	})
	t.Run("reverse", func(t *testing.T) {
		checkProgression[P3](t, -1)
		checkProgression[P8](t, -1)
		checkProgression[P12](t, -1)
	})
}

func checkAgainstReference[P Precision](t *testing.T, h *Handler[P], step int16) {
	t.Helper()
	n := Steps[P]()
	for i := 0; i < 7*6*n; i++ {
		h.Update(unity)
		want := expectedChannels(int(h.ElecAngle()), n, h.ScaleMax(), 1.0)
		if got := h.Channels(); got != want {
			t.Fatalf("P%d angle %d: Channels() = %v, want %v", bits[P](), h.ElecAngle(), got, want)
		}
		if h.CCR1() != want[0] || h.CCR2() != want[1] || h.CCR3() != want[2] {
			t.Fatalf("P%d angle %d: CCR accessors disagree with Channels()", bits[P](), h.ElecAngle())
		}
		h.Move(step)
	}
}

func TestUpdateMatchesReference(t *testing.T) {
	for _, step := range []int16{1, -1} {
		checkAgainstReference(t, mustHandler[P3](t, 1000), step)
		checkAgainstReference(t, mustHandler[P4](t, 1000), step)
		checkAgainstReference(t, mustHandler[P8](t, 1000), step)
		checkAgainstReference(t, NewHandlerWithTable[P8](DefaultROMTable), step)

		rom, err := NewROMTable[P4](1000)
		if err != nil {
			t.Fatalf("NewROMTable: %v", err)
		}
		checkAgainstReference(t, NewHandlerWithTable[P4](rom), step)
	}
}

func TestChannelSumMatchesFloatModel(t *testing.T) {
	const scale = 1000.0
	h := mustHandler[P8](t, scale)
	n := Steps[P8]()
	for elec := 0; elec < 6*n; elec++ {
		h.SetElecAngle(int32(elec))
		h.Update(unity)

		rad := float64(elec%n) * (60.0 / float64(n)) * math.Pi / 180.0
		a := scale * math.Sin(math.Pi/3.0-rad)
		b := scale * math.Sin(rad)
		z := (scale - a - b) / 2
		want := 3*z + a + 2*b
		if (elec/n)%2 == 1 {
			want = 3*z + 2*a + b
		}

		c := h.Channels()
		got := float64(c[0]) + float64(c[1]) + float64(c[2])
		if math.Abs(got-want) >= 5 {
			t.Fatalf("angle %d: channel sum = %v, float model = %v", elec, got, want)
		}
		for i, v := range c {
			if v > h.ScaleMax() {
				t.Fatalf("angle %d: channel %d = %d exceeds %d", elec, i+1, v, h.ScaleMax())
			}
		}
	}
}

func TestUpdateKnownAngles(t *testing.T) {
	tests := []struct {
		name string
		elec int32
		want [3]uint16
	}{
		{"start of sector 0", 0, [3]uint16{67, 67, 933}},
		{"middle of sector 0", 128, [3]uint16{0, 500, 1000}},
		{"73 degrees", 311, [3]uint16{22, 978, 755}},
	}
	h := mustHandler[P8](t, 1000)
	for _, tt := range tests {
		h.SetElecAngle(tt.elec)
		h.Update(unity)
		if got := h.Channels(); got != tt.want {
			t.Errorf("%s: Channels() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestUpdateZeroModulationCenters(t *testing.T) {
	h := mustHandler[P8](t, 1000)
	for _, m := range []float64{0, -0.5} {
		for elec := int32(0); elec < h.MaxAngle(); elec += 37 {
			h.SetElecAngle(elec)
			h.Update(fixed.FromReal[int32, fixed.Q10](m))
			if got := h.Channels(); got != [3]uint16{500, 500, 500} {
				t.Fatalf("m=%v angle %d: Channels() = %v, want all 500", m, elec, got)
			}
		}
	}
}

func TestUpdateOverModulationSaturates(t *testing.T) {
	h := mustHandler[P8](t, 1000)
	over := fixed.FromReal[int32, fixed.Q10](2.0)
	for elec := int32(0); elec < h.MaxAngle(); elec++ {
		h.SetElecAngle(elec)
		h.Update(over)
		for i, v := range h.Channels() {
			if v > 1000 {
				t.Fatalf("angle %d: channel %d = %d exceeds 1000", elec, i+1, v)
			}
		}
	}

	h.SetElecAngle(128)
	h.Update(over)
	if got := h.Channels(); got != [3]uint16{0, 1000, 1000} {
		t.Errorf("Channels() = %v, want [0 1000 1000]", got)
	}
}

func TestState(t *testing.T) {
	h := mustHandler[P8](t, 1000)
	h.SetElecAngle(311)
	h.Update(unity)
	s := h.State()
	want := State{
		ElecAngle:   311,
		Degrees:     72.890625,
		Sector:      1,
		SectorAngle: 55,
		Channels:    [3]uint16{22, 978, 755},
		ScaleMax:    1000,
	}
	if s != want {
		t.Errorf("State() = %+v, want %+v", s, want)
	}
}
