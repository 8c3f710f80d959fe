package evdev

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func TestEventLayout(t *testing.T) {
	buf := Abs(ABS_RY, -5).Marshal()
	if len(buf) != Size {
		t.Fatalf("len = %d, want %d", len(buf), Size)
	}
	for i := 0; i < timevalSize; i++ {
		if buf[i] != 0 {
			t.Fatalf("timestamp byte %d = 0x%02x, want 0", i, buf[i])
		}
	}
	if got := binary.NativeEndian.Uint16(buf[timevalSize:]); got != EV_ABS {
		t.Errorf("type = 0x%x, want 0x%x", got, EV_ABS)
	}
	if got := binary.NativeEndian.Uint16(buf[timevalSize+2:]); got != ABS_RY {
		t.Errorf("code = 0x%x, want 0x%x", got, ABS_RY)
	}
	if got := int32(binary.NativeEndian.Uint32(buf[timevalSize+4:])); got != -5 {
		t.Errorf("value = %d, want -5", got)
	}
}

func TestUnmarshalRejectsPartialRecord(t *testing.T) {
	for _, n := range []int{0, 1, Size - 1, Size + 1} {
		if _, err := Unmarshal(make([]byte, n)); err == nil {
			t.Errorf("Unmarshal(%d bytes) succeeded, want error", n)
		}
	}
}

func TestMarshalAllKeepsOrder(t *testing.T) {
	want := []Event{Abs(ABS_X, 10), Abs(ABS_Y, 20), Abs(ABS_Z, 30), Sync()}
	buf := MarshalAll(want...)
	if len(buf) != len(want)*Size {
		t.Fatalf("len = %d, want %d", len(buf), len(want)*Size)
	}
	for i, w := range want {
		got, err := Unmarshal(buf[i*Size : (i+1)*Size])
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if got != w {
			t.Errorf("record %d = %v, want %v", i, got, w)
		}
	}
	if !want[3].IsSync() || want[0].IsSync() {
		t.Error("IsSync mismatch")
	}
}

func TestEVIOCGNAMERequest(t *testing.T) {
	// EVIOCGNAME(79) as computed by the kernel headers.
	if got := eviocgname(NameLen - 1); got != 0x804f4506 {
		t.Errorf("EVIOCGNAME(79) = 0x%x, want 0x804f4506", got)
	}
}

func TestDeviceNameOnRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event0")
	if err := os.WriteFile(path, []byte("not a device"), 0o600); err != nil {
		t.Fatal(err)
	}
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer unix.Close(fd)

	name, err := DeviceName(fd)
	if !errors.Is(err, unix.ENOTTY) {
		t.Errorf("err = %v, want ENOTTY", err)
	}
	if name != "" {
		t.Errorf("name = %q, want empty", name)
	}
}
