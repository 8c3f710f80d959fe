package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/relabs-tech/magd/internal/device"
	"github.com/relabs-tech/magd/internal/imu"
	"github.com/relabs-tech/magd/internal/sensors"
)

type fakeSession struct {
	accel, mag imu.Triple
	err        error
	reads      int
	injected   []imu.Frame
}

func (s *fakeSession) ReadSample(time.Duration) (imu.Triple, imu.Triple, error) {
	s.reads++
	return s.accel, s.mag, s.err
}

func (s *fakeSession) Inject(f imu.Frame) int {
	s.injected = append(s.injected, f)
	return 8
}

// sumFusion makes frames that are easy to check.
type sumFusion struct{}

func (sumFusion) Fuse(accel, mag imu.Triple) imu.Frame {
	return imu.Frame{
		FieldX: int32(mag.X),
		FieldY: int32(mag.Y),
		FieldZ: int32(mag.Z),
		Yaw:    int32(accel.X) + int32(accel.Y) + int32(accel.Z),
		Status: imu.StatusAccuracyHigh,
	}
}

type countingPublisher struct {
	samples []imu.RawSample
	frames  []imu.Frame
}

func (p *countingPublisher) PublishSample(s imu.RawSample) { p.samples = append(p.samples, s) }
func (p *countingPublisher) PublishFrame(f imu.Frame)      { p.frames = append(p.frames, f) }
func (p *countingPublisher) Close()                        {}

func TestBridgeStepInjectsFusedFrame(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := &fakeSession{accel: imu.Triple{X: 1, Y: 2, Z: 3}, mag: imu.Triple{X: 10, Y: 20, Z: 30}}
	pub := &countingPublisher{}
	b := &bridge{session: s, fusion: sumFusion{}, pub: pub, publishEvery: 2, log: logger}

	for i := 0; i < 4; i++ {
		if ok, err := b.step(); !ok || err != nil {
			t.Fatalf("step %d = %v, %v", i, ok, err)
		}
	}
	if len(s.injected) != 4 {
		t.Fatalf("injected %d frames, want 4", len(s.injected))
	}
	want := imu.Frame{FieldX: 10, FieldY: 20, FieldZ: 30, Yaw: 6, Status: imu.StatusAccuracyHigh}
	if s.injected[0] != want {
		t.Errorf("frame = %+v, want %+v", s.injected[0], want)
	}
	if len(pub.frames) != 2 || len(pub.samples) != 2 {
		t.Errorf("published %d frames / %d samples, want 2 / 2", len(pub.frames), len(pub.samples))
	}
	if pub.samples[0].Mag != s.mag || pub.samples[0].Time.IsZero() {
		t.Errorf("sample = %+v", pub.samples[0])
	}
}

func TestBridgeStepOnReadError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		logged bool
	}{
		{"timeout", &sensors.PollError{Role: device.RoleMag, Err: sensors.ErrPollTimeout}, false},
		{"poll failure", &sensors.PollError{Role: device.RoleAccel, Err: errors.New("bad fd")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, hook := test.NewNullLogger()
			s := &fakeSession{err: tt.err}
			b := &bridge{session: s, fusion: sumFusion{}, pub: &countingPublisher{}, publishEvery: 1, log: logger}

			ok, err := b.step()
			if ok || err != nil {
				t.Fatalf("step = %v, %v; want false, nil", ok, err)
			}
			if len(s.injected) != 0 {
				t.Errorf("injected %d frames on error", len(s.injected))
			}
			if got := len(hook.AllEntries()) > 0; got != tt.logged {
				t.Errorf("logged = %v, want %v", got, tt.logged)
			}
		})
	}
}

func TestBridgeRunStopsOnCancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	s := &fakeSession{}
	b := &bridge{
		session:      cancellingSession{s, cancel, 3},
		fusion:       sumFusion{},
		pub:          &countingPublisher{},
		publishEvery: 1,
		log:          logger,
	}

	done := make(chan error, 1)
	go func() { done <- b.run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	if b.frames != 3 {
		t.Errorf("frames = %d, want 3", b.frames)
	}
}

func TestBridgeRunStopsOnHangup(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := &fakeSession{err: &sensors.PollError{
		Role: device.RoleMag,
		Err:  fmt.Errorf("%w (revents 0x10)", sensors.ErrHangup),
	}}
	b := &bridge{session: s, fusion: sumFusion{}, pub: &countingPublisher{}, publishEvery: 1, log: logger}

	err := b.run(context.Background())
	if !errors.Is(err, sensors.ErrHangup) {
		t.Fatalf("run = %v, want ErrHangup", err)
	}
	if s.reads != 1 || len(s.injected) != 0 {
		t.Errorf("reads = %d, injected = %d; want 1, 0", s.reads, len(s.injected))
	}
	if len(hook.AllEntries()) != 0 {
		t.Errorf("unexpected log entries: %v", hook.AllEntries())
	}
}

func TestNotifyContextCancelsOnSignal(t *testing.T) {
	ctx, stop := notifyContext(context.Background(), syscall.SIGUSR1)
	defer stop()

	if err := syscall.Kill(os.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled by signal")
	}
}

// cancellingSession cancels the loop once it has served n reads.
type cancellingSession struct {
	*fakeSession
	cancel context.CancelFunc
	n      int
}

func (s cancellingSession) ReadSample(d time.Duration) (imu.Triple, imu.Triple, error) {
	a, m, err := s.fakeSession.ReadSample(d)
	if s.reads >= s.n {
		s.cancel()
	}
	return a, m, err
}

func TestPollTimeout(t *testing.T) {
	if got := pollTimeout(-1); got != sensors.WaitForever {
		t.Errorf("pollTimeout(-1) = %v, want WaitForever", got)
	}
	if got := pollTimeout(250); got != 250*time.Millisecond {
		t.Errorf("pollTimeout(250) = %v", got)
	}
}

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.GetLevel())
	if err := SetupLogging("debug"); err != nil {
		t.Fatal(err)
	}
	if log.GetLevel() != log.DebugLevel {
		t.Errorf("level = %v, want debug", log.GetLevel())
	}
	if err := SetupLogging("chatty"); err == nil {
		t.Error("SetupLogging accepted an invalid level")
	}
}

func TestConsolePrinter(t *testing.T) {
	var buf bytes.Buffer
	p := consolePrinter{out: &buf}

	p.frame([]byte(`{"field_x":1,"field_y":2,"field_z":3,"yaw":4,"pitch":5,"roll":6,"status":3}`))
	p.raw([]byte(`{"accel":{"x":7,"y":8,"z":9},"mag":{"x":-1,"y":-2,"z":-3}}`))
	p.frame([]byte(`not json`))

	out := buf.String()
	if !strings.Contains(out, "yaw=     4") || !strings.Contains(out, "status=3") {
		t.Errorf("frame line missing values:\n%s", out)
	}
	if !strings.Contains(out, "ax=     7") || !strings.Contains(out, "mz=    -3") {
		t.Errorf("raw line missing values:\n%s", out)
	}
	if n := strings.Count(out, "\n"); n != 2 {
		t.Errorf("printed %d lines, want 2", n)
	}
}

func TestWebFrameEndpoint(t *testing.T) {
	hub := newFrameHub()
	srv := httptest.NewServer(hub.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/frame")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status before data = %d, want 503", resp.StatusCode)
	}

	want := imu.Frame{FieldX: 1, Yaw: 90, Status: 3}
	hub.publish(want)

	resp, err = http.Get(srv.URL + "/api/frame")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got imu.Frame
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("frame = %+v, want %+v", got, want)
	}
}

func TestWebSocketStreamsFrames(t *testing.T) {
	hub := newFrameHub()
	srv := httptest.NewServer(hub.routes())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/frames"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// wait until the hub has registered the client
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.RLock()
		n := len(hub.clients)
		hub.mu.RUnlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	want := imu.Frame{FieldZ: -40, Roll: 12, Status: 2}
	hub.publish(want)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got imu.Frame
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != want {
		t.Errorf("frame = %+v, want %+v", got, want)
	}
}
