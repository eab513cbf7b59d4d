package conference

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestCode_ErrorsIs(t *testing.T) {
	wrapped := fmt.Errorf("start pipes: %w", AsError(3))
	if !errors.Is(wrapped, ErrInvalidParameter) {
		t.Error("expected wrapped code 3 to match ErrInvalidParameter")
	}
	if errors.Is(wrapped, ErrUninitialized) {
		t.Error("code 3 must not match ErrUninitialized")
	}
	if AsError(0) != nil {
		t.Error("expected nil for success code")
	}
	if !strings.Contains(Code(99).Error(), "99") {
		t.Errorf("unexpected text for unknown code: %s", Code(99).Error())
	}
}

func TestStatusEvent_Text(t *testing.T) {
	tests := []struct {
		ev   StatusEvent
		want string
	}{
		{StatusEvent{Status: StatusConnecting}, "Connecting to meeting..."},
		{StatusEvent{Status: StatusInMeeting}, "In meeting"},
		{StatusEvent{Status: StatusReconnecting}, "Reconnecting..."},
		{StatusEvent{Status: StatusFailed, Result: 5}, "Disconnected: meeting failed with status: 5"},
		{StatusEvent{Status: StatusLocked}, "Meeting status: locked (result 0)"},
	}

	for _, tt := range tests {
		if got := tt.ev.Text(); got != tt.want {
			t.Errorf("Text(%v) = %q, want %q", tt.ev.Status, got, tt.want)
		}
	}
}

func TestGenerateJWT(t *testing.T) {
	now := time.Unix(1700000000, 0)
	signed, err := GenerateJWT("key", "secret", "1234567890", now)
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	var claims sdkClaims
	_, err = jwt.ParseWithClaims(signed, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}

	if claims.SDKKey != "key" || claims.AppKey != "key" {
		t.Errorf("unexpected keys: %+v", claims)
	}
	if claims.Meeting != "1234567890" {
		t.Errorf("expected mn claim, got %q", claims.Meeting)
	}
	if claims.Role != 1 {
		t.Errorf("expected host role, got %d", claims.Role)
	}
	if claims.TokenExp != now.Add(24*time.Hour).Unix() {
		t.Errorf("unexpected tokenExp %d", claims.TokenExp)
	}
}

func TestGenerateJWT_MissingCredentials(t *testing.T) {
	_, err := GenerateJWT("", "secret", "1", time.Now())
	if !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func nextStatus(t *testing.T, ch <-chan StatusEvent) StatusEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for status event")
		return StatusEvent{}
	}
}

func TestSimulator_JoinLeaveSequence(t *testing.T) {
	sim := NewSimulator(5 * time.Millisecond)
	defer sim.Close()
	ctx := context.Background()

	if err := sim.Join(ctx, JoinParams{MeetingNumber: 1}); !errors.Is(err, ErrUninitialized) {
		t.Fatalf("expected ErrUninitialized before Init, got %v", err)
	}

	ch, unsubscribe := sim.Subscribe()
	defer unsubscribe()

	sim.Init(ctx)
	if err := sim.Auth(ctx, "token"); err != nil {
		t.Fatalf("Auth failed: %v", err)
	}
	if err := sim.Join(ctx, JoinParams{MeetingNumber: 1234}); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	if ev := nextStatus(t, ch); ev.Status != StatusConnecting {
		t.Errorf("expected connecting, got %s", ev.Status)
	}
	if ev := nextStatus(t, ch); ev.Status != StatusInMeeting {
		t.Errorf("expected in_meeting, got %s", ev.Status)
	}

	if err := sim.Leave(ctx); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	if ev := nextStatus(t, ch); ev.Status != StatusDisconnecting {
		t.Errorf("expected disconnecting, got %s", ev.Status)
	}
	if ev := nextStatus(t, ch); ev.Status != StatusEnded {
		t.Errorf("expected ended, got %s", ev.Status)
	}
}

func TestSimulator_UnsubscribeTwice(t *testing.T) {
	sim := NewSimulator(0)
	defer sim.Close()

	_, unsubscribe := sim.Subscribe()
	unsubscribe()
	unsubscribe()

	// Delivery must not block on a removed subscriber.
	sim.Inject(StatusEvent{Status: StatusConnecting})
	ch, unsub2 := sim.Subscribe()
	defer unsub2()
	sim.Inject(StatusEvent{Status: StatusReconnecting})
	for {
		ev := nextStatus(t, ch)
		if ev.Status == StatusReconnecting {
			break
		}
	}
}

func TestSimRawData_CreatesAndRemovesFIFOs(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("FIFOs are not materialized on windows")
	}

	dir := t.TempDir()
	rd := &simRawData{}

	if err := rd.StartPipeServe(); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter without params, got %v", err)
	}

	params := PipeParams{
		VideoPipeName: filepath.Join(dir, "video"),
		SharePipeName: filepath.Join(dir, "share"),
		AudioPipeName: filepath.Join(dir, "audio"),
	}
	if err := rd.SetPipeServeInitParam(params); err != nil {
		t.Fatalf("SetPipeServeInitParam failed: %v", err)
	}
	if rd.params.MaxReadLength != DefaultMaxReadLength {
		t.Errorf("expected default max read length, got %d", rd.params.MaxReadLength)
	}
	if err := rd.StartPipeServe(); err != nil {
		t.Fatalf("StartPipeServe failed: %v", err)
	}

	info, err := os.Stat(params.VideoPipeName)
	if err != nil {
		t.Fatalf("expected video pipe to exist: %v", err)
	}
	if info.Mode()&os.ModeNamedPipe == 0 {
		t.Errorf("expected named pipe, got mode %v", info.Mode())
	}

	rd.StopPipeServe()
	if _, err := os.Stat(params.AudioPipeName); !os.IsNotExist(err) {
		t.Errorf("expected audio pipe removed, got %v", err)
	}
}
