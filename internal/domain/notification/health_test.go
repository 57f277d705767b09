package notification

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCheckHealthUnconfiguredSkipsVerify(t *testing.T) {
	tr := &fakeTransport{configured: false}
	h := CheckHealth(context.Background(), tr)

	if h.Healthy || h.Configured || h.Message != "transport credentials not configured" {
		t.Fatalf("unexpected health %+v", h)
	}
	if tr.verified != 0 {
		t.Fatalf("Verify must not be called for an unconfigured transport")
	}
}

func TestCheckHealthVerifyError(t *testing.T) {
	tr := &fakeTransport{configured: true, verifyErr: errors.New("auth failed")}
	h := CheckHealth(context.Background(), tr)

	if h.Healthy || !h.Configured || !strings.Contains(h.Message, "auth failed") {
		t.Fatalf("unexpected health %+v", h)
	}
}

func TestCheckHealthRecoversPanic(t *testing.T) {
	tr := &fakeTransport{configured: true, verifyHook: func() { panic("socket gone") }}
	h := CheckHealth(context.Background(), tr)

	if h.Healthy || !h.Configured || !strings.Contains(h.Message, "socket gone") {
		t.Fatalf("unexpected health %+v", h)
	}
}

func TestCheckHealthHealthy(t *testing.T) {
	h := CheckHealth(context.Background(), &fakeTransport{configured: true})
	if !h.Healthy || !h.Configured || h.Message != "fake transport is healthy and configured" {
		t.Fatalf("unexpected health %+v", h)
	}
}
