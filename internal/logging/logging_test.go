package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestVarDefaultsToNop(t *testing.T) {
	var v Var
	if v.Load() != Nop() {
		t.Error("zero Var should return the nop logger")
	}
	if v.Load().Enabled(context.Background(), slog.LevelError) {
		t.Error("nop logger reports Enabled")
	}
}

func TestVarStore(t *testing.T) {
	var v Var
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))

	v.Store(l)
	v.Load().Info("hello")
	if !bytes.Contains(buf.Bytes(), []byte("hello")) {
		t.Errorf("output %q missing message", buf.String())
	}

	v.Store(nil)
	if v.Load() != Nop() {
		t.Error("Store(nil) should restore the nop logger")
	}
}
