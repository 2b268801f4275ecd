package main

import (
	"testing"

	"github.com/kontra-dev/kontra/internal/result"
)

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		status result.Status
		want   exitCode
	}{
		{result.StatusPassed, exitPassed},
		{result.StatusValidationFailed, exitValidationFailed},
		{result.StatusConfigError, exitConfigError},
		{result.StatusRuntimeError, exitRuntimeError},
	}

	for _, c := range cases {
		if got := exitCodeFor(c.status); got != c.want {
			t.Errorf("exitCodeFor(%v) = %d, want %d", c.status, got, c.want)
		}
	}
}

func TestTriStateEnabled(t *testing.T) {
	if !triStateEnabled("on", false) {
		t.Error("on should always resolve true")
	}
	if triStateEnabled("off", true) {
		t.Error("off should always resolve false")
	}
	if !triStateEnabled("auto", true) {
		t.Error("auto should fall back to the default")
	}
	if triStateEnabled("auto", false) {
		t.Error("auto should fall back to the default")
	}
	if !triStateEnabled("", true) {
		t.Error("empty value should fall back to the default")
	}
}
