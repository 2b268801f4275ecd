package kontralog

import (
	"os"
	"sync"
	"testing"
)

func TestIODebugEnabledReflectsEnv(t *testing.T) {
	os.Setenv("KONTRA_IO_DEBUG", "1")
	defer os.Unsetenv("KONTRA_IO_DEBUG")

	once = sync.Once{}
	Init()

	if !IODebugEnabled() {
		t.Fatal("expected IODebugEnabled to be true when KONTRA_IO_DEBUG=1")
	}
}

func TestPhaseAndEventDoNotPanic(t *testing.T) {
	once = sync.Once{}
	Init()

	Phase("preplan", 0)
	Event().Str("rule", "not_null").Msg("decided")
	Debug().Msg("verbose detail")
	Error(os.ErrClosed).Msg("failed")
}
