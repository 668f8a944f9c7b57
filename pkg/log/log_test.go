package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/yeisme/pubvault/pkg/configs"
)

func TestInitFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pubvault.log")

	Init(configs.LogConfig{EnableFile: true, FilePath: path, MaxSize: 1, Level: "debug"}, false)
	t.Cleanup(func() { _ = Close() })

	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("global level = %v, want debug", zerolog.GlobalLevel())
	}

	Component("test").Info().Msg("hello")

	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), `"component":"test"`) {
		t.Fatalf("log file content %q, err %v", data, err)
	}
}

func TestInitInvalidLevelFallsBack(t *testing.T) {
	Init(configs.LogConfig{Level: "loud"}, false)

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("global level = %v, want info", zerolog.GlobalLevel())
	}
}

type captureWriter struct{ strings.Builder }

func TestGinWriter(t *testing.T) {
	var buf captureWriter

	l := zerolog.New(&buf)
	w := NewGinWriter(&l, zerolog.WarnLevel)

	if _, err := w.Write([]byte("  [GIN-debug] route registered \n")); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, "route registered") {
		t.Fatalf("unexpected output %q", out)
	}
}
