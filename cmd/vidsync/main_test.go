package main

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/user/vidsync/pkg/config"
	"github.com/user/vidsync/pkg/mocks"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	out := &bytes.Buffer{}
	app.Writer = out
	app.ErrWriter = out
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"vidsync"}, args...))
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runApp(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "vidsync version dev") {
		t.Errorf("output = %q", out)
	}
}

func TestDemoCommand(t *testing.T) {
	summary := filepath.Join(t.TempDir(), "summary.md")
	out, err := runApp(t, "demo", "--quiet", "--frames", "10", "--rates", "25,50",
		"--speed", "8", "--width", "32", "--height", "18", "--summary", summary)
	if err != nil {
		t.Fatalf("demo: %v", err)
	}

	for _, want := range []string{"# Playback Summary", "synthetic@25", "synthetic@50", "| 8/1 |"} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q\n%s", want, out)
		}
	}
	if _, err := os.Stat(summary); err != nil {
		t.Errorf("summary file: %v", err)
	}
}

func TestPlayRequiresFiles(t *testing.T) {
	if _, err := runApp(t, "play", "--quiet"); err == nil {
		t.Error("expected an error without files")
	}
}

func TestProbeMissingFile(t *testing.T) {
	if _, err := runApp(t, "probe", filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestBuildConfigFlagsOverrideFile(t *testing.T) {
	fs := mocks.NewFileSystem()
	_ = fs.WriteFile("vidsync.yaml", []byte("queue_size: 8\nspeed: \"1/2\"\nsummary: from-file.md\n"))

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range sessionFlags() {
		if err := f.Apply(set); err != nil {
			t.Fatal(err)
		}
	}
	if err := set.Parse([]string{"--config", "vidsync.yaml", "--speed", "2", "--diff", "0,1", "-Q"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := buildConfig(cli.NewContext(newApp(), set, nil), fs)
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}

	want := config.Defaults()
	want.QueueSize = 8
	want.Speed = "2"
	want.Summary = "from-file.md"
	want.LogLevel = "quiet"
	want.Diff = config.DiffConfig{Enabled: true, A: 0, B: 1}

	if cfg.QueueSize != want.QueueSize || cfg.Speed != want.Speed || cfg.Summary != want.Summary ||
		cfg.LogLevel != want.LogLevel || cfg.Diff != want.Diff {
		t.Errorf("config = %+v, want %+v", cfg, want)
	}
}
