package logger

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/user/vidsync/pkg/ports"
)

func TestConsoleLogger_LevelFiltering(t *testing.T) {
	var stdout, stderr bytes.Buffer
	log := NewWriter(ports.LevelInfo, &stdout, &stderr, false)

	log.Debug("Prefilling %d frames", 8)
	log.Info("Seeking to %d ms", 1000)
	log.Warn("Render failed on stream %d: %v", 1, "boom")

	if strings.Contains(stdout.String(), "Prefilling") {
		t.Error("debug message written at info level")
	}
	if got := stdout.String(); got != "Seeking to 1000 ms\n" {
		t.Errorf("stdout = %q", got)
	}
	if got := stderr.String(); got != "Render failed on stream 1: boom\n" {
		t.Errorf("stderr = %q", got)
	}
}

func TestConsoleLogger_QuietDropsEverything(t *testing.T) {
	var stdout, stderr bytes.Buffer
	log := NewWriter(ports.LevelQuiet, &stdout, &stderr, false)

	log.Error("Command failed: %v", "x")
	if stdout.Len()+stderr.Len() != 0 {
		t.Errorf("quiet logger wrote %q %q", stdout.String(), stderr.String())
	}
}

func TestConsoleLogger_ComponentPrefixAndColor(t *testing.T) {
	var stdout, stderr bytes.Buffer
	base := NewWriter(ports.LevelDebug, &stdout, &stderr, false)

	base.WithComponent("stream-2").Info("Stream ready")
	if got := stdout.String(); got != "[stream-2] Stream ready\n" {
		t.Errorf("stdout = %q", got)
	}

	stdout.Reset()
	colored := NewWriter(ports.LevelDebug, &stdout, &stderr, true)
	colored.WithComponent("timer").Debug("Clock seeked to %d ms", 40)
	got := stdout.String()
	if !strings.HasPrefix(got, colorGray) || !strings.Contains(got, colorCyan+"[timer]") {
		t.Errorf("colored output = %q", got)
	}
}

func TestConsoleLogger_ConcurrentComponentsShareWriter(t *testing.T) {
	var stdout, stderr bytes.Buffer
	base := NewWriter(ports.LevelInfo, &stdout, &stderr, false)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			log := base.WithComponent("decoder")
			for j := 0; j < 50; j++ {
				log.Info("Stream ready")
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(stdout.String(), "\n"), "\n")
	if len(lines) != 400 {
		t.Fatalf("got %d lines, want 400", len(lines))
	}
	for _, line := range lines {
		if line != "[decoder] Stream ready" {
			t.Fatalf("interleaved line %q", line)
		}
	}
}

func TestNoopLogger(t *testing.T) {
	log := NewNoop()
	if log.WithComponent("x") != ports.Logger(log) {
		t.Error("WithComponent should return the same logger")
	}
	log.Error("Command failed: %v", "ignored")
}
