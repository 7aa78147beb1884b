package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ccollicutt/tracekit/pkg/detector"
)

func TestDetectOptions_Defaults(t *testing.T) {
	cmd := NewDetectCommand()

	sample, err := cmd.Flags().GetInt("sample")
	if err != nil {
		t.Fatalf("GetInt(sample) error = %v", err)
	}
	if sample != detector.DefaultSampleSize {
		t.Errorf("sample = %d, want %d", sample, detector.DefaultSampleSize)
	}

	output, _ := cmd.Flags().GetString("output")
	if output != "text" {
		t.Errorf("output = %q, want text", output)
	}
}

func TestRunDetect_Text(t *testing.T) {
	tests := []struct {
		fixture string
		want    []string
	}{
		{"spi.csv", []string{"Detected: logic-csv", "Confidence: 100.0%", "tracekit threads", "messages.txt"}},
		{"crash_epc.log", []string{"Detected: crash-dump", "First match (line 1)", "tracekit regdump"}},
		{"crash_wdt.log", []string{"Detected: crash-dump", "WDT_RST:"}},
		{"hci.log", []string{"Detected: hci-trace", "(5/8 lines matched)", "tracekit btsnoop"}},
	}

	for _, tt := range tests {
		t.Run(tt.fixture, func(t *testing.T) {
			path := fixture(t, tt.fixture)
			out, err := execute(t, NewDetectCommand(), path)
			if err != nil {
				t.Fatalf("detect error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("Output missing %q\n%s", want, out)
				}
			}
		})
	}
}

func TestRunDetect_NoMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("shopping list\nmilk\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, NewDetectCommand(), path)
	if err != nil {
		t.Fatalf("detect error = %v", err)
	}
	if !strings.Contains(out, "No known capture kind detected.") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunDetect_SkipChars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefixed.log")
	trace := "I/HCI: [00:00:01.000] CMD => 03 0c 00\nI/HCI: [00:00:01.100] EVT <= 0e 04 01 03 0c 00\n"
	if err := os.WriteFile(path, []byte(trace), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, NewDetectCommand(), path)
	if err != nil {
		t.Fatalf("detect error = %v", err)
	}
	if strings.Contains(out, "Detected: hci-trace") {
		t.Error("prefixed trace should not match without --skip-chars")
	}

	out, err = execute(t, NewDetectCommand(), "--skip-chars", "7", path)
	if err != nil {
		t.Fatalf("detect error = %v", err)
	}
	if !strings.Contains(out, "Detected: hci-trace") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunDetect_JSON(t *testing.T) {
	path := fixture(t, "crash_epc.log")

	out, err := execute(t, NewDetectCommand(), "-o", "json", path)
	if err != nil {
		t.Fatalf("detect error = %v", err)
	}

	var parsed JSONOutput
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if len(parsed.Matches) != 1 {
		t.Fatalf("len(Matches) = %d, want 1", len(parsed.Matches))
	}
	m := parsed.Matches[0]
	if m.Kind != detector.KindCrashDump || m.Decoder != "regdump" || m.Confidence != 1.0 {
		t.Errorf("match = %+v", m)
	}
	if parsed.Suggestion != "tracekit regdump "+path {
		t.Errorf("Suggestion = %q", parsed.Suggestion)
	}
	if parsed.Encoding != "utf-8" {
		t.Errorf("Encoding = %q, want utf-8", parsed.Encoding)
	}
}

func TestRunDetect_Errors(t *testing.T) {
	if _, err := execute(t, NewDetectCommand(), "/nonexistent/capture.log"); err == nil {
		t.Error("Expected error for missing file")
	}
	if _, err := execute(t, NewDetectCommand(), "-o", "yaml", fixture(t, "hci.log")); err == nil {
		t.Error("Expected error for unknown output format")
	}
}
