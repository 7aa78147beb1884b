package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/tracekit/pkg/config"
	"github.com/ccollicutt/tracekit/pkg/logging"
	"github.com/ccollicutt/tracekit/pkg/output"
)

// execute runs cmd with args and returns its stdout. ExitCode is reset first.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	return executeCtx(t, context.Background(), cmd, args...)
}

// executeWith is execute with a runtime carrying cfg.
func executeWith(t *testing.T, cfg *config.Config, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	rt := &Runtime{Config: cfg, Logger: logging.Discard()}
	return executeCtx(t, WithRuntime(context.Background(), rt), cmd, args...)
}

func executeCtx(t *testing.T, ctx context.Context, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	ExitCode = 0
	t.Cleanup(func() { ExitCode = 0 })

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return buf.String(), err
}

// fixture copies a capture from testdata into a temp dir and returns its path.
func fixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "..", "testdata", "captures", name))
	if err != nil {
		t.Fatalf("Required test file not found: %v", err)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to copy fixture: %v", err)
	}
	return path
}

func TestCommandConstructors(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewThreadsCommand(), "threads <capture.csv> <messages.txt>", []string{"output", "verbose", "quiet", "type-threshold", "denylist", "rule", "webhook-url"}},
		{NewRegdumpCommand(), "regdump <log-file>...", []string{"output", "verbose", "quiet", "webhook-url", "webhook-token", "webhook-trigger"}},
		{NewBTSnoopCommand(), "btsnoop <trace-file>...", []string{"output", "skip-chars", "bluetrum-ts", "strict"}},
		{NewInspectCommand(), "inspect <capture.cfa>", []string{"output", "limit"}},
		{NewDetectCommand(), "detect <capture-file>", []string{"output", "sample", "all", "skip-chars", "bluetrum-ts"}},
		{NewCaptureCommand(), "capture [--port P] [--baud B] [--duration D] <output-file>", []string{"port", "baud", "duration", "list"}},
		{NewValidateCommand(), "validate <config-file>", nil},
		{NewDiagnoseCommand(), "diagnose <config-file>", []string{"verbose"}},
		{NewVersionCommand(), "version", []string{"verbose"}},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.Name(), func(t *testing.T) {
			if tt.cmd.Use != tt.use {
				t.Errorf("Unexpected Use: %s", tt.cmd.Use)
			}
			for _, flag := range tt.flags {
				if tt.cmd.Flags().Lookup(flag) == nil {
					t.Errorf("Missing flag: %s", flag)
				}
			}
		})
	}
}

func TestRunVersion(t *testing.T) {
	out, err := execute(t, NewVersionCommand())
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if out != "tracekit dev\n" {
		t.Errorf("version output = %q", out)
	}
}

func TestRunVersion_Verbose(t *testing.T) {
	out, err := execute(t, NewVersionCommand(), "-v")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "tracekit dev\n") {
		t.Errorf("version output = %q", out)
	}
	if !strings.Contains(out, "go:       "+runtime.Version()) {
		t.Errorf("version output missing toolchain: %q", out)
	}
}

func TestRunValidate_Success(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	cfg := `logging:
  level: debug
threads:
  type_threshold: 30
hci:
  skip_chars: 7
  unmapped_policy: abort
serial:
  port: /dev/ttyUSB0
webhooks:
  - name: lab
    url: https://hooks.example.com/tracekit
    trigger: always
`
	if err := os.WriteFile(configPath, []byte(cfg), 0644); err != nil {
		t.Fatalf("Failed to create config: %v", err)
	}

	out, err := execute(t, NewValidateCommand(), configPath)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	for _, want := range []string{
		"Configuration valid!",
		"type threshold 30",
		"skip 7 chars",
		"unmapped packets abort",
		"/dev/ttyUSB0 at 115200 baud",
		"1. lab (trigger always)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q\n%s", want, out)
		}
	}
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: yaml: content"), 0644); err != nil {
		t.Fatalf("Failed to create config: %v", err)
	}

	if _, err := execute(t, NewValidateCommand(), configPath); err == nil {
		t.Error("Expected error for invalid config")
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	if _, err := execute(t, NewValidateCommand(), "/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestRunThreads(t *testing.T) {
	csvPath := fixture(t, "spi.csv")
	outPath := filepath.Join(filepath.Dir(csvPath), "messages.txt")

	out, err := execute(t, NewThreadsCommand(), csvPath, outPath)
	if err != nil {
		t.Fatalf("threads error = %v", err)
	}
	if ExitCode != ExitOK {
		t.Errorf("ExitCode = %d, want %d", ExitCode, ExitOK)
	}
	if !strings.Contains(out, "Types (2): HUM, TEMP") {
		t.Errorf("Output missing type list:\n%s", out)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading messages: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d messages, want 3:\n%s", len(lines), data)
	}
	if lines[0] != "[0.000000]TEMP:25" {
		t.Errorf("first message = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "]HUM:40 rh") {
		t.Errorf("second message = %q", lines[1])
	}
}

func TestRunThreads_NoMessages(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(csvPath, []byte("Time [s],MOSI\n0.1,NUL\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, NewThreadsCommand(), "-o", "json", csvPath, filepath.Join(dir, "out.txt"))
	if err != nil {
		t.Fatalf("threads error = %v", err)
	}
	if ExitCode != ExitFindings {
		t.Errorf("ExitCode = %d, want %d", ExitCode, ExitFindings)
	}

	var report output.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if len(report.Results) != 1 || report.Results[0].Issues[0].Kind != output.IssueNoMessages {
		t.Errorf("unexpected results: %+v", report.Results)
	}
}

func TestRunThreads_BadCSV(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "bad.csv")
	if err := os.WriteFile(csvPath, []byte("Time,Data\n"), 0644); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(dir, "out.txt")

	out, err := execute(t, NewThreadsCommand(), csvPath, outPath)
	if err != nil {
		t.Fatalf("threads error = %v", err)
	}
	if ExitCode != ExitError {
		t.Errorf("ExitCode = %d, want %d", ExitCode, ExitError)
	}
	if !strings.Contains(out, "Error:") {
		t.Errorf("Output missing error:\n%s", out)
	}
	if _, err := os.Stat(outPath); !os.IsNotExist(err) {
		t.Error("output file should not be created for an invalid capture")
	}
}

func TestRunThreads_ThresholdFlag(t *testing.T) {
	csvPath := fixture(t, "spi.csv")
	outPath := filepath.Join(filepath.Dir(csvPath), "messages.txt")

	out, err := execute(t, NewThreadsCommand(), "-v", "--type-threshold", "1", "--denylist", "U", csvPath, outPath)
	if err != nil {
		t.Fatalf("threads error = %v", err)
	}
	// HUM contains the denylisted U and two types exceed the threshold.
	if !strings.Contains(out, "Types (1): TEMP") {
		t.Errorf("Output missing filtered type list:\n%s", out)
	}
}

func TestRunThreads_ThresholdFlagInvalid(t *testing.T) {
	csvPath := fixture(t, "spi.csv")
	outPath := filepath.Join(filepath.Dir(csvPath), "messages.txt")

	for _, value := range []string{"0", "-3"} {
		t.Run(value, func(t *testing.T) {
			_, err := execute(t, NewThreadsCommand(), "--type-threshold", value, csvPath, outPath)
			if err == nil || !strings.Contains(err.Error(), "--type-threshold must be >= 1") {
				t.Errorf("threads error = %v, want threshold error", err)
			}
			if _, err := os.Stat(outPath); !os.IsNotExist(err) {
				t.Error("no output should be written for an invalid threshold")
			}
		})
	}
}

func rulesConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Threads.Rules = []config.RuleConfig{
		{Name: "temp-reports", Type: config.RuleTypePeriodic, MessageType: "TEMP", MinOccurrences: 3},
		{Name: "hum-then-temp", Type: config.RuleTypeConditional, Trigger: "HUM", Expected: "TEMP", Timeout: time.Second},
	}
	return cfg
}

func TestRunThreads_Rules(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		want     string
		wantExit int
	}{
		{"all rules", nil, "Rules: 2 checked, 1 with issues", ExitFindings},
		{"filtered", []string{"--rule", "hum-then-temp"}, "Rules: 1 checked, 0 with issues", ExitOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			csvPath := fixture(t, "spi.csv")
			outPath := filepath.Join(filepath.Dir(csvPath), "messages.txt")

			args := append(append([]string{}, tt.args...), csvPath, outPath)
			out, err := executeWith(t, rulesConfig(), NewThreadsCommand(), args...)
			if err != nil {
				t.Fatalf("threads error = %v", err)
			}
			if ExitCode != tt.wantExit {
				t.Errorf("ExitCode = %d, want %d", ExitCode, tt.wantExit)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("Output missing %q:\n%s", tt.want, out)
			}
		})
	}
}

func TestRunThreads_RulesJSON(t *testing.T) {
	csvPath := fixture(t, "spi.csv")
	outPath := filepath.Join(filepath.Dir(csvPath), "messages.txt")

	out, err := executeWith(t, rulesConfig(), NewThreadsCommand(), "-o", "json", csvPath, outPath)
	if err != nil {
		t.Fatalf("threads error = %v", err)
	}

	var report output.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	result := report.Results[0]
	if len(result.Issues) != 1 || result.Issues[0].Kind != output.IssueTooFewMessages {
		t.Errorf("Issues = %+v, want one too-few-messages", result.Issues)
	}
	if len(result.Threads.Rules) != 2 || result.Threads.Rules[0].Stats.MessagesMatched != 2 {
		t.Errorf("Rules = %+v, want 2 with 2 TEMP matches first", result.Threads.Rules)
	}
}

func TestRunThreads_RuleErrors(t *testing.T) {
	csvPath := fixture(t, "spi.csv")
	outPath := filepath.Join(filepath.Dir(csvPath), "messages.txt")

	if _, err := executeWith(t, rulesConfig(), NewThreadsCommand(), "--rule", "nope", csvPath, outPath); err == nil {
		t.Error("Expected error for unknown rule")
	}
	if _, err := execute(t, NewThreadsCommand(), "--rule", "temp-reports", csvPath, outPath); err == nil {
		t.Error("Expected error for --rule without configured rules")
	}
	if _, err := os.Stat(outPath); !os.IsNotExist(err) {
		t.Error("no output should be written when the rules are unusable")
	}
}

func TestRunRegdump(t *testing.T) {
	epc := fixture(t, "crash_epc.log")
	wdt := fixture(t, "crash_wdt.log")

	out, err := execute(t, NewRegdumpCommand(), epc, wdt)
	if err != nil {
		t.Fatalf("regdump error = %v", err)
	}
	if ExitCode != ExitOK {
		t.Errorf("ExitCode = %d, want %d\n%s", ExitCode, ExitOK, out)
	}
	for _, want := range []string{
		"Header: ERR: 0x00000007 EPC: 0x1c001234",
		"Format: EPC, 32/32 slots filled",
		"r31=0x0001F01F",
		"Format: WDT, 32/32 slots filled",
		"r00=0xXXXXXXXX",
		"r01=0xDEAD0000",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q\n%s", want, out)
		}
	}
}

func TestRunRegdump_WDTEightPerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wdt8.log")
	log := "WDT_RST: cause=0x1\n" +
		"dead0000 dead0001 dead0002 dead0003 dead0004 dead0005 dead0006 dead0007\n" +
		"dead0008 dead0009 dead000a dead000b dead000c dead000d dead000e dead000f\n" +
		"system reboot\n"
	if err := os.WriteFile(path, []byte(log), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, NewRegdumpCommand(), path)
	if err != nil {
		t.Fatalf("regdump error = %v", err)
	}
	if ExitCode != ExitOK {
		t.Errorf("ExitCode = %d, want %d\n%s", ExitCode, ExitOK, out)
	}
	for _, want := range []string{"Format: WDT, 29/32 slots filled", "r28=0xDEAD000F"} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q\n%s", want, out)
		}
	}
}

func TestRunRegdump_Glob(t *testing.T) {
	dir := filepath.Dir(fixture(t, "crash_epc.log"))
	if err := os.WriteFile(filepath.Join(dir, "plain.log"), []byte("nothing here\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, NewRegdumpCommand(), "-q", filepath.Join(dir, "*.log"))
	if err != nil {
		t.Fatalf("regdump error = %v", err)
	}
	if ExitCode != ExitFindings {
		t.Errorf("ExitCode = %d, want %d", ExitCode, ExitFindings)
	}
	if out != "tracekit: 2 inputs, 1 with issues, 0 failed\n" {
		t.Errorf("quiet output = %q", out)
	}
}

func TestRunRegdump_MissingFile(t *testing.T) {
	out, err := execute(t, NewRegdumpCommand(), "/nonexistent/crash.log")
	if err != nil {
		t.Fatalf("regdump error = %v", err)
	}
	if ExitCode != ExitError {
		t.Errorf("ExitCode = %d, want %d", ExitCode, ExitError)
	}
	if !strings.Contains(out, "Error:") {
		t.Errorf("Output missing error:\n%s", out)
	}
}

func TestRunRegdump_InvalidFormat(t *testing.T) {
	_, err := execute(t, NewRegdumpCommand(), "-o", "xml", fixture(t, "crash_wdt.log"))
	if err == nil {
		t.Error("Expected error for unknown output format")
	}
}

func TestRunBTSnoop(t *testing.T) {
	trace := fixture(t, "hci.log")

	out, err := execute(t, NewBTSnoopCommand(), "-v", trace)
	if err != nil {
		t.Fatalf("btsnoop error = %v", err)
	}
	if ExitCode != ExitFindings {
		t.Errorf("ExitCode = %d, want %d (lines were skipped)", ExitCode, ExitFindings)
	}
	for _, want := range []string{
		"Records: 4 written to",
		"Lines: 8, skipped: 4",
		"too few fields: 2",
		"skipped-lines",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q\n%s", want, out)
		}
	}

	info, err := os.Stat(strings.TrimSuffix(trace, ".log") + ".cfa")
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if info.Size() <= 16 {
		t.Errorf("output size = %d, want records after the header", info.Size())
	}
}

func TestRunBTSnoop_Strict(t *testing.T) {
	trace := fixture(t, "hci.log")

	out, err := execute(t, NewBTSnoopCommand(), "--strict", trace)
	if err != nil {
		t.Fatalf("btsnoop error = %v", err)
	}
	if ExitCode != ExitError {
		t.Errorf("ExitCode = %d, want %d", ExitCode, ExitError)
	}
	if !strings.Contains(out, "line 7") {
		t.Errorf("Output should name the unmapped line:\n%s", out)
	}
}

func TestRunBTSnoop_GlobSkipsOutputs(t *testing.T) {
	trace := fixture(t, "hci.log")
	dir := filepath.Dir(trace)

	if _, err := execute(t, NewBTSnoopCommand(), trace); err != nil {
		t.Fatalf("first run error = %v", err)
	}

	out, err := execute(t, NewBTSnoopCommand(), "-o", "json", filepath.Join(dir, "*"))
	if err != nil {
		t.Fatalf("glob run error = %v", err)
	}

	var report output.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if report.Summary.Inputs != 1 {
		t.Errorf("Inputs = %d, want 1 (.cfa output ignored)", report.Summary.Inputs)
	}
}

func TestRunBTSnoop_NegativeSkip(t *testing.T) {
	if _, err := execute(t, NewBTSnoopCommand(), "--skip-chars", "-1", fixture(t, "hci.log")); err == nil {
		t.Error("Expected error for negative --skip-chars")
	}
}

func TestRunInspect(t *testing.T) {
	trace := fixture(t, "hci.log")
	if _, err := execute(t, NewBTSnoopCommand(), trace); err != nil {
		t.Fatalf("btsnoop error = %v", err)
	}
	cfa := strings.TrimSuffix(trace, ".log") + ".cfa"

	out, err := execute(t, NewInspectCommand(), "--limit", "2", cfa)
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	for _, want := range []string{
		"BTSnoop version 1, datalink 1002",
		"Records: 4",
		"CMD =>",
		"01030c00",
		"... 2 more",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q\n%s", want, out)
		}
	}

	out, err = execute(t, NewInspectCommand(), "-o", "json", "--limit", "0", cfa)
	if err != nil {
		t.Fatalf("inspect json error = %v", err)
	}
	var parsed InspectOutput
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if parsed.Records != 4 || len(parsed.Listed) != 4 {
		t.Errorf("Records = %d, listed = %d, want 4/4", parsed.Records, len(parsed.Listed))
	}
	if parsed.Listed[1].Type != "EVT" || parsed.Listed[1].Direction != "<=" {
		t.Errorf("second record = %+v, want EVT <=", parsed.Listed[1])
	}
}

func TestRunInspect_Truncated(t *testing.T) {
	trace := fixture(t, "hci.log")
	if _, err := execute(t, NewBTSnoopCommand(), trace); err != nil {
		t.Fatalf("btsnoop error = %v", err)
	}
	cfa := strings.TrimSuffix(trace, ".log") + ".cfa"
	data, err := os.ReadFile(cfa)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfa, data[:len(data)-3], 0644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, NewInspectCommand(), cfa)
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	if ExitCode != ExitFindings {
		t.Errorf("ExitCode = %d, want %d", ExitCode, ExitFindings)
	}
	if !strings.Contains(out, "Records: 3") || !strings.Contains(out, "truncated") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunInspect_NotBTSnoop(t *testing.T) {
	if _, err := execute(t, NewInspectCommand(), fixture(t, "hci.log")); err == nil {
		t.Error("Expected error for a text file")
	}
}

func TestCollectWebhooks(t *testing.T) {
	cfg := &config.Config{
		Webhooks: []config.WebhookConfig{{Name: "file", URL: "https://a.example.com"}},
	}

	got := collectWebhooks(cfg, &ReportOptions{})
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}

	got = collectWebhooks(cfg, &ReportOptions{WebhookURL: "https://b.example.com", WebhookToken: "t"})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	cli := got[1]
	if cli.Name != "cli" || cli.Trigger != config.WebhookTriggerOnIssues || cli.Token != "t" {
		t.Errorf("cli webhook = %+v", cli)
	}
	if cli.Timeout != config.DefaultWebhookTimeout {
		t.Errorf("cli timeout = %s", cli.Timeout)
	}
}

func TestRunRegdump_Webhook(t *testing.T) {
	var hits atomic.Int32
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	partial := filepath.Join(t.TempDir(), "partial.log")
	if err := os.WriteFile(partial, []byte("ERR: 1 EPC: 2\n00000001 00000002\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, NewRegdumpCommand(), "--webhook-url", server.URL, "-q", partial); err != nil {
		t.Fatalf("regdump error = %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("webhook hits = %d, want 1", hits.Load())
	}

	var report output.Report
	if err := json.Unmarshal(body, &report); err != nil {
		t.Fatalf("payload is not a report: %v", err)
	}
	if report.Results[0].Issues[0].Kind != output.IssuePartialDump {
		t.Errorf("payload issues = %+v", report.Results[0].Issues)
	}

	// A clean dump does not fire an on_issues hook.
	if _, err := execute(t, NewRegdumpCommand(), "--webhook-url", server.URL, "-q", fixture(t, "crash_epc.log")); err != nil {
		t.Fatalf("regdump error = %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("webhook hits = %d, want still 1", hits.Load())
	}
}

func TestRuntimeFor_Defaults(t *testing.T) {
	cmd := &cobra.Command{}
	rt := runtimeFor(cmd)
	if rt.Config == nil || rt.Logger == nil {
		t.Fatal("runtimeFor() returned incomplete runtime")
	}
	if rt.Config.Threads.TypeThreshold != config.DefaultTypeThreshold {
		t.Errorf("TypeThreshold = %d", rt.Config.Threads.TypeThreshold)
	}

	want := &Runtime{Config: config.DefaultConfig()}
	cmd.SetContext(WithRuntime(context.Background(), want))
	if got := runtimeFor(cmd); got != want {
		t.Error("runtimeFor() ignored the runtime in the context")
	}
}

func TestNewRuntime(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("logging:\n  level: warn\n"), 0644); err != nil {
		t.Fatal(err)
	}

	rt, err := NewRuntime(context.Background(), configPath, "", "json")
	if err != nil {
		t.Fatalf("NewRuntime() error = %v", err)
	}
	if rt.Logger.GetLevel().String() != "warning" {
		t.Errorf("level = %s, want warning", rt.Logger.GetLevel())
	}
	if rt.Config.Logging.Format != "json" {
		t.Errorf("format = %s, want json", rt.Config.Logging.Format)
	}

	rt, err = NewRuntime(context.Background(), configPath, "debug", "")
	if err != nil {
		t.Fatalf("NewRuntime() error = %v", err)
	}
	if rt.Logger.GetLevel().String() != "debug" {
		t.Errorf("flag level not applied: %s", rt.Logger.GetLevel())
	}

	if _, err := NewRuntime(context.Background(), configPath, "loud", ""); err == nil {
		t.Error("Expected error for invalid level")
	}
	if _, err := NewRuntime(context.Background(), "/nonexistent.yaml", "", ""); err == nil {
		t.Error("Expected error for missing config")
	}
}
