package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cheribuild/cheribuild/pkg/logger"
	"github.com/cheribuild/cheribuild/pkg/state"
	"github.com/cheribuild/cheribuild/pkg/types"
)

// execRoot runs one full invocation against a fresh catalog and returns
// the command's captured output stream. HOME points at a scratch
// directory so a developer's real config file never leaks in.
func execRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	prev := cfgFile
	cfgFile = ""
	defer func() { cfgFile = prev }()

	cmd, err := newRootCmd()
	if err != nil {
		t.Fatalf("building root command: %v", err)
	}

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return buf.String(), err
}

func TestListTargets(t *testing.T) {
	out, err := execRoot(t, "--list-targets")
	if err != nil {
		t.Fatalf("list-targets failed: %v", err)
	}
	if !strings.HasPrefix(out, "There are ") {
		t.Errorf("unexpected listing header:\n%s", out)
	}
	for _, want := range []string{"llvm", "qemu", "gdb-native", "cheribsd-riscv64-purecap", "cheribsd-morello-purecap"} {
		if !strings.Contains(out, "  "+want+"\n") {
			t.Errorf("target %s missing from listing:\n%s", want, out)
		}
	}
}

func TestVersionFlag(t *testing.T) {
	prevVersion := version
	version = "1.2.3"
	defer func() { version = prevVersion }()

	out, err := execRoot(t, "--version")
	if err != nil {
		t.Fatalf("--version failed: %v", err)
	}
	if !strings.Contains(out, "1.2.3") {
		t.Errorf("version output %q does not contain the version", out)
	}
}

func TestGetConfigOption(t *testing.T) {
	tests := []struct {
		name string
		args []string
		key  string
		want string
	}{
		{
			name: "static default",
			key:  "default-architecture",
			want: "riscv64-purecap",
		},
		{
			name: "bare global flag",
			args: []string{"--make-jobs=5"},
			key:  "make-jobs",
			want: "5",
		},
		{
			name: "bare global flag applies to targets",
			args: []string{"--make-jobs=5"},
			key:  "cheribsd-riscv64-purecap/make-jobs",
			want: "5",
		},
		{
			name: "instance prefix beats bare flag",
			args: []string{"--make-jobs=5", "--cheribsd-riscv64-purecap/make-jobs=3"},
			key:  "cheribsd-riscv64-purecap/make-jobs",
			want: "3",
		},
		{
			name: "template prefix applies to instances",
			args: []string{"--cheribsd/make-jobs=4"},
			key:  "cheribsd-riscv64-purecap/make-jobs",
			want: "4",
		},
		{
			name: "instance prefix beats template prefix",
			args: []string{"--cheribsd/make-jobs=4", "--cheribsd-riscv64-purecap/make-jobs=3"},
			key:  "cheribsd-riscv64-purecap/make-jobs",
			want: "3",
		},
		{
			name: "project option via owner prefix",
			args: []string{"--cheribsd/kernel-config=CUSTOM-KERNEL"},
			key:  "cheribsd-riscv64-purecap/kernel-config",
			want: "CUSTOM-KERNEL",
		},
		{
			name: "list value printed as JSON",
			args: []string{"--llvm/cmake-options=-DX=1,-DY=2"},
			key:  "llvm/cmake-options",
			want: `["-DX=1","-DY=2"]`,
		},
		{
			name: "unset list prints empty JSON array",
			key:  "llvm/cmake-options",
			want: "[]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(append([]string{}, tt.args...), "--get-config-option="+tt.key)
			out, err := execRoot(t, args...)
			if err != nil {
				t.Fatalf("get-config-option failed: %v", err)
			}
			if got := strings.TrimSpace(out); got != tt.want {
				t.Errorf("resolved %s = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestPrefixedValueDoesNotLeakToSiblings(t *testing.T) {
	out, err := execRoot(t,
		"--cheribsd-riscv64-purecap/make-jobs=3",
		"--get-config-option=cheribsd-morello-purecap/make-jobs")
	if err != nil {
		t.Fatalf("get-config-option failed: %v", err)
	}
	want := strconv.Itoa(runtime.NumCPU())
	if got := strings.TrimSpace(out); got != want {
		t.Errorf("sibling target resolved make-jobs = %s, want the default %s", got, want)
	}
}

func TestGetConfigOptionUnknown(t *testing.T) {
	_, err := execRoot(t, "--get-config-option=frobnicate")
	if err == nil {
		t.Fatal("expected an error for an unknown option")
	}
	if !strings.Contains(err.Error(), "unknown option") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGetConfigOptionRequiresPrefix(t *testing.T) {
	_, err := execRoot(t, "--get-config-option=kernel-config")
	if err == nil {
		t.Fatal("expected an error for a bare per-target option")
	}
	if !strings.Contains(err.Error(), "/kernel-config") {
		t.Errorf("error should suggest a prefixed form: %v", err)
	}
}

func TestEnvironmentVariableProvidesValue(t *testing.T) {
	t.Setenv("CHERIBUILD_SOURCE_ROOT", "/cheri/from-env")

	out, err := execRoot(t, "--get-config-option=source-root")
	if err != nil {
		t.Fatalf("get-config-option failed: %v", err)
	}
	if got := strings.TrimSpace(out); got != "/cheri/from-env" {
		t.Errorf("source-root = %q, want the environment value", got)
	}
}

func TestCommandLineBeatsEnvironment(t *testing.T) {
	t.Setenv("CHERIBUILD_SOURCE_ROOT", "/cheri/from-env")

	out, err := execRoot(t, "--source-root=/cheri/from-flag", "--get-config-option=source-root")
	if err != nil {
		t.Fatalf("get-config-option failed: %v", err)
	}
	if got := strings.TrimSpace(out); got != "/cheri/from-flag" {
		t.Errorf("source-root = %q, want the flag value", got)
	}
}

func TestEnvironmentIgnoredWithoutOptIn(t *testing.T) {
	// make-jobs declares no environment variable, so even a
	// CHERIBUILD-prefixed name must not reach it.
	t.Setenv("CHERIBUILD_MAKE_JOBS", "97")

	out, err := execRoot(t, "--get-config-option=make-jobs")
	if err != nil {
		t.Fatalf("get-config-option failed: %v", err)
	}
	if got := strings.TrimSpace(out); got == "97" {
		t.Error("make-jobs picked up an environment variable it never declared")
	}
}

func TestConfigFileProvidesValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cheribuild.json")
	doc := `{"make-jobs": 7, "cheribsd": {"kernel-config": "FILE-KERNEL"}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execRoot(t, "--config="+path, "--get-config-option=make-jobs")
	if err != nil {
		t.Fatalf("get-config-option failed: %v", err)
	}
	if got := strings.TrimSpace(out); got != "7" {
		t.Errorf("make-jobs = %q, want the config file value", got)
	}

	out, err = execRoot(t, "--config="+path, "--get-config-option=cheribsd-riscv64-purecap/kernel-config")
	if err != nil {
		t.Fatalf("get-config-option failed: %v", err)
	}
	if got := strings.TrimSpace(out); got != "FILE-KERNEL" {
		t.Errorf("kernel-config = %q, want the config file section value", got)
	}
}

func TestCommandLineBeatsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cheribuild.json")
	if err := os.WriteFile(path, []byte(`{"make-jobs": 7}`), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execRoot(t, "--config="+path, "--make-jobs=2", "--get-config-option=make-jobs")
	if err != nil {
		t.Fatalf("get-config-option failed: %v", err)
	}
	if got := strings.TrimSpace(out); got != "2" {
		t.Errorf("make-jobs = %q, want the flag value", got)
	}
}

func TestDumpConfiguration(t *testing.T) {
	t.Setenv("CHERIBUILD_SOURCE_ROOT", "/cheri/dump-test")

	out, err := execRoot(t, "--cheribsd-riscv64-purecap/kernel-config=DUMP-KERNEL", "--dump-configuration")
	if err != nil {
		t.Fatalf("dump-configuration failed: %v", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("dump output is not valid JSON: %v\n%s", err, out)
	}
	if doc["source-root"] != "/cheri/dump-test" {
		t.Errorf("source-root = %v, want the environment value", doc["source-root"])
	}
	if doc["output-root"] != "/cheri/dump-test/output" {
		t.Errorf("output-root = %v, want the derived default", doc["output-root"])
	}

	section, ok := doc["cheribsd-riscv64-purecap"].(map[string]interface{})
	if !ok {
		t.Fatalf("dump has no cheribsd-riscv64-purecap section:\n%s", out)
	}
	if section["kernel-config"] != "DUMP-KERNEL" {
		t.Errorf("kernel-config = %v, want the flag override", section["kernel-config"])
	}
}

func TestPrintPlanOrdersDependenciesFirst(t *testing.T) {
	out, err := execRoot(t, "-p", "-q", "-d", "--print-plan", "cheribsd-riscv64-purecap")
	if err != nil {
		t.Fatalf("print-plan failed: %v", err)
	}
	if !strings.Contains(out, "Will execute the following 3 targets:") {
		t.Fatalf("unexpected plan output:\n%s", out)
	}

	last := -1
	for _, name := range []string{"llvm", "bbl-riscv64-purecap", "cheribsd-riscv64-purecap"} {
		idx := strings.Index(out, name)
		if idx < 0 {
			t.Fatalf("plan is missing %s:\n%s", name, out)
		}
		if idx < last {
			t.Errorf("%s is planned before its dependencies:\n%s", name, out)
		}
		last = idx
	}
}

func TestPrintPlanWithoutDependencies(t *testing.T) {
	out, err := execRoot(t, "-p", "-q", "--print-plan", "cheribsd-riscv64-purecap")
	if err != nil {
		t.Fatalf("print-plan failed: %v", err)
	}
	if !strings.Contains(out, "Will execute the following 1 targets:") {
		t.Fatalf("unexpected plan output:\n%s", out)
	}
	if strings.Contains(out, "llvm") {
		t.Errorf("plan pulled in dependencies without --include-dependencies:\n%s", out)
	}
}

func TestAliasPicksDefaultArchitecture(t *testing.T) {
	out, err := execRoot(t, "-p", "-q", "--print-plan", "sdk")
	if err != nil {
		t.Fatalf("print-plan failed: %v", err)
	}
	if !strings.Contains(out, "cheribsd-sdk-riscv64-purecap") {
		t.Errorf("sdk alias did not expand to the default architecture:\n%s", out)
	}

	out, err = execRoot(t, "-p", "-q", "--default-architecture=morello-purecap", "--print-plan", "sdk")
	if err != nil {
		t.Fatalf("print-plan failed: %v", err)
	}
	if !strings.Contains(out, "cheribsd-sdk-morello-purecap") {
		t.Errorf("sdk alias ignored --default-architecture:\n%s", out)
	}
}

func TestRunWithoutTargetsFails(t *testing.T) {
	_, err := execRoot(t)
	if err == nil {
		t.Fatal("expected an error when no targets are given")
	}
	if !strings.Contains(err.Error(), "at least one target name is required") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestUnknownTargetFails(t *testing.T) {
	_, err := execRoot(t, "-p", "-q", "cheribsd-rscv64-purecap")
	if err == nil {
		t.Fatal("expected an error for an unknown target")
	}
	if !strings.Contains(err.Error(), "unknown target") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPretendBuildLeavesNoTrace(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cheri")

	_, err := execRoot(t, "-p", "-q", "-d", "--source-root="+root, "cheribsd-riscv64-purecap")
	if err != nil {
		t.Fatalf("pretend build failed: %v", err)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Error("pretend run created the source root")
	}
}

func TestStatusBeforeAnyRuns(t *testing.T) {
	t.Setenv("CHERIBUILD_SOURCE_ROOT", t.TempDir())

	out, err := execRoot(t, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if strings.Contains(out, "TARGET") {
		t.Errorf("status printed a result table without any runs:\n%s", out)
	}
}

func TestStatusShowsLastRun(t *testing.T) {
	src := t.TempDir()
	t.Setenv("CHERIBUILD_SOURCE_ROOT", src)

	rec := state.NewRecorder(filepath.Join(src, "output"), logger.CreateLogger("", "error"))
	record := rec.Begin([]string{"llvm"}, []string{"llvm"})
	rec.Append(record, state.TargetResult{
		Target:   "llvm",
		State:    types.StateDone,
		Stage:    types.StageInstall,
		Duration: 1500 * time.Millisecond,
	})
	if err := rec.Finish(record, true); err != nil {
		t.Fatalf("writing run record: %v", err)
	}

	out, err := execRoot(t, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(out, "TARGET") {
		t.Errorf("status did not print the result table:\n%s", out)
	}
	if !strings.Contains(out, "llvm") {
		t.Errorf("status did not list the built target:\n%s", out)
	}
	if !strings.Contains(out, "1.5s") {
		t.Errorf("status did not show the recorded duration:\n%s", out)
	}
}
