// Package mocks provides mock implementations of the engine's
// collaborator interfaces for testing.
package mocks

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/cheribuild/cheribuild/pkg/interfaces"
	"github.com/cheribuild/cheribuild/pkg/runner"
	"github.com/cheribuild/cheribuild/pkg/state"
	"github.com/cheribuild/cheribuild/pkg/targets"
	"github.com/cheribuild/cheribuild/pkg/types"
	"github.com/cheribuild/cheribuild/pkg/utils"
)

// MockRunner records every mutation a lifecycle requests without
// performing any of it.
type MockRunner struct {
	mu         sync.Mutex
	commands   []runner.Command
	dirs       []string
	removals   []string
	tarballs   [][2]string
	extracted  [][2]string
	runErr     error
	failOnPath string
	pretending bool
}

// NewMockRunner creates a new mock runner.
func NewMockRunner() *MockRunner {
	return &MockRunner{}
}

// Run records the command and fails if a run error is configured.
func (m *MockRunner) Run(ctx context.Context, cmd runner.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, cmd)
	if m.runErr != nil && (m.failOnPath == "" || m.failOnPath == cmd.Path) {
		return m.runErr
	}
	return nil
}

// Output records the command and returns no output.
func (m *MockRunner) Output(ctx context.Context, cmd runner.Command) ([]byte, error) {
	return nil, m.Run(ctx, cmd)
}

// MkdirAll records the directory creation.
func (m *MockRunner) MkdirAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs = append(m.dirs, path)
	return nil
}

// RemoveAll records the deletion.
func (m *MockRunner) RemoveAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removals = append(m.removals, path)
	return nil
}

// WriteFile records the written path.
func (m *MockRunner) WriteFile(path string, data []byte, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs = append(m.dirs, path)
	return nil
}

// CreateTarball records the archive request.
func (m *MockRunner) CreateTarball(dir, archivePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tarballs = append(m.tarballs, [2]string{dir, archivePath})
	return nil
}

// ExtractTarball records the extraction request.
func (m *MockRunner) ExtractTarball(archivePath, dest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extracted = append(m.extracted, [2]string{archivePath, dest})
	return nil
}

// Pretending reports the configured pretend flag.
func (m *MockRunner) Pretending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pretending
}

// SetPretending configures the pretend flag.
func (m *MockRunner) SetPretending(pretending bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pretending = pretending
}

// SetRunError makes every subsequent Run fail with err.
func (m *MockRunner) SetRunError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runErr = err
}

// SetRunErrorFor makes Run fail only for commands with the given path.
func (m *MockRunner) SetRunErrorFor(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOnPath = path
	m.runErr = err
}

// GetCommands returns the recorded commands in invocation order.
func (m *MockRunner) GetCommands() []runner.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]runner.Command{}, m.commands...)
}

// GetDirs returns the recorded MkdirAll paths.
func (m *MockRunner) GetDirs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.dirs...)
}

// GetRemovals returns the recorded RemoveAll paths.
func (m *MockRunner) GetRemovals() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.removals...)
}

// GetTarballs returns the recorded (dir, archive) pairs.
func (m *MockRunner) GetTarballs() [][2]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][2]string{}, m.tarballs...)
}

// GetExtractions returns the recorded (archive, dest) pairs.
func (m *MockRunner) GetExtractions() [][2]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][2]string{}, m.extracted...)
}

// MockLifecycle records which stages ran and fails the configured ones.
type MockLifecycle struct {
	mu        sync.Mutex
	stages    []types.Stage
	stageErrs map[types.Stage]error
}

// NewMockLifecycle creates a new mock lifecycle.
func NewMockLifecycle() *MockLifecycle {
	return &MockLifecycle{stageErrs: make(map[types.Stage]error)}
}

func (m *MockLifecycle) runStage(stage types.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, stage)
	return m.stageErrs[stage]
}

// UpdateSource records the update-source stage.
func (m *MockLifecycle) UpdateSource(ctx context.Context) error {
	return m.runStage(types.StageUpdateSource)
}

// Clean records the clean stage.
func (m *MockLifecycle) Clean(ctx context.Context) error {
	return m.runStage(types.StageClean)
}

// Configure records the configure stage.
func (m *MockLifecycle) Configure(ctx context.Context) error {
	return m.runStage(types.StageConfigure)
}

// Build records the build stage.
func (m *MockLifecycle) Build(ctx context.Context) error {
	return m.runStage(types.StageBuild)
}

// Install records the install stage.
func (m *MockLifecycle) Install(ctx context.Context) error {
	return m.runStage(types.StageInstall)
}

// Test records the test stage.
func (m *MockLifecycle) Test(ctx context.Context) error {
	return m.runStage(types.StageTest)
}

// Benchmark records the benchmark stage.
func (m *MockLifecycle) Benchmark(ctx context.Context) error {
	return m.runStage(types.StageBenchmark)
}

// SetStageError makes the given stage fail with err.
func (m *MockLifecycle) SetStageError(stage types.Stage, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stageErrs[stage] = err
}

// GetStages returns the stages that ran, in order.
func (m *MockLifecycle) GetStages() []types.Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Stage{}, m.stages...)
}

// MockLifecycleFactory hands out mock lifecycles per target name.
type MockLifecycleFactory struct {
	mu         sync.Mutex
	lifecycles map[string]*MockLifecycle
	created    []string
	createErr  error
}

// NewMockLifecycleFactory creates a new mock lifecycle factory.
func NewMockLifecycleFactory() *MockLifecycleFactory {
	return &MockLifecycleFactory{lifecycles: make(map[string]*MockLifecycle)}
}

// CreateLifecycle returns the lifecycle registered for the instance,
// creating an empty one on first use.
func (f *MockLifecycleFactory) CreateLifecycle(inst *targets.Instance, deleter *utils.AsyncDeleter) (interfaces.Lifecycle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, inst.Name())
	if f.createErr != nil {
		return nil, f.createErr
	}
	lc, ok := f.lifecycles[inst.Name()]
	if !ok {
		lc = NewMockLifecycle()
		f.lifecycles[inst.Name()] = lc
	}
	return lc, nil
}

// Lifecycle returns the mock lifecycle for a target, creating it if
// needed so expectations can be configured up front.
func (f *MockLifecycleFactory) Lifecycle(target string) *MockLifecycle {
	f.mu.Lock()
	defer f.mu.Unlock()
	lc, ok := f.lifecycles[target]
	if !ok {
		lc = NewMockLifecycle()
		f.lifecycles[target] = lc
	}
	return lc
}

// SetCreateError makes CreateLifecycle fail.
func (f *MockLifecycleFactory) SetCreateError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = err
}

// GetCreated returns the target names lifecycles were created for.
func (f *MockLifecycleFactory) GetCreated() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.created...)
}

// MockRecorder captures run records in memory.
type MockRecorder struct {
	mu        sync.Mutex
	record    *state.Record
	finished  bool
	success   bool
	finishErr error
}

// NewMockRecorder creates a new mock recorder.
func NewMockRecorder() *MockRecorder {
	return &MockRecorder{}
}

// Begin opens an in-memory record.
func (m *MockRecorder) Begin(requested, planned []string) *state.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = &state.Record{
		ID:        "mock",
		StartedAt: time.Now(),
		Requested: append([]string{}, requested...),
		Plan:      append([]string{}, planned...),
	}
	return m.record
}

// Append adds a result to the record.
func (m *MockRecorder) Append(rec *state.Record, result state.TargetResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Results = append(rec.Results, result)
}

// Finish marks the record done.
func (m *MockRecorder) Finish(rec *state.Record, success bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = true
	m.success = success
	rec.Success = success
	rec.FinishedAt = time.Now()
	return m.finishErr
}

// SetFinishError makes Finish fail.
func (m *MockRecorder) SetFinishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finishErr = err
}

// GetRecord returns the captured record, nil before Begin.
func (m *MockRecorder) GetRecord() *state.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record
}

// WasFinished reports whether Finish ran and with which outcome.
func (m *MockRecorder) WasFinished() (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished, m.success
}

// MockNotifier captures build notifications.
type MockNotifier struct {
	mu        sync.Mutex
	successes int
	failures  []string
}

// NewMockNotifier creates a new mock notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// NotifySuccess counts successful run notifications.
func (m *MockNotifier) NotifySuccess(targetCount int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes++
}

// NotifyFailure records the failing target.
func (m *MockNotifier) NotifyFailure(target string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, target)
}

// GetSuccessCount returns how many success notifications were sent.
func (m *MockNotifier) GetSuccessCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.successes
}

// GetFailures returns the targets failure notifications named.
func (m *MockNotifier) GetFailures() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.failures...)
}

// MockProcessManager tracks lifecycle calls without spawning anything.
type MockProcessManager struct {
	mu       sync.Mutex
	handlers []func()
	running  bool
}

// NewMockProcessManager creates a new mock process manager.
func NewMockProcessManager() *MockProcessManager {
	return &MockProcessManager{}
}

// RegisterShutdownHandler stores the handler.
func (m *MockProcessManager) RegisterShutdownHandler(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

// Start marks the manager running.
func (m *MockProcessManager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
}

// Stop runs the registered handlers and marks the manager stopped.
func (m *MockProcessManager) Stop() {
	m.mu.Lock()
	handlers := append([]func(){}, m.handlers...)
	m.running = false
	m.mu.Unlock()
	for _, h := range handlers {
		h()
	}
}

// IsRunning reports whether Start ran without a Stop since.
func (m *MockProcessManager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
