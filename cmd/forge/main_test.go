package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	forge "github.com/zero-day-ai/exercise-forge"
	"github.com/zero-day-ai/exercise-forge/audit"
	"github.com/zero-day-ai/exercise-forge/failure"
	"github.com/zero-day-ai/exercise-forge/gate"
	"github.com/zero-day-ai/exercise-forge/loop"
	"github.com/zero-day-ai/exercise-forge/packet"
	"github.com/zero-day-ai/exercise-forge/stage"
)

const (
	scaffoldJSON = `{"exerciseTitle":"Ring buffer","summary":"Implement a fixed-size ring buffer.","language":"go",` +
		`"difficulty":"foundation","starterFiles":[{"path":"ring.go","purpose":"buffer type"}],` +
		`"testPlan":[{"name":"TestWrap","description":"wraps at capacity"}],"lessonOutline":["indices"],"estimatedMinutes":30}`
	starterJSON = `{"filePath":"ring.go","language":"go","content":"package ring","isComplete":true,"nextFocus":null}`
	testJSON    = `{"filePath":"ring_test.go","content":"package ring_test","testNames":null,"coversFiles":["ring.go"],"isComplete":true,"nextFocus":null}`
	lessonJSON  = `{"sectionTitle":"Indices","content":"Use modulo.","keyTerms":["modulo"],"isComplete":true,"nextFocus":null}`
	hintsJSON   = `{"contract":"hint_pack_v1","hints":[{"level":1,"text":"Check the wrap index.","targetsMisconception":null}],"allowedReveal":false,"fullSolutionProvided":false,"solution":null,"encouragement":null}`
	revealJSON  = `{"contract":null,"hints":[{"level":3,"text":"Here it is.","targetsMisconception":null}],"allowedReveal":false,"fullSolutionProvided":true,"solution":"x","encouragement":null}`
)

// env is a scratch workspace with a fake codex binary and a forge.yaml.
type env struct {
	dir        string
	configPath string
	stateRoot  string
}

// newEnv writes a codex stand-in that prints replies[stage] for the stage
// named in its prompt.
func newEnv(t *testing.T, replies map[stage.Name]string) *env {
	t.Helper()
	dir := t.TempDir()

	var script strings.Builder
	script.WriteString("#!/bin/sh\nprompt=$(cat)\ncase \"$prompt\" in\n")
	for name, out := range replies {
		fmt.Fprintf(&script, "*'running the \"%s\" stage'*) echo '%s' ;;\n", name, out)
	}
	script.WriteString("*) echo 'unscripted stage' >&2; exit 1 ;;\nesac\n")

	exe := filepath.Join(dir, "codex")
	require.NoError(t, os.WriteFile(exe, []byte(script.String()), 0o755))

	stateRoot := filepath.Join(dir, "state")
	cfg := fmt.Sprintf("state_root: %s\ngenerator:\n  executable: %s\n  timeout: 30s\nretry:\n  max_attempts: 2\n  base_delay: 1ms\n", stateRoot, exe)
	configPath := filepath.Join(dir, "forge.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o644))

	return &env{dir: dir, configPath: configPath, stateRoot: stateRoot}
}

func (e *env) writePacket(t *testing.T, in packet.Input) string {
	t.Helper()
	data, err := packet.Build(in).JSON()
	require.NoError(t, err)
	path := filepath.Join(e.dir, "packet.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func baseInput() packet.Input {
	return packet.Input{
		TaskType:          "generate",
		LearnerProfile:    &packet.LearnerProfile{LearnerID: "learner-1", Level: "beginner"},
		CurriculumContext: &packet.CurriculumContext{NodeID: "node-ring", Title: "Ring buffers", Depth: 1, Language: "go"},
		AttemptContext:    &packet.AttemptContext{AttemptIndex: packet.Int(1)},
		EvidenceContext: &packet.EvidenceContext{
			Tests: &packet.TestEvidence{Failing: []string{"TestWrap"}},
		},
	}
}

func scaffoldInput() packet.Input {
	in := baseInput()
	in.Role = packet.RoleScaffold
	in.OutputContract = &packet.OutputContract{SchemaName: "scaffold_v1"}
	return in
}

func TestSchemas(t *testing.T) {
	e := newEnv(t, nil)

	out, err := e.run(t, "schemas")
	require.NoError(t, err)
	assert.Contains(t, out, "SCHEMA")
	assert.Contains(t, out, "hint_pack_v1")
	assert.Contains(t, out, "scaffold_v1")

	out, err = e.run(t, "schemas", "hint_pack_v1")
	require.NoError(t, err)
	assert.Contains(t, out, `"hints"`)

	_, err = e.run(t, "schemas", "nope_v1")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantReason failure.Reason
	}{
		{name: "accepted", payload: "```json\n" + hintsJSON + "\n```"},
		{name: "not json", payload: "no object here", wantReason: failure.ReasonSchemaValidationFailed},
		{name: "schema failure", payload: `{"hints":"none"}`, wantReason: failure.ReasonSchemaValidationFailed},
		{name: "policy violation", payload: revealJSON, wantReason: failure.ReasonPolicyViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, nil)
			pk := e.writePacket(t, baseInput())
			file := filepath.Join(e.dir, "output.txt")
			require.NoError(t, os.WriteFile(file, []byte(tt.payload), 0o644))

			out, err := e.run(t, "validate", "hint_pack_v1", file, "--packet", pk)
			if tt.wantReason == "" {
				require.NoError(t, err)
				assert.Equal(t, "ok: hint_pack_v1\n", out)
				return
			}

			rej, ok := gate.AsRejection(err)
			require.True(t, ok, "want rejection, got %v", err)
			assert.Equal(t, tt.wantReason, rej.Reason())
			assert.Equal(t, exitRejected, exitCode(err))

			var me gate.MachineError
			require.NoError(t, json.Unmarshal([]byte(out), &me))
			assert.Equal(t, string(tt.wantReason), me.Error)
			assert.Equal(t, "hint_pack_v1", me.SchemaName)
		})
	}
}

func TestValidate_UnknownSchema(t *testing.T) {
	e := newEnv(t, nil)
	file := filepath.Join(e.dir, "output.json")
	require.NoError(t, os.WriteFile(file, []byte(hintsJSON), 0o644))

	_, err := e.run(t, "validate", "grader_v1", file)
	require.Error(t, err)
	assert.Equal(t, exitError, exitCode(err))
}

func TestStage_Accepted(t *testing.T) {
	e := newEnv(t, map[stage.Name]string{stage.Scaffold: scaffoldJSON})
	pk := e.writePacket(t, scaffoldInput())

	out, err := e.run(t, "stage", "scaffold", "--packet", pk, "--workdir", e.dir)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, "Ring buffer", payload["exerciseTitle"])
}

func TestStage_PolicyRejectionPrintsOnlyMachineError(t *testing.T) {
	e := newEnv(t, map[stage.Name]string{stage.Coach: revealJSON})
	in := baseInput()
	in.Role = packet.RoleCoach
	in.OutputContract = &packet.OutputContract{SchemaName: "hint_pack_v1"}
	pk := e.writePacket(t, in)

	out, err := e.run(t, "stage", "coach", "--packet", pk, "--workdir", e.dir)
	require.Error(t, err)
	assert.Equal(t, exitRejected, exitCode(err))
	assert.Contains(t, out, `"error": "POLICY_VIOLATION"`)
	assert.NotContains(t, out, "Here it is.")
	assert.NotContains(t, out, `"hints"`)
}

func TestStage_RejectionIsAuditedAndCounted(t *testing.T) {
	e := newEnv(t, map[stage.Name]string{stage.Scaffold: `{"exerciseTitle":""}`})
	pk := e.writePacket(t, scaffoldInput())
	metricsFile := filepath.Join(e.dir, "forge.prom")

	out, err := e.run(t, "--metrics-file", metricsFile, "stage", "scaffold", "--packet", pk, "--workdir", e.dir)
	require.Error(t, err)
	assert.Equal(t, exitRejected, exitCode(err))
	assert.Contains(t, out, `"error": "SCHEMA_VALIDATION_FAILED"`)

	entries, err := audit.ReadFile(audit.DefaultPath(e.stateRoot))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, stage.Scaffold, entries[0].Stage)
	assert.Equal(t, failure.ReasonSchemaValidationFailed, entries[0].Reason)

	metrics, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `forge_stage_rejections_total{reason="SCHEMA_VALIDATION_FAILED",stage="scaffold"} 1`)

	out, err = e.run(t, "audit", "--json")
	require.NoError(t, err)
	var entry audit.Entry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &entry))
	assert.Equal(t, stage.Scaffold, entry.Stage)

	out, err = e.run(t, "audit", "--stage", "coach")
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))
}

func TestAudit_RedisMirror(t *testing.T) {
	mr := miniredis.RunT(t)
	e := newEnv(t, map[stage.Name]string{stage.Scaffold: `{"exerciseTitle":""}`})
	f, err := os.OpenFile(e.configPath, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = fmt.Fprintf(f, "audit:\n  redis:\n    url: redis://%s\n", mr.Addr())
	require.NoError(t, err)
	require.NoError(t, f.Close())

	pk := e.writePacket(t, scaffoldInput())
	_, err = e.run(t, "stage", "scaffold", "--packet", pk, "--workdir", e.dir)
	require.Error(t, err)

	out, err := e.run(t, "audit", "--redis", "--json")
	require.NoError(t, err)
	var entry audit.Entry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &entry))
	assert.Equal(t, stage.Scaffold, entry.Stage)
	assert.Equal(t, failure.ReasonSchemaValidationFailed, entry.Reason)

	out, err = e.run(t, "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "redis mirror reachable")
}

func TestAudit_RedisNotConfigured(t *testing.T) {
	e := newEnv(t, nil)
	_, err := e.run(t, "audit", "--follow")
	assert.ErrorContains(t, err, "audit.redis is not configured")
}

func TestStage_InvalidPacket(t *testing.T) {
	e := newEnv(t, nil)
	in := scaffoldInput()
	in.LearnerProfile = nil
	pk := e.writePacket(t, in)

	_, err := e.run(t, "stage", "scaffold", "--packet", pk)
	require.Error(t, err)
	assert.ErrorIs(t, err, forge.ErrInvalidPacket)
	assert.Equal(t, exitError, exitCode(err))
}

func TestStage_RequiresPacket(t *testing.T) {
	e := newEnv(t, nil)
	_, err := e.run(t, "stage", "scaffold")
	assert.ErrorContains(t, err, "--packet is required")
}

func TestCoach(t *testing.T) {
	e := newEnv(t, map[stage.Name]string{stage.Coach: hintsJSON})
	pk := e.writePacket(t, baseInput())

	out, err := e.run(t, "coach", "--packet", pk, "--workdir", e.dir)
	require.NoError(t, err)

	var hp forge.HintPack
	require.NoError(t, json.Unmarshal([]byte(out), &hp))
	require.Len(t, hp.Hints, 1)
	assert.Equal(t, "Check the wrap index.", hp.Hints[0].Text)
}

func TestReview_Strict(t *testing.T) {
	e := newEnv(t, map[stage.Name]string{
		stage.Reviewer: `{"contract":null,"passFail":"FAIL","score":40,"summary":"Wrap is wrong.","findings":[],"strengths":null}`,
	})
	pk := e.writePacket(t, baseInput())

	out, err := e.run(t, "review", "--packet", pk, "--workdir", e.dir)
	require.NoError(t, err)
	assert.Contains(t, out, `"passFail": "FAIL"`)

	_, err = e.run(t, "review", "--packet", pk, "--workdir", e.dir, "--strict")
	assert.ErrorContains(t, err, "review did not pass")
}

func TestSetup_WritesExercise(t *testing.T) {
	e := newEnv(t, map[stage.Name]string{
		stage.Scaffold:      scaffoldJSON,
		stage.StarterExpand: starterJSON,
		stage.TestExpand:    testJSON,
		stage.LessonExpand:  lessonJSON,
	})
	pk := e.writePacket(t, baseInput())
	outDir := filepath.Join(e.dir, "exercise")

	out, err := e.run(t, "setup", "--packet", pk, "--workdir", e.dir, "--out", outDir)
	require.NoError(t, err)

	var ex forge.Exercise
	require.NoError(t, json.Unmarshal([]byte(out), &ex))
	assert.Equal(t, loop.Done, ex.Starter.State)
	assert.Equal(t, loop.Done, ex.Lesson.State)

	ring, err := os.ReadFile(filepath.Join(outDir, "ring.go"))
	require.NoError(t, err)
	assert.Equal(t, "package ring\n", string(ring))

	lesson, err := os.ReadFile(filepath.Join(outDir, LessonFile))
	require.NoError(t, err)
	assert.Contains(t, string(lesson), "## Indices")
	assert.Contains(t, string(lesson), "Use modulo.")
}

func TestDoctor(t *testing.T) {
	e := newEnv(t, nil)

	out, err := e.run(t, "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "overall: healthy")

	cfg := fmt.Sprintf("state_root: %s\ngenerator:\n  executable: %s\n", e.stateRoot, filepath.Join(e.dir, "missing-codex"))
	require.NoError(t, os.WriteFile(e.configPath, []byte(cfg), 0o644))

	out, err = e.run(t, "doctor", "--json")
	require.Error(t, err)
	assert.Contains(t, out, `"status": "unhealthy"`)
}

func TestBadConfig(t *testing.T) {
	e := newEnv(t, nil)
	require.NoError(t, os.WriteFile(e.configPath, []byte("bogus: true\n"), 0o644))

	_, err := e.run(t, "schemas")
	assert.ErrorContains(t, err, "load config")
}

func TestExitCode(t *testing.T) {
	rejection := &gate.RejectionError{Result: stage.Rejected(stage.Coach, "hint_pack_v1", failure.ReasonTimeout)}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: exitOK},
		{name: "plain error", err: errors.New("boom"), want: exitError},
		{name: "rejection", err: rejection, want: exitRejected},
		{name: "wrapped rejection", err: forge.NewExecutionError("Pipeline.Coach", rejection), want: exitRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestEmitExercise_RejectsEscapingPaths(t *testing.T) {
	ex := &forge.Exercise{
		Starter: loop.Outcome{
			Kind:     loop.Starter,
			Sections: []packet.Section{{FilePath: "../evil.go", Content: "package evil"}},
		},
	}
	_, err := emitExercise(t.TempDir(), ex)
	assert.ErrorContains(t, err, "escapes the output directory")
}

func TestEmitExercise_ConcatenatesAndFallsBack(t *testing.T) {
	dir := t.TempDir()
	ex := &forge.Exercise{
		Starter: loop.Outcome{
			Kind: loop.Starter,
			Sections: []packet.Section{
				{FilePath: "pkg/ring.go", Content: "package ring"},
				{FilePath: "pkg/ring.go", Content: "func Push() {}\n"},
			},
		},
		Tests: loop.Outcome{
			Kind:     loop.Test,
			Sections: []packet.Section{{Content: "check wrap"}},
		},
	}

	written, err := emitExercise(dir, ex)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("pkg", "ring.go"), "tests.txt"}, written)

	ring, err := os.ReadFile(filepath.Join(dir, "pkg", "ring.go"))
	require.NoError(t, err)
	assert.Equal(t, "package ring\nfunc Push() {}\n", string(ring))
}
