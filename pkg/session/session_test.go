package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/trackbot/pkg/clock"
	"github.com/gwillem/trackbot/pkg/config"
	"github.com/gwillem/trackbot/pkg/detect"
	"github.com/gwillem/trackbot/pkg/search"
)

var start = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func newArchiver(t *testing.T) (*Archiver, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Archive{
		SourceDirs: []string{filepath.Join(dir, "frame_annotated"), filepath.Join(dir, "frame_debug")},
		Root:       filepath.Join(dir, "sessions"),
	}
	a := NewArchiver(cfg, clock.NewInstant(start))
	a.Logf = nil
	return a, dir
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestArchiver_DirName(t *testing.T) {
	a, _ := newArchiver(t)
	assert.Equal(t, "session_20240309_140507_1a2b3c4d", a.DirName("1a2b3c4d-0000-4000-8000-000000000000"))
	assert.Equal(t, "session_20240309_140507_abc", a.DirName("abc"))
}

func TestArchiver_Archive(t *testing.T) {
	a, dir := newArchiver(t)
	writeFile(t, filepath.Join(dir, "frame_annotated", "annotated_14-05-07.jpg"))
	writeFile(t, filepath.Join(dir, "frame_annotated", "annotations.json"))
	writeFile(t, filepath.Join(dir, "frame_debug", "frame_14-05-07.jpg"))

	dest, err := a.Archive("1a2b3c4d-ffff")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sessions", "session_20240309_140507_1a2b3c4d"), dest)

	assert.FileExists(t, filepath.Join(dest, "frame_annotated", "annotated_14-05-07.jpg"))
	assert.FileExists(t, filepath.Join(dest, "frame_annotated", "annotations.json"))
	assert.FileExists(t, filepath.Join(dest, "frame_debug", "frame_14-05-07.jpg"))

	for _, src := range []string{"frame_annotated", "frame_debug"} {
		entries, err := os.ReadDir(filepath.Join(dir, src))
		require.NoError(t, err, "source dir is kept")
		assert.Empty(t, entries)
	}
}

func TestArchiver_ResetsDetectionLog(t *testing.T) {
	a, dir := newArchiver(t)
	logPath := filepath.Join(dir, "frame_annotated", "annotations.json")
	a.DetectionLog = logPath
	require.NoError(t, os.MkdirAll(filepath.Dir(logPath), 0755))
	require.NoError(t, detect.WriteLog(logPath, detect.Log{{ImageFile: "annotated_14-05-07.jpg"}}))

	dest, err := a.Archive("s1")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dest, "frame_annotated", "annotations.json"))

	// The next session starts from an empty log the writer can append to.
	entries, ok := detect.NewSource(logPath).ReadLatest()
	require.True(t, ok)
	assert.Empty(t, entries)

	// Only the fresh log is left behind.
	entries2, err := os.ReadDir(filepath.Join(dir, "frame_annotated"))
	require.NoError(t, err)
	assert.Len(t, entries2, 1)
}

func TestArchiver_NothingToMove(t *testing.T) {
	a, dir := newArchiver(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "frame_annotated"), 0755))

	dest, err := a.Archive("abc")
	require.NoError(t, err)
	assert.Empty(t, dest)
	assert.NoDirExists(t, filepath.Join(dir, "sessions"))
}

func TestArchiver_FinalizeLogs(t *testing.T) {
	a, dir := newArchiver(t)
	var lines []string
	a.Logf = func(format string, args ...any) { lines = append(lines, format) }

	writeFile(t, filepath.Join(dir, "frame_debug", "frame.jpg"))
	a.Finalize("abc")
	a.Finalize("def")

	require.Len(t, lines, 2)
	assert.Equal(t, "Session %s archived to %s", lines[0])
	assert.Equal(t, "Session %s left no artifacts", lines[1])
}

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(filepath.Join(t.TempDir(), "trackbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_BeginEnd(t *testing.T) {
	j := openJournal(t)
	id := uuid.NewString()

	require.NoError(t, j.Begin(id, start, "target"))

	recs, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, OutcomeRunning, recs[0].Outcome)
	assert.Nil(t, recs[0].EndedAt)
	assert.Zero(t, recs[0].Duration())

	st := search.Status{
		Phase:  search.PhaseStopped,
		Scans:  4,
		Cycles: 16,
		Target: &detect.Match{
			Detection: detect.Detection{ClassName: "target", Confidence: 0.9},
			ImageFile: "annotated_14-05-07.jpg",
		},
	}
	require.NoError(t, j.End(id, start.Add(9*time.Second), st))

	recs, err = j.Recent(10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	r := recs[0]
	assert.Equal(t, id, r.ID)
	assert.True(t, start.Equal(r.StartedAt))
	assert.Equal(t, "stopped", r.Outcome)
	assert.Equal(t, "target", r.TargetClass)
	require.NotNil(t, r.Confidence)
	assert.Equal(t, 0.9, *r.Confidence)
	assert.Equal(t, "annotated_14-05-07.jpg", r.ImageFile)
	assert.Equal(t, 4, r.Scans)
	assert.Equal(t, 16, r.Cycles)
	assert.Equal(t, 9*time.Second, r.Duration())
}

func TestJournal_InterruptedWithoutTarget(t *testing.T) {
	j := openJournal(t)
	require.NoError(t, j.Begin("a", start, "target"))
	require.NoError(t, j.End("a", start.Add(time.Second), search.Status{Phase: search.PhaseInterrupted, Scans: 2}))

	recs, err := j.Recent(1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "interrupted", recs[0].Outcome)
	assert.Nil(t, recs[0].Confidence)
	assert.Empty(t, recs[0].ImageFile)
}

func TestJournal_RecentNewestFirst(t *testing.T) {
	j := openJournal(t)
	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, j.Begin(id, start.Add(time.Duration(i)*time.Minute), "target"))
	}

	recs, err := j.Recent(2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "third", recs[0].ID)
	assert.Equal(t, "second", recs[1].ID)
}

func TestJournal_EndUnknown(t *testing.T) {
	j := openJournal(t)
	assert.Error(t, j.End("missing", start, search.Status{Phase: search.PhaseStopped}))
}

func TestJournal_DuplicateBegin(t *testing.T) {
	j := openJournal(t)
	require.NoError(t, j.Begin("a", start, "target"))
	assert.Error(t, j.Begin("a", start, "target"))
}
