package detect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleLog() Log {
	return Log{
		{
			Timestamp: "10-00-01",
			ImageFile: "frame_annotated/annotated_10-00-01.jpg",
			Detections: []Detection{
				{ClassName: "cone", Confidence: 0.4, BBox: []float64{0, 0, 10, 10}},
			},
		},
		{
			Timestamp: "10-00-03",
			ImageFile: "frame_annotated/annotated_10-00-03.jpg",
			Detections: []Detection{
				{ClassName: "target", Confidence: 0.05, BBox: []float64{1, 1, 2, 2}},
				{ClassName: "target", Confidence: 0.9, BBox: []float64{100, 100, 200, 200}},
			},
		},
		{
			Timestamp: "10-00-05",
			ImageFile: "frame_annotated/annotated_10-00-05.jpg",
			Detections: []Detection{
				{ClassName: "target", Confidence: 0.7, BBox: []float64{500, 50, 600, 150}},
			},
		},
	}
}

func TestSource_ReadLatest_MissingFile(t *testing.T) {
	src := NewSource(filepath.Join(t.TempDir(), "annotations.json"))

	log, ok := src.ReadLatest()
	assert.False(t, ok)
	assert.Nil(t, log)

	_, err := src.Read()
	assert.ErrorIs(t, err, ErrNoData)
}

func TestSource_ReadLatest_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotations.json")
	var logged int
	src := NewSource(path)
	src.Logf = func(string, ...any) { logged++ }

	for _, content := range []string{"", "[{\"timestamp\": \"10-", "{\"not\": \"a list\"}"} {
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		_, ok := src.ReadLatest()
		assert.False(t, ok, "content %q", content)

		_, err := src.Read()
		assert.ErrorIs(t, err, ErrMalformed, "content %q", content)
	}
	assert.Equal(t, 3, logged)
}

func TestSource_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotations.json")
	want := sampleLog()
	require.NoError(t, WriteLog(path, want))

	got, ok := NewSource(path).ReadLatest()
	require.True(t, ok)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSource_ReadsWriterFormat(t *testing.T) {
	// Integer pixel coordinates as the inference script writes them.
	path := filepath.Join(t.TempDir(), "annotations.json")
	content := `[
    {
        "timestamp": "12-30-00",
        "image_file": "/home/pi/frame_annotated/annotated_12-30-00.jpg",
        "detections": [
            {"class_name": "target", "confidence": 0.91, "bbox": [100, 100, 200, 200]}
        ]
    }
]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	log, ok := NewSource(path).ReadLatest()
	require.True(t, ok)
	require.Len(t, log, 1)
	assert.Equal(t, []float64{100, 100, 200, 200}, log[0].Detections[0].BBox)
}

func TestSource_EmptyList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotations.json")
	require.NoError(t, WriteLog(path, nil))

	log, ok := NewSource(path).ReadLatest()
	assert.True(t, ok)
	assert.Empty(t, log)
}

func TestFindBestInFrame(t *testing.T) {
	frame := FrameRecord{Detections: []Detection{
		{ClassName: "target", Confidence: 0.3, BBox: []float64{1, 0, 0, 0}},
		{ClassName: "cone", Confidence: 0.99},
		{ClassName: "target", Confidence: 0.8, BBox: []float64{2, 0, 0, 0}},
		{ClassName: "target", Confidence: 0.8, BBox: []float64{3, 0, 0, 0}},
	}}

	best, ok := FindBestInFrame(frame, "target")
	require.True(t, ok)
	assert.Equal(t, 0.8, best.Confidence)
	assert.Equal(t, 2.0, best.BBox[0], "tie should resolve to the first encountered")

	_, ok = FindBestInFrame(frame, "person")
	assert.False(t, ok)
}

func TestFindBestMatch(t *testing.T) {
	log := sampleLog()

	m, ok := FindBestMatch(log, "target", 0.08)
	require.True(t, ok)
	assert.Equal(t, "frame_annotated/annotated_10-00-03.jpg", m.ImageFile)
	assert.Equal(t, 0.9, m.Detection.Confidence)

	_, ok = FindBestMatch(log, "target", 0.95)
	assert.False(t, ok)

	_, ok = FindBestMatch(nil, "target", 0)
	assert.False(t, ok)

	m, ok = FindBestMatch(log, "cone", 0.4)
	require.True(t, ok, "confidence equal to the threshold qualifies")
	assert.Equal(t, "frame_annotated/annotated_10-00-01.jpg", m.ImageFile)
}

func TestFindLatestMatch(t *testing.T) {
	m, ok := FindLatestMatch(sampleLog(), "target", 0.08)
	require.True(t, ok)
	assert.Equal(t, "frame_annotated/annotated_10-00-05.jpg", m.ImageFile)
	assert.Equal(t, 0.7, m.Detection.Confidence)
}

func TestDetection_Offset(t *testing.T) {
	tests := []struct {
		bbox []float64
		want float64
	}{
		{[]float64{300, 0, 340, 10}, 0},
		{[]float64{100, 100, 200, 200}, (150.0 - 320) / 320},
		{[]float64{600, 0, 640, 10}, (620.0 - 320) / 320},
		{[]float64{900, 0, 1000, 10}, 1},
		{[]float64{-500, 0, -400, 10}, -1},
	}

	for _, tt := range tests {
		got, err := Detection{ClassName: "target", BBox: tt.bbox}.Offset(640)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-9, "bbox %v", tt.bbox)
	}

	_, err := Detection{ClassName: "target", BBox: []float64{1, 2}}.Offset(640)
	assert.ErrorIs(t, err, ErrNoBox)

	_, err = Detection{ClassName: "target"}.Offset(640)
	assert.ErrorIs(t, err, ErrNoBox)

	_, err = Detection{BBox: []float64{0, 0, 1, 1}}.Offset(0)
	assert.Error(t, err)
}
