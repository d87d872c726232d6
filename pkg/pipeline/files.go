package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Beastly713/mutafuzz/pkg/format"
	"github.com/Beastly713/mutafuzz/pkg/input"
	"github.com/Beastly713/mutafuzz/pkg/testcase"
)

// Ext is the file extension of stored testcases.
const Ext = ".testcase"

// InputExt is the file extension of bare inputs stored next to testcases.
const InputExt = ".input"

// HeaderFor builds the on-disk header of a testcase.
func HeaderFor[I any](tc *testcase.Testcase[I], instance string) format.Header {
	meta := tc.Metadata()
	return format.Header{
		ID:         tc.ID(),
		ParentID:   meta.ParentID,
		Depth:      meta.Depth,
		Timestamp:  meta.FoundAt.Unix(),
		Executions: meta.Executions,
		ExitKind:   meta.ExitKind,
		Instance:   instance,
	}
}

// MetadataFrom is the inverse of HeaderFor.
func MetadataFrom(h *format.Header, filename string) testcase.Metadata {
	return testcase.Metadata{
		ParentID:   h.ParentID,
		Depth:      h.Depth,
		Executions: h.Executions,
		FoundAt:    time.Unix(h.Timestamp, 0),
		ExitKind:   h.ExitKind,
		Filename:   filename,
	}
}

// WriteFile stores tc at path. The file is written under a temporary name and
// renamed, so directory watchers never see a partial testcase.
func WriteFile[I any](path string, codec input.Codec[I], tc *testcase.Testcase[I], instance string, config PersistConfig) error {
	in, err := tc.LoadInput()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Persist(tmp, codec, in, HeaderFor(tc, instance), config); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move testcase into place: %w", err)
	}
	return nil
}

// WriteInput stores only the encoded input of tc at path, so the file can be
// handed to the target directly.
func WriteInput[I any](path string, codec input.Codec[I], tc *testcase.Testcase[I]) error {
	in, err := tc.LoadInput()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create input file: %w", err)
	}
	if err := Persist(f, codec, in, format.Header{ID: tc.ID()}, PersistConfig{Raw: true}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile loads a testcase file written by WriteFile.
func ReadFile[I any](path string, codec input.Codec[I]) (I, *format.Header, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero I
		return zero, nil, err
	}
	defer f.Close()

	in, header, err := Restore(f, codec)
	if err != nil {
		return in, nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return in, header, nil
}

// FileLoader returns a testcase loader reading the input back from path.
func FileLoader[I any](path string, codec input.Codec[I]) testcase.LoadFunc[I] {
	return func() (I, error) {
		in, _, err := ReadFile(path, codec)
		return in, err
	}
}

// IsTestcaseFile reports whether name looks like a finished testcase file.
func IsTestcaseFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, Ext) && !strings.HasPrefix(base, ".")
}
