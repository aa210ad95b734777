//go:build windows

package mapping

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sys/windows"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "region.dat")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

// recordCloses wraps sysCloseHandle so a test sees every released handle.
func recordCloses(t *testing.T) *[]windows.Handle {
	t.Helper()
	var closed []windows.Handle
	orig := sysCloseHandle
	t.Cleanup(func() { sysCloseHandle = orig })
	sysCloseHandle = func(h windows.Handle) error {
		closed = append(closed, h)
		return orig(h)
	}
	return &closed
}

func TestMapReadOnly(t *testing.T) {
	base := Outstanding()
	path := writeFile(t, []byte("hello region"))

	r, err := Map(path, ReadOnly)
	require.NoError(t, err)
	assert.True(t, r.Mapped())
	assert.Equal(t, "hello region", string(r.Data))
	assert.Equal(t, HandleMappingObject, r.Handle.Kind())
	// mapping object and view; the file handle is already closed
	assert.Equal(t, base+2, Outstanding())

	require.NoError(t, r.Unmap())
	assert.False(t, r.Mapped())
	assert.False(t, r.Handle.Valid())
	assert.Equal(t, base, Outstanding())

	require.NoError(t, r.Unmap())
	assert.Equal(t, base, Outstanding())
}

func TestMapTwoHandlesOnOneFile(t *testing.T) {
	path := writeFile(t, []byte("shared"))

	a, err := Map(path, ReadOnly)
	require.NoError(t, err)
	b, err := Map(path, ReadOnly)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)
	assert.NotEqual(t, a.Handle.Value(), b.Handle.Value())

	require.NoError(t, a.Unmap())
	require.NoError(t, b.Unmap())
}

func TestMapReadWriteShared(t *testing.T) {
	path := writeFile(t, []byte("abc"))

	r, err := Map(path, ReadWrite)
	require.NoError(t, err)
	r.Data[0] = 'X'
	require.NoError(t, r.Unmap())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Xbc", string(got))

	ro, err := Map(path, ReadOnly)
	require.NoError(t, err)
	assert.Equal(t, byte('X'), ro.Data[0])
	require.NoError(t, ro.Unmap())
}

func TestMapMissingFile(t *testing.T) {
	base := Outstanding()
	r, err := Map(filepath.Join(t.TempDir(), "missing"), ReadOnly)
	require.Error(t, err)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageOpen, se.Stage)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.False(t, r.Mapped())
	assert.Equal(t, base, Outstanding())
}

func TestMapEmptyFile(t *testing.T) {
	base := Outstanding()
	path := writeFile(t, nil)
	closed := recordCloses(t)

	for i := 0; i < 16; i++ {
		r, err := Map(path, ReadOnly)
		assert.ErrorIs(t, err, ErrEmpty)
		var se *StageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, StageMap, se.Stage)
		assert.False(t, r.Mapped())
	}
	assert.Len(t, *closed, 16)
	assert.Equal(t, base, Outstanding())
}

func TestMapStatFailureReleasesFileHandle(t *testing.T) {
	base := Outstanding()
	path := writeFile(t, []byte("data"))
	closed := recordCloses(t)

	var opened windows.Handle
	origCreate, origInfo := sysCreateFile, sysFileInformation
	t.Cleanup(func() { sysCreateFile, sysFileInformation = origCreate, origInfo })
	sysCreateFile = func(name *uint16, access, mode uint32, sa *windows.SecurityAttributes, create, attrs uint32, tmpl windows.Handle) (windows.Handle, error) {
		h, err := origCreate(name, access, mode, sa, create, attrs, tmpl)
		opened = h
		return h, err
	}
	sysFileInformation = func(windows.Handle, *windows.ByHandleFileInformation) error {
		return windows.ERROR_ACCESS_DENIED
	}

	_, err := Map(path, ReadOnly)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageStat, se.Stage)
	assert.ErrorIs(t, err, windows.ERROR_ACCESS_DENIED)
	assert.Equal(t, []windows.Handle{opened}, *closed)
	assert.Equal(t, base, Outstanding())
}

func TestMapViewFailureReleasesObjectAndFile(t *testing.T) {
	base := Outstanding()
	path := writeFile(t, []byte("data"))
	closed := recordCloses(t)

	var opened, object windows.Handle
	origCreate, origMapping, origView := sysCreateFile, sysCreateFileMapping, sysMapViewOfFile
	t.Cleanup(func() {
		sysCreateFile, sysCreateFileMapping, sysMapViewOfFile = origCreate, origMapping, origView
	})
	sysCreateFile = func(name *uint16, access, mode uint32, sa *windows.SecurityAttributes, create, attrs uint32, tmpl windows.Handle) (windows.Handle, error) {
		h, err := origCreate(name, access, mode, sa, create, attrs, tmpl)
		opened = h
		return h, err
	}
	sysCreateFileMapping = func(fh windows.Handle, sa *windows.SecurityAttributes, prot, maxHigh, maxLow uint32, name *uint16) (windows.Handle, error) {
		h, err := origMapping(fh, sa, prot, maxHigh, maxLow, name)
		object = h
		return h, err
	}
	sysMapViewOfFile = func(windows.Handle, uint32, uint32, uint32, uintptr) (uintptr, error) {
		return 0, windows.ERROR_NOT_ENOUGH_MEMORY
	}

	_, err := Map(path, ReadWrite)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageMap, se.Stage)
	assert.ErrorIs(t, err, windows.ERROR_NOT_ENOUGH_MEMORY)
	assert.Equal(t, []windows.Handle{object, opened}, *closed)
	assert.Equal(t, base, Outstanding())
}

func TestMapMappingFailureReleasesFile(t *testing.T) {
	base := Outstanding()
	path := writeFile(t, []byte("data"))
	closed := recordCloses(t)

	origMapping := sysCreateFileMapping
	t.Cleanup(func() { sysCreateFileMapping = origMapping })
	sysCreateFileMapping = func(windows.Handle, *windows.SecurityAttributes, uint32, uint32, uint32, *uint16) (windows.Handle, error) {
		return 0, windows.ERROR_INVALID_PARAMETER
	}

	_, err := Map(path, ReadOnly)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageMap, se.Stage)
	assert.Len(t, *closed, 1)
	assert.Equal(t, base, Outstanding())
}

func TestUnmapReportsFirstErrorAndResets(t *testing.T) {
	base := Outstanding()
	path := writeFile(t, []byte("data"))

	r, err := Map(path, ReadOnly)
	require.NoError(t, err)
	addr := r.Data

	origUnmap := sysUnmapViewOfFile
	t.Cleanup(func() { sysUnmapViewOfFile = origUnmap })
	sysUnmapViewOfFile = func(uintptr) error { return windows.ERROR_INVALID_ADDRESS }
	closed := recordCloses(t)

	err = r.Unmap()
	assert.ErrorIs(t, err, windows.ERROR_INVALID_ADDRESS)
	assert.Len(t, *closed, 1)
	assert.False(t, r.Mapped())
	assert.Equal(t, base, Outstanding())

	require.NoError(t, origUnmap(uintptr(unsafe.Pointer(&addr[0]))))
}
