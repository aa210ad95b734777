package mmapfile

import (
	"errors"

	"github.com/srediag/plugin-mmap/internal/mapping"
)

// Kind classifies a failure of Open or Map.
type Kind int

const (
	// KindOpen means the file could not be opened with the requested access.
	KindOpen Kind = iota + 1
	// KindStat means the file size could not be determined.
	KindStat
	// KindMap means the OS refused to establish the mapping.
	KindMap
	// KindAlreadyMapped means Map was called on a File that is still mapped.
	KindAlreadyMapped
)

var (
	ErrOpen          = errors.New("mmapfile: open failed")
	ErrStat          = errors.New("mmapfile: stat failed")
	ErrMap           = errors.New("mmapfile: mapping failed")
	ErrAlreadyMapped = errors.New("mmapfile: file is already mapped")

	// ErrEmptyFile is the cause of every KindMap failure on a zero-length file.
	ErrEmptyFile = mapping.ErrEmpty
	// ErrTooLarge is the cause of a KindMap failure on a file exceeding the address space.
	ErrTooLarge = mapping.ErrTooLarge

	ErrNotMapped     = errors.New("mmapfile: file is not mapped")
	ErrInvalidOffset = errors.New("mmapfile: invalid offset")
)

func (k Kind) sentinel() error {
	switch k {
	case KindOpen:
		return ErrOpen
	case KindStat:
		return ErrStat
	case KindMap:
		return ErrMap
	case KindAlreadyMapped:
		return ErrAlreadyMapped
	}
	return nil
}

func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "open"
	case KindStat:
		return "stat"
	case KindMap:
		return "map"
	case KindAlreadyMapped:
		return "already mapped"
	}
	return "unknown"
}

// Error describes a failed Open or Map. errors.Is matches it against the
// sentinel of its Kind; Unwrap returns the platform cause.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := "mmapfile: " + e.Op + " " + e.Path
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the Kind carried by err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func wrapStageError(path string, err error) error {
	var se *mapping.StageError
	if !errors.As(err, &se) {
		return &Error{Kind: KindMap, Op: "map", Path: path, Err: err}
	}
	e := &Error{Path: path, Op: se.Stage.String(), Err: se.Err}
	switch se.Stage {
	case mapping.StageOpen:
		e.Kind = KindOpen
	case mapping.StageStat:
		e.Kind = KindStat
	default:
		e.Kind = KindMap
	}
	return e
}
