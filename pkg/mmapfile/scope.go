package mmapfile

import "errors"

// With maps path, runs fn and unmaps on every exit path, including a panic in
// fn. An error from fn is joined with any error from Close.
func With(path string, readOnly bool, fn func(*File) error) (err error) {
	f, err := Open(path, readOnly)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return fn(f)
}
