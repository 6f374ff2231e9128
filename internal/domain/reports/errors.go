package reports

import "errors"

// ErrNotFound is returned by repositories when no report has the given id.
var ErrNotFound = errors.New("report not found")
