package climatetools

import "fmt"

// DatasetNotFoundError reports a gridded input dataset whose path does not
// resolve. There is no retry; the caller gets it on first touch.
type DatasetNotFoundError struct {
	Path string
}

func (e *DatasetNotFoundError) Error() string {
	return fmt.Sprintf("gridded dataset not found: %s", e.Path)
}
