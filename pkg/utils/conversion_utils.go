package utils

import (
	"fmt"
	"strconv"
)

// ParseID parses a path parameter as a base-10 int64 identifier.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("'%s' is not a valid id", s)
	}
	return id, nil
}
