package leave

import "errors"

var ErrInvalidLeaveRange = errors.New("leave end date is before start date")
