package rbd

import "errors"

// Hard errors for malformed graphs. Missing failure-rate data is not an
// error; it surfaces as a nil model or absent values.
var (
	ErrInvalidElement     = errors.New("invalid_rbd_element")
	ErrNotConnected       = errors.New("rbd_elements_are_not_connected")
	ErrGroupNotTraceable  = errors.New("rbd_group_is_not_traceable")
	ErrInvalidGroup       = errors.New("invalid_rbd_group")
	ErrGroupOneChainOnly  = errors.New("rbd_group_contains_one_chain_only")
	ErrSchemaNotTraceable = errors.New("rbd_schema_is_not_traceable")
)
