package domain

import "errors"

var (
	// ErrInvalidOperator is returned when a comparison symbol is not one of < <= = >= >.
	ErrInvalidOperator = errors.New("invalid operator")

	// ErrPolygonNotFound is returned by store operations addressing an unknown id.
	ErrPolygonNotFound = errors.New("polygon not found")

	// ErrRuleIndexOutOfRange is returned when a rule index does not exist on the polygon.
	ErrRuleIndexOutOfRange = errors.New("rule index out of range")

	// ErrUnknownDataSource is returned when a data source id is not configured.
	ErrUnknownDataSource = errors.New("unknown data source")

	// ErrTimelineMismatch is returned when timestamps and values differ in length.
	ErrTimelineMismatch = errors.New("timestamps and values differ in length")

	// ErrUnknownPreset is returned for a range preset name that is not defined.
	ErrUnknownPreset = errors.New("unknown range preset")

	// ErrEmptyField is returned when a polygon is bound to an empty field name.
	ErrEmptyField = errors.New("field name is required")
)
