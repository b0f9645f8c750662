package domain

import "errors"

// ErrInvalidScore indicates a rating outside [0,5] or a missing metric.
var ErrInvalidScore = errors.New("invalid score")

// ErrInvalidWeights indicates a negative, non-finite or all-zero weight set.
var ErrInvalidWeights = errors.New("invalid scoring weights")

// ErrInvalidCandidate indicates that a candidate is missing required fields.
var ErrInvalidCandidate = errors.New("invalid candidate")

// ErrDuplicateCandidate indicates two candidates share an identifier.
var ErrDuplicateCandidate = errors.New("duplicate candidate id")

// ErrInvalidPersona indicates that a persona is missing required fields.
var ErrInvalidPersona = errors.New("invalid persona")

// ErrInvalidTask indicates that a task is missing required fields.
var ErrInvalidTask = errors.New("invalid task")

// ErrInvalidRoster indicates a panel roster that is too small or even-sized.
var ErrInvalidRoster = errors.New("invalid panel roster")
