package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique job record ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewRunID generates a unique run log ID with the "run_" prefix
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewCompanyID generates a unique company ID with the "co_" prefix
func NewCompanyID() string {
	return "co_" + uuid.New().String()
}
