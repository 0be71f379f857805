// internal/model/operation.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// OperationType represents the type of operation
type OperationType string

const (
	OperationTypeConnect            OperationType = "CONNECT"
	OperationTypeSetName            OperationType = "SET_NAME"
	OperationTypeSetNoiseCancelling OperationType = "SET_NOISE_CANCELLING"
	OperationTypeSetAutoOff         OperationType = "SET_AUTO_OFF"
	OperationTypeSetPromptLanguage  OperationType = "SET_PROMPT_LANGUAGE"
)

// OperationStatus represents the status of an operation
type OperationStatus string

const (
	OperationStatusPending OperationStatus = "PENDING"
	OperationStatusSuccess OperationStatus = "SUCCESS"
	OperationStatusFailed  OperationStatus = "FAILED"
	OperationStatusSkipped OperationStatus = "SKIPPED"
)

// SettingOperation records one setting change requested in an invocation
type SettingOperation struct {
	ID            uuid.UUID       `json:"id" yaml:"id"`
	OperationType OperationType   `json:"operation_type" yaml:"operation_type"`
	Value         string          `json:"value" yaml:"value"`
	Status        OperationStatus `json:"status" yaml:"status"`
	StartedAt     *time.Time      `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	DurationMs    *int            `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
	ErrorMessage  *string         `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// NewSettingOperation creates a pending operation record
func NewSettingOperation(opType OperationType, value string) *SettingOperation {
	return &SettingOperation{
		ID:            uuid.New(),
		OperationType: opType,
		Value:         value,
		Status:        OperationStatusPending,
	}
}

// Start stamps the start time
func (op *SettingOperation) Start() {
	now := time.Now()
	op.StartedAt = &now
}

// Complete marks the operation finished, failed when err is non-nil
func (op *SettingOperation) Complete(err error) {
	now := time.Now()
	op.CompletedAt = &now
	if op.StartedAt != nil {
		ms := int(now.Sub(*op.StartedAt).Milliseconds())
		op.DurationMs = &ms
	}

	if err != nil {
		msg := err.Error()
		op.ErrorMessage = &msg
		op.Status = OperationStatusFailed
		return
	}
	op.Status = OperationStatusSuccess
}

// Skip marks an operation that was never attempted
func (op *SettingOperation) Skip() {
	op.Status = OperationStatusSkipped
}

// IsCompleted checks if operation is completed (success or failed)
func (op *SettingOperation) IsCompleted() bool {
	return op.Status == OperationStatusSuccess || op.Status == OperationStatusFailed
}
