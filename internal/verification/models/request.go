package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentType enumerates accepted identity documents.
type DocumentType string

const (
	DocumentPassport      DocumentType = "passport"
	DocumentDriverLicense DocumentType = "driverLicense"
	DocumentNationalID    DocumentType = "nationalId"
	DocumentOther         DocumentType = "other"
)

// ValidDocumentType reports whether t is a known document type.
func ValidDocumentType(t DocumentType) bool {
	switch t {
	case DocumentPassport, DocumentDriverLicense, DocumentNationalID, DocumentOther:
		return true
	}
	return false
}

// Status is the review state of a verification request. pending is the only
// non-terminal state: pending → approved, pending → rejected.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// RetentionWindow stamps how long a submitted request stays actionable.
// Expiry is advisory for listing but blocks late approval.
const RetentionWindow = 30 * 24 * time.Hour

// Request is a user's document submission progressing through admin review.
// TxHash is only ever set on approved requests, by the chain recorder.
type Request struct {
	ID              uuid.UUID      `json:"id"`
	UserID          uuid.UUID      `json:"userId"`
	DocumentType    DocumentType   `json:"documentType"`
	DocumentHash    string         `json:"documentHash"`
	StorageID       string         `json:"storageId"`
	Status          Status         `json:"status"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
	TxHash          string         `json:"txHash,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	ExpiresAt       time.Time      `json:"expiresAt"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Expired reports whether the request's retention window has lapsed.
func (r *Request) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Terminal reports whether the request has left the pending state.
func (r *Request) Terminal() bool {
	return r.Status != StatusPending
}
