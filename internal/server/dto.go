// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"time"

	"github.com/pdiddy/research-council/pkg/types"
)

// Request payloads

type ProviderTestRequest struct {
	Model string `json:"model,omitempty"`
}

type UnlockRequest struct {
	Passphrase string `json:"passphrase" minLength:"1"`
}

type CredentialRequest struct {
	Provider string `json:"provider"`
	Name     string `json:"name,omitempty"`
	APIKey   string `json:"api_key" minLength:"1"`
}

type AssessmentRequest struct {
	Content string `json:"content"`
}

type GateRequest struct {
	Status types.GateStatus `json:"status" enum:"passed,failed,needs_revision"`
	Notes  string           `json:"notes,omitempty"`
}

type ResubmitRequest struct {
	ApplyRevisions *bool  `json:"apply_revisions,omitempty"`
	RunReview      bool   `json:"run_review,omitempty"`
	Provider       string `json:"provider,omitempty"`
	Model          string `json:"model,omitempty"`
}

type SnapshotRequest struct {
	Label string `json:"label,omitempty"`
	Note  string `json:"note,omitempty"`
}

// Response payloads

type ProviderInfo struct {
	Name         string `json:"name"`
	DefaultModel string `json:"default_model,omitempty"`
}

type SessionResponse struct {
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

type SnapshotResponse struct {
	VersionID string `json:"version_id"`
}

type RunDetail struct {
	Run   types.Run    `json:"run"`
	Ideas []types.Idea `json:"ideas"`
}
