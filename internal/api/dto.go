package api

import (
	"context"

	"workspace-portal/internal/auth"
)

// Workspace is a workspace account as shown to the browser.
type Workspace struct {
	ID                   string  `json:"bmh_workspace_id"`
	RequestStatus        string  `json:"request_status"`
	Type                 string  `json:"workspace_type"`
	TotalUsage           float64 `json:"total-usage"`
	SoftLimit            float64 `json:"soft-limit"`
	HardLimit            float64 `json:"hard-limit"`
	NIHFundedAwardNumber string  `json:"nih_funded_award_number,omitempty"`
	StridesCredits       float64 `json:"strides-credits"`
	DirectPayWorkspaceID string  `json:"directpay_workspace_id,omitempty"`
	DirectPayLimit       float64 `json:"direct_pay_limit,omitempty"`
	AccountID            string  `json:"account_id,omitempty"`
}

// WorkspaceRequest is the request form as submitted by the browser. The
// workspace_type field selects the funding model; every other field is
// forwarded unchanged.
type WorkspaceRequest map[string]any

// LimitsRequest sets a workspace's spending thresholds.
type LimitsRequest struct {
	SoftLimit float64 `json:"soft-limit"`
	HardLimit float64 `json:"hard-limit"`
}

// ProvisionRequest approves a workspace request against an account.
type ProvisionRequest struct {
	AccountID string `json:"account_id"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message,omitempty"`
	Location string `json:"location,omitempty"`
}

// RolesInfo lists the portal roles of the current user.
type RolesInfo struct {
	Admin   bool `json:"admin"`
	Credits bool `json:"credits"`
	Grants  bool `json:"grants"`
}

// UserInfo describes the logged-in user.
type UserInfo struct {
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
	Roles RolesInfo `json:"roles"`
}

// LoginStatus is the state the login page renders.
type LoginStatus struct {
	Authenticated bool   `json:"authenticated"`
	Error         string `json:"error,omitempty"`
	Message       string `json:"message,omitempty"`
	LoginURL      string `json:"login_url"`
}

// CallbackStatus reports a callback that did not redirect.
type CallbackStatus struct {
	State string `json:"state"`
}

// WorkspaceService is the workspace operations the handlers need.
type WorkspaceService interface {
	List(ctx context.Context, s *auth.Session) ([]Workspace, error)
	ListAll(ctx context.Context, s *auth.Session) ([]Workspace, error)
	Get(ctx context.Context, s *auth.Session, id string) (*Workspace, error)
	Request(ctx context.Context, s *auth.Session, roles auth.Roles, req WorkspaceRequest) (*MessageResponse, error)
	SetLimits(ctx context.Context, s *auth.Session, id string, req *LimitsRequest) (*Workspace, error)
	Provision(ctx context.Context, s *auth.Session, id string, req *ProvisionRequest) error
}
