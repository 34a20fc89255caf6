package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"workspace-portal/internal/auth"
)

// Workspace types accepted by the workspace API.
const (
	WorkspaceTypeCredits   = "STRIDES Credits"
	WorkspaceTypeGrant     = "STRIDES Grant"
	WorkspaceTypeDirectPay = "Direct Pay"
)

var (
	ErrInvalidWorkspaceType = errors.New("invalid workspace type")
	ErrInvalidLimits        = errors.New("hard limit must be larger than soft limit")
	ErrNotEntitled          = errors.New("not entitled to request this workspace type")
	ErrMissingAccountID     = errors.New("account id is required")
	ErrMissingWorkspaceID   = errors.New("workspace id is required")
)

// Workspace is one workspace account row.
type Workspace struct {
	ID                   string
	RequestStatus        string
	Type                 string
	TotalUsage           float64
	SoftLimit            float64
	HardLimit            float64
	NIHFundedAwardNumber string
	StridesCredits       float64
	DirectPayWorkspaceID string
	DirectPayLimit       float64
	AccountID            string
}

// WorkspaceRequest is a new workspace request. Form carries the remaining
// request form fields as entered by the user.
type WorkspaceRequest struct {
	Type string
	Form map[string]any
}

// Limits are the spending thresholds of a workspace.
type Limits struct {
	Soft float64
	Hard float64
}

// WorkspaceRepo is the workspace API as seen by one browser session.
type WorkspaceRepo interface {
	// List returns the caller's workspaces.
	List(ctx context.Context, s *auth.Session) ([]Workspace, error)
	// ListAll returns every workspace; admin only upstream.
	ListAll(ctx context.Context, s *auth.Session) ([]Workspace, error)
	// Get returns one of the caller's workspaces.
	Get(ctx context.Context, s *auth.Session, id string) (*Workspace, error)
	// Request submits a new workspace request and returns the upstream message.
	Request(ctx context.Context, s *auth.Session, req *WorkspaceRequest) (string, error)
	// SetLimits updates the limits of a workspace.
	SetLimits(ctx context.Context, s *auth.Session, id string, limits Limits) (*Workspace, error)
	// Provision approves a pending request against an account.
	Provision(ctx context.Context, s *auth.Session, id, accountID string) error
}

// WorkspaceUsecase is the workspace business logic.
type WorkspaceUsecase struct {
	repo WorkspaceRepo
}

// NewWorkspaceUsecase creates a WorkspaceUsecase.
func NewWorkspaceUsecase(repo WorkspaceRepo) *WorkspaceUsecase {
	return &WorkspaceUsecase{repo: repo}
}

// List returns the caller's workspaces, never nil.
func (uc *WorkspaceUsecase) List(ctx context.Context, s *auth.Session) ([]Workspace, error) {
	workspaces, err := uc.repo.List(ctx, s)
	if err != nil {
		return nil, wrapError("list workspaces", err)
	}
	if workspaces == nil {
		workspaces = []Workspace{}
	}
	return workspaces, nil
}

// ListAll returns every workspace, never nil.
func (uc *WorkspaceUsecase) ListAll(ctx context.Context, s *auth.Session) ([]Workspace, error) {
	workspaces, err := uc.repo.ListAll(ctx, s)
	if err != nil {
		return nil, wrapError("list all workspaces", err)
	}
	if workspaces == nil {
		workspaces = []Workspace{}
	}
	return workspaces, nil
}

// Get returns one of the caller's workspaces.
func (uc *WorkspaceUsecase) Get(ctx context.Context, s *auth.Session, id string) (*Workspace, error) {
	if id == "" {
		return nil, ErrMissingWorkspaceID
	}
	ws, err := uc.repo.Get(ctx, s, id)
	if err != nil {
		return nil, wrapError("get workspace", err)
	}
	return ws, nil
}

// Request validates the workspace type against the caller's roles and
// submits the request. Credits and grant workspaces need the matching role;
// direct pay needs any portal role.
func (uc *WorkspaceUsecase) Request(ctx context.Context, s *auth.Session, roles auth.Roles, req *WorkspaceRequest) (string, error) {
	switch req.Type {
	case WorkspaceTypeCredits:
		if !roles.Credits {
			return "", ErrNotEntitled
		}
	case WorkspaceTypeGrant:
		if !roles.Grants {
			return "", ErrNotEntitled
		}
	case WorkspaceTypeDirectPay:
		if !roles.Any() {
			return "", ErrNotEntitled
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidWorkspaceType, req.Type)
	}

	msg, err := uc.repo.Request(ctx, s, req)
	if err != nil {
		return "", wrapError("request workspace", err)
	}
	return msg, nil
}

// SetLimits updates a workspace's limits. The soft limit must stay below
// the hard limit.
func (uc *WorkspaceUsecase) SetLimits(ctx context.Context, s *auth.Session, id string, limits Limits) (*Workspace, error) {
	if id == "" {
		return nil, ErrMissingWorkspaceID
	}
	if limits.Soft < 0 || limits.Soft >= limits.Hard {
		return nil, ErrInvalidLimits
	}
	ws, err := uc.repo.SetLimits(ctx, s, id, limits)
	if err != nil {
		return nil, wrapError("set workspace limits", err)
	}
	return ws, nil
}

// Provision approves a pending workspace request.
func (uc *WorkspaceUsecase) Provision(ctx context.Context, s *auth.Session, id, accountID string) error {
	if id == "" {
		return ErrMissingWorkspaceID
	}
	if strings.TrimSpace(accountID) == "" {
		return ErrMissingAccountID
	}
	if err := uc.repo.Provision(ctx, s, id, strings.TrimSpace(accountID)); err != nil {
		return wrapError("provision workspace", err)
	}
	return nil
}

// wrapError tags err with the failed operation.
func wrapError(op string, err error) error {
	return &opError{op: op, err: err}
}

type opError struct {
	op  string
	err error
}

func (e *opError) Error() string {
	return e.op + ": " + e.err.Error()
}

func (e *opError) Unwrap() error {
	return e.err
}
