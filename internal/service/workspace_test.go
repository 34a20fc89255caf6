package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"workspace-portal/internal/api"
	"workspace-portal/internal/auth"
	"workspace-portal/internal/biz"
)

// stubRepo records what reached the workspace API.
type stubRepo struct {
	workspaces []biz.Workspace
	requested  *biz.WorkspaceRequest
	limits     biz.Limits
	accountID  string
	err        error
}

func (r *stubRepo) List(context.Context, *auth.Session) ([]biz.Workspace, error) {
	return r.workspaces, r.err
}

func (r *stubRepo) ListAll(context.Context, *auth.Session) ([]biz.Workspace, error) {
	return r.workspaces, r.err
}

func (r *stubRepo) Get(_ context.Context, _ *auth.Session, id string) (*biz.Workspace, error) {
	if r.err != nil {
		return nil, r.err
	}
	ws := r.workspaces[0]
	ws.ID = id
	return &ws, nil
}

func (r *stubRepo) Request(_ context.Context, _ *auth.Session, req *biz.WorkspaceRequest) (string, error) {
	r.requested = req
	return "request received", r.err
}

func (r *stubRepo) SetLimits(_ context.Context, _ *auth.Session, id string, limits biz.Limits) (*biz.Workspace, error) {
	r.limits = limits
	return &biz.Workspace{ID: id, SoftLimit: limits.Soft, HardLimit: limits.Hard}, r.err
}

func (r *stubRepo) Provision(_ context.Context, _ *auth.Session, _ string, accountID string) error {
	r.accountID = accountID
	return r.err
}

func newService(repo *stubRepo) api.WorkspaceService {
	return NewWorkspaceService(biz.NewWorkspaceUsecase(repo))
}

func TestWorkspaceServiceRequest(t *testing.T) {
	ctx := context.Background()
	roles := auth.Roles{Credits: true}

	t.Run("workspace type is split from the form", func(t *testing.T) {
		repo := &stubRepo{}
		resp, err := newService(repo).Request(ctx, nil, roles, api.WorkspaceRequest{
			"workspace_type":  biz.WorkspaceTypeCredits,
			"project_title":   "Genomics",
			"scientific_poc":  "Ada",
			"attestation":     true,
			"requested_limit": 2500.0,
		})
		require.NoError(t, err)
		require.Equal(t, &api.MessageResponse{Message: "request received"}, resp)

		require.NotNil(t, repo.requested)
		require.Equal(t, biz.WorkspaceTypeCredits, repo.requested.Type)
		require.Equal(t, map[string]any{
			"project_title":   "Genomics",
			"scientific_poc":  "Ada",
			"attestation":     true,
			"requested_limit": 2500.0,
		}, repo.requested.Form)
	})

	t.Run("non-string workspace type is rejected", func(t *testing.T) {
		repo := &stubRepo{}
		_, err := newService(repo).Request(ctx, nil, roles, api.WorkspaceRequest{
			"workspace_type": 42.0,
			"project_title":  "Genomics",
		})
		require.ErrorIs(t, err, biz.ErrInvalidWorkspaceType)
		require.Nil(t, repo.requested)
	})

	t.Run("missing workspace type is rejected", func(t *testing.T) {
		repo := &stubRepo{}
		_, err := newService(repo).Request(ctx, nil, roles, api.WorkspaceRequest{"project_title": "Genomics"})
		require.ErrorIs(t, err, biz.ErrInvalidWorkspaceType)
		require.Nil(t, repo.requested)
	})

	t.Run("upstream failure is passed through", func(t *testing.T) {
		boom := errors.New("boom")
		repo := &stubRepo{err: boom}
		resp, err := newService(repo).Request(ctx, nil, roles, api.WorkspaceRequest{"workspace_type": biz.WorkspaceTypeCredits})
		require.ErrorIs(t, err, boom)
		require.Nil(t, resp)
	})
}

func TestWorkspaceServiceMapping(t *testing.T) {
	ctx := context.Background()
	row := biz.Workspace{
		ID:                   "ws-1",
		RequestStatus:        "active",
		Type:                 biz.WorkspaceTypeGrant,
		TotalUsage:           12.5,
		SoftLimit:            50,
		HardLimit:            100,
		NIHFundedAwardNumber: "R01-123",
		StridesCredits:       0,
		DirectPayWorkspaceID: "dp-9",
		DirectPayLimit:       300,
		AccountID:            "acct-1",
	}
	want := api.Workspace{
		ID:                   "ws-1",
		RequestStatus:        "active",
		Type:                 biz.WorkspaceTypeGrant,
		TotalUsage:           12.5,
		SoftLimit:            50,
		HardLimit:            100,
		NIHFundedAwardNumber: "R01-123",
		DirectPayWorkspaceID: "dp-9",
		DirectPayLimit:       300,
		AccountID:            "acct-1",
	}

	t.Run("list", func(t *testing.T) {
		got, err := newService(&stubRepo{workspaces: []biz.Workspace{row}}).List(ctx, nil)
		require.NoError(t, err)
		require.Equal(t, []api.Workspace{want}, got)
	})

	t.Run("empty list is not nil", func(t *testing.T) {
		got, err := newService(&stubRepo{}).ListAll(ctx, nil)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Empty(t, got)
	})

	t.Run("get", func(t *testing.T) {
		got, err := newService(&stubRepo{workspaces: []biz.Workspace{row}}).Get(ctx, nil, "ws-1")
		require.NoError(t, err)
		require.Equal(t, &want, got)
	})

	t.Run("set limits", func(t *testing.T) {
		repo := &stubRepo{}
		got, err := newService(repo).SetLimits(ctx, nil, "ws-1", &api.LimitsRequest{SoftLimit: 10, HardLimit: 20})
		require.NoError(t, err)
		require.Equal(t, biz.Limits{Soft: 10, Hard: 20}, repo.limits)
		require.Equal(t, 10.0, got.SoftLimit)
		require.Equal(t, 20.0, got.HardLimit)
	})

	t.Run("provision", func(t *testing.T) {
		repo := &stubRepo{}
		require.NoError(t, newService(repo).Provision(ctx, nil, "ws-1", &api.ProvisionRequest{AccountID: "acct-1"}))
		require.Equal(t, "acct-1", repo.accountID)
	})
}
