package service

import (
	"context"
	"fmt"

	"workspace-portal/internal/api"
	"workspace-portal/internal/auth"
	"workspace-portal/internal/biz"
)

// workspaceService maps between api DTOs and the workspace usecase.
type workspaceService struct {
	uc *biz.WorkspaceUsecase
}

// NewWorkspaceService creates the api.WorkspaceService.
func NewWorkspaceService(uc *biz.WorkspaceUsecase) api.WorkspaceService {
	return &workspaceService{uc: uc}
}

func (s *workspaceService) List(ctx context.Context, sess *auth.Session) ([]api.Workspace, error) {
	workspaces, err := s.uc.List(ctx, sess)
	if err != nil {
		return nil, err
	}
	return toWorkspaceDTOs(workspaces), nil
}

func (s *workspaceService) ListAll(ctx context.Context, sess *auth.Session) ([]api.Workspace, error) {
	workspaces, err := s.uc.ListAll(ctx, sess)
	if err != nil {
		return nil, err
	}
	return toWorkspaceDTOs(workspaces), nil
}

func (s *workspaceService) Get(ctx context.Context, sess *auth.Session, id string) (*api.Workspace, error) {
	ws, err := s.uc.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	dto := toWorkspaceDTO(*ws)
	return &dto, nil
}

func (s *workspaceService) Request(ctx context.Context, sess *auth.Session, roles auth.Roles, req api.WorkspaceRequest) (*api.MessageResponse, error) {
	// api DTO -> biz request
	bizReq := &biz.WorkspaceRequest{Form: make(map[string]any, len(req))}
	for k, v := range req {
		if k == "workspace_type" {
			t, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %v", biz.ErrInvalidWorkspaceType, v)
			}
			bizReq.Type = t
			continue
		}
		bizReq.Form[k] = v
	}

	msg, err := s.uc.Request(ctx, sess, roles, bizReq)
	if err != nil {
		return nil, err
	}
	return &api.MessageResponse{Message: msg}, nil
}

func (s *workspaceService) SetLimits(ctx context.Context, sess *auth.Session, id string, req *api.LimitsRequest) (*api.Workspace, error) {
	ws, err := s.uc.SetLimits(ctx, sess, id, biz.Limits{Soft: req.SoftLimit, Hard: req.HardLimit})
	if err != nil {
		return nil, err
	}
	dto := toWorkspaceDTO(*ws)
	return &dto, nil
}

func (s *workspaceService) Provision(ctx context.Context, sess *auth.Session, id string, req *api.ProvisionRequest) error {
	return s.uc.Provision(ctx, sess, id, req.AccountID)
}

func toWorkspaceDTOs(workspaces []biz.Workspace) []api.Workspace {
	out := make([]api.Workspace, 0, len(workspaces))
	for _, ws := range workspaces {
		out = append(out, toWorkspaceDTO(ws))
	}
	return out
}

func toWorkspaceDTO(ws biz.Workspace) api.Workspace {
	return api.Workspace{
		ID:                   ws.ID,
		RequestStatus:        ws.RequestStatus,
		Type:                 ws.Type,
		TotalUsage:           ws.TotalUsage,
		SoftLimit:            ws.SoftLimit,
		HardLimit:            ws.HardLimit,
		NIHFundedAwardNumber: ws.NIHFundedAwardNumber,
		StridesCredits:       ws.StridesCredits,
		DirectPayWorkspaceID: ws.DirectPayWorkspaceID,
		DirectPayLimit:       ws.DirectPayLimit,
		AccountID:            ws.AccountID,
	}
}
