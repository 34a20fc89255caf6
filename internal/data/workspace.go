package data

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"workspace-portal/internal/auth"
	"workspace-portal/internal/biz"
)

// workspaceRecord is the upstream JSON shape of a workspace row.
type workspaceRecord struct {
	ID                   string  `json:"bmh_workspace_id"`
	RequestStatus        string  `json:"request_status,omitempty"`
	Type                 string  `json:"workspace_type,omitempty"`
	TotalUsage           float64 `json:"total-usage"`
	SoftLimit            float64 `json:"soft-limit"`
	HardLimit            float64 `json:"hard-limit"`
	NIHFundedAwardNumber string  `json:"nih_funded_award_number,omitempty"`
	StridesCredits       float64 `json:"strides-credits"`
	DirectPayWorkspaceID string  `json:"directpay_workspace_id,omitempty"`
	DirectPayLimit       float64 `json:"direct_pay_limit,omitempty"`
	AccountID            string  `json:"account_id,omitempty"`
}

func (r workspaceRecord) toBiz() biz.Workspace {
	return biz.Workspace{
		ID:                   r.ID,
		RequestStatus:        r.RequestStatus,
		Type:                 r.Type,
		TotalUsage:           r.TotalUsage,
		SoftLimit:            r.SoftLimit,
		HardLimit:            r.HardLimit,
		NIHFundedAwardNumber: r.NIHFundedAwardNumber,
		StridesCredits:       r.StridesCredits,
		DirectPayWorkspaceID: r.DirectPayWorkspaceID,
		DirectPayLimit:       r.DirectPayLimit,
		AccountID:            r.AccountID,
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

// workspaceRepo calls the workspace API with the session's tokens,
// refreshing once on 401.
type workspaceRepo struct {
	endpoint  string
	refresher *auth.Refresher
}

// NewWorkspaceRepo creates a workspace repo for the API at endpoint.
func NewWorkspaceRepo(endpoint string, refresher *auth.Refresher) biz.WorkspaceRepo {
	return &workspaceRepo{
		endpoint:  strings.TrimSuffix(endpoint, "/"),
		refresher: refresher,
	}
}

func (r *workspaceRepo) List(ctx context.Context, s *auth.Session) ([]biz.Workspace, error) {
	return r.list(ctx, s, r.endpoint+"/workspaces")
}

func (r *workspaceRepo) ListAll(ctx context.Context, s *auth.Session) ([]biz.Workspace, error) {
	return r.list(ctx, s, r.endpoint+"/workspaces/admin_all")
}

// list treats 204 No Content as an empty list.
func (r *workspaceRepo) list(ctx context.Context, s *auth.Session, u string) ([]biz.Workspace, error) {
	call, err := auth.JSONCall(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var records []workspaceRecord
	if err := r.refresher.Do(ctx, s, call, &records); err != nil {
		return nil, err
	}

	workspaces := make([]biz.Workspace, 0, len(records))
	for _, rec := range records {
		workspaces = append(workspaces, rec.toBiz())
	}
	return workspaces, nil
}

func (r *workspaceRepo) Get(ctx context.Context, s *auth.Session, id string) (*biz.Workspace, error) {
	call, err := auth.JSONCall(http.MethodGet, r.workspaceURL(id, ""), nil)
	if err != nil {
		return nil, err
	}

	var rec workspaceRecord
	if err := r.refresher.Do(ctx, s, call, &rec); err != nil {
		return nil, err
	}
	ws := rec.toBiz()
	return &ws, nil
}

func (r *workspaceRepo) Request(ctx context.Context, s *auth.Session, req *biz.WorkspaceRequest) (string, error) {
	body := make(map[string]any, len(req.Form)+1)
	for k, v := range req.Form {
		body[k] = v
	}
	body["workspace_type"] = req.Type

	call, err := auth.JSONCall(http.MethodPost, r.endpoint+"/workspaces", body)
	if err != nil {
		return "", err
	}

	var resp messageResponse
	if err := r.refresher.Do(ctx, s, call, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (r *workspaceRepo) SetLimits(ctx context.Context, s *auth.Session, id string, limits biz.Limits) (*biz.Workspace, error) {
	call, err := auth.JSONCall(http.MethodPut, r.workspaceURL(id, "limits"), map[string]float64{
		"soft-limit": limits.Soft,
		"hard-limit": limits.Hard,
	})
	if err != nil {
		return nil, err
	}

	var rec workspaceRecord
	if err := r.refresher.Do(ctx, s, call, &rec); err != nil {
		return nil, err
	}
	ws := rec.toBiz()
	return &ws, nil
}

func (r *workspaceRepo) Provision(ctx context.Context, s *auth.Session, id, accountID string) error {
	call, err := auth.JSONCall(http.MethodPost, r.workspaceURL(id, "provision"), map[string]string{
		"account_id": accountID,
	})
	if err != nil {
		return err
	}
	return r.refresher.Do(ctx, s, call, nil)
}

func (r *workspaceRepo) workspaceURL(id, action string) string {
	u := fmt.Sprintf("%s/workspaces/%s", r.endpoint, url.PathEscape(id))
	if action != "" {
		u += "/" + action
	}
	return u
}
