package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/franzego/registry-backoffice/internal/models"
)

type BeneficiaryQuery struct {
	Search     string
	PageNumber int
	PageSize   int
}

type CreateUserInput struct {
	Email        string `json:"email"`
	FullName     string `json:"fullName"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	DepartmentID string `json:"departmentId,omitempty"`
	ProvinceID   string `json:"provinceId,omitempty"`
}

func (c *Client) list(ctx context.Context, token, path string, query url.Values) ([]any, error) {
	payload, err := c.Get(ctx, path, WithToken(token), WithQuery(query))
	if err != nil {
		return nil, err
	}
	return ExtractArray(payload), nil
}

func (c *Client) ListAdmins(ctx context.Context, token string) ([]any, error) {
	return c.list(ctx, token, "/admin/users/admins", nil)
}

func (c *Client) ListNonAdmins(ctx context.Context, token string) ([]any, error) {
	return c.list(ctx, token, "/admin/users/non-admins", nil)
}

func (c *Client) ListRoles(ctx context.Context, token string) ([]any, error) {
	return c.list(ctx, token, "/admin/roles", nil)
}

func (c *Client) ListDepartments(ctx context.Context, token string) ([]any, error) {
	return c.list(ctx, token, "/admin/departments", nil)
}

func (c *Client) ListProvinces(ctx context.Context, token string) ([]any, error) {
	return c.list(ctx, token, "/admin/provinces", nil)
}

func (c *Client) ListBeneficiaries(ctx context.Context, token string, q BeneficiaryQuery) (models.Page[any], error) {
	query := url.Values{}
	query.Set("search", q.Search)
	if q.PageNumber > 0 {
		query.Set("pageNumber", strconv.Itoa(q.PageNumber))
	}
	if q.PageSize > 0 {
		query.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	payload, err := c.Get(ctx, "/admin/beneficiaries", WithToken(token), WithQuery(query))
	if err != nil {
		return models.Page[any]{}, err
	}
	return NormalizePage(payload), nil
}

func (c *Client) CreateUser(ctx context.Context, token string, in CreateUserInput) (any, error) {
	return c.Post(ctx, "/admin/users", WithToken(token), WithBody(in))
}

func (c *Client) UpdateUserRole(ctx context.Context, token, userID, role string) error {
	_, err := c.Patch(ctx, "/admin/users/"+url.PathEscape(userID)+"/role",
		WithToken(token), WithBody(map[string]string{"role": role}))
	return err
}

func (c *Client) ResetUserPassword(ctx context.Context, token, userID, newPassword string) error {
	_, err := c.Post(ctx, "/admin/users/"+url.PathEscape(userID)+"/password",
		WithToken(token), WithBody(map[string]string{"newPassword": newPassword}))
	return err
}

func (c *Client) EnableUser(ctx context.Context, token, userID string) error {
	_, err := c.Post(ctx, "/admin/users/"+url.PathEscape(userID)+"/enable", WithToken(token))
	return err
}

func (c *Client) DisableUser(ctx context.Context, token, userID string) error {
	_, err := c.Post(ctx, "/admin/users/"+url.PathEscape(userID)+"/disable", WithToken(token))
	return err
}
