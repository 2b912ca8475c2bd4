// Package permissions lists and creates sharing permissions on Drive files.
package permissions

import (
	"context"
	"fmt"

	"github.com/dl-alexandre/gdm/internal/api"
	"github.com/dl-alexandre/gdm/internal/types"
	"github.com/dl-alexandre/gdm/internal/utils"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"google.golang.org/api/drive/v3"
)

const permissionFields = "id,type,role,emailAddress,domain,displayName"

// Permission types
const (
	TypeUser   = "user"
	TypeGroup  = "group"
	TypeDomain = "domain"
	TypeAnyone = "anyone"
)

// Permission roles
const (
	RoleOwner     = "owner"
	RoleOrganizer = "organizer"
	RoleWriter    = "writer"
	RoleCommenter = "commenter"
	RoleReader    = "reader"
)

// Manager handles permission operations
type Manager struct {
	client *api.Client
	shaper *api.RequestShaper
}

// NewManager creates a new permission manager
func NewManager(client *api.Client) *Manager {
	return &Manager{
		client: client,
		shaper: api.NewRequestShaper(client),
	}
}

// CreateOptions configures permission creation.
//
// EmailAddress is required for user and group permissions, Domain for domain
// permissions; anyone permissions take neither. An owner role is sent as an
// ownership transfer.
type CreateOptions struct {
	Type                  string `json:"type"`
	Role                  string `json:"role"`
	EmailAddress          string `json:"emailAddress"`
	Domain                string `json:"domain"`
	SendNotificationEmail bool   `json:"sendNotificationEmail"`
}

// Validate checks that the options describe a grantable permission
func (o CreateOptions) Validate() error {
	needsEmail := o.Type == TypeUser || o.Type == TypeGroup
	return validation.ValidateStruct(&o,
		validation.Field(&o.Type, validation.Required, validation.In(TypeUser, TypeGroup, TypeDomain, TypeAnyone)),
		validation.Field(&o.Role, validation.Required, validation.In(RoleOwner, RoleOrganizer, RoleWriter, RoleCommenter, RoleReader)),
		validation.Field(&o.EmailAddress,
			validation.When(needsEmail, validation.Required, is.EmailFormat).Else(validation.Empty)),
		validation.Field(&o.Domain,
			validation.When(o.Type == TypeDomain, validation.Required, is.Domain).Else(validation.Empty)),
	)
}

// List lists all permissions on a file, following pagination
func (m *Manager) List(ctx context.Context, reqCtx *types.RequestContext, fileID string) ([]*types.Permission, error) {
	reqCtx.InvolvedFileIDs = append(reqCtx.InvolvedFileIDs, fileID)

	var allPerms []*types.Permission
	pageToken := ""

	for {
		result, err := api.ExecuteWithRetry(ctx, m.client, reqCtx, func(ctx context.Context) (*drive.PermissionList, error) {
			call := m.client.Service().Permissions.List(fileID)
			call = m.shaper.ShapePermissionsList(call, reqCtx)
			call = call.Fields("permissions(" + permissionFields + "),nextPageToken")
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			return call.Context(ctx).Do()
		})
		if err != nil {
			return nil, err
		}

		for _, p := range result.Permissions {
			allPerms = append(allPerms, convertPermission(p))
		}

		if result.NextPageToken == "" {
			break
		}
		pageToken = result.NextPageToken
	}

	return allPerms, nil
}

// Create creates a new permission on a file
func (m *Manager) Create(ctx context.Context, reqCtx *types.RequestContext, fileID string, opts CreateOptions) (*types.Permission, error) {
	reqCtx.InvolvedFileIDs = append(reqCtx.InvolvedFileIDs, fileID)

	if err := opts.Validate(); err != nil {
		return nil, utils.NewCLIError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("Invalid permission: %s", err)).
			WithContext("fileId", fileID).
			Err()
	}

	perm := &drive.Permission{
		Type:         opts.Type,
		Role:         opts.Role,
		EmailAddress: opts.EmailAddress,
		Domain:       opts.Domain,
	}

	result, err := api.ExecuteWithRetry(ctx, m.client, reqCtx, func(ctx context.Context) (*drive.Permission, error) {
		call := m.client.Service().Permissions.Create(fileID, perm)
		call = m.shaper.ShapePermissionsCreate(call, reqCtx)
		call = call.SendNotificationEmail(opts.SendNotificationEmail)
		if opts.Role == RoleOwner {
			call = call.TransferOwnership(true)
		}
		return call.Fields(permissionFields).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}

	return convertPermission(result), nil
}

func convertPermission(p *drive.Permission) *types.Permission {
	return &types.Permission{
		ID:           p.Id,
		Type:         p.Type,
		Role:         p.Role,
		EmailAddress: p.EmailAddress,
		Domain:       p.Domain,
		DisplayName:  p.DisplayName,
	}
}
