package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/corvusHold/courier/internal/dispatch/domain"
)

// Resolver turns a Receive description into one page of channel addresses.
type Resolver struct {
	dir domain.Directory
}

func NewResolver(dir domain.Directory) *Resolver { return &Resolver{dir: dir} }

func parseIDs(field string, raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil {
			return nil, domain.Invalid(field, fmt.Sprintf("%q is not a valid id", s))
		}
		out = append(out, id)
	}
	return out, nil
}

// Resolve returns page (zero based) of addresses for rc. It returns nil when the category
// produced no rows and an empty slice when rows existed but had no usable address.
// POLICY has no resolver and yields domain.ErrResolutionGap.
func (r *Resolver) Resolve(ctx context.Context, tenantID uuid.UUID, address func(domain.Contact) string, rc *domain.Receive, page, pageSize int) ([]string, error) {
	if rc.Empty() {
		return nil, nil
	}
	if page < 0 {
		return nil, domain.Invalid("page", "must not be negative")
	}
	if pageSize <= 0 {
		pageSize = domain.DefaultPageSize
	}
	offset := page * pageSize

	var (
		rows []domain.Contact
		err  error
	)
	switch rc.ObjectType {
	case domain.ObjectUser:
		if page > 0 {
			return nil, domain.ErrUserPageOutOfRange
		}
		ids, perr := parseIDs("object_ids", rc.ObjectIDs)
		if perr != nil {
			return nil, perr
		}
		if len(ids) == 0 {
			return nil, nil
		}
		rows, err = r.dir.ByUserIDs(ctx, ids)
	case domain.ObjectTenant:
		ids, perr := parseIDs("object_ids", rc.ObjectIDs)
		if perr != nil {
			return nil, perr
		}
		if len(ids) == 0 {
			ids = []uuid.UUID{tenantID}
		}
		rows, err = r.dir.ByTenants(ctx, ids, pageSize, offset)
	case domain.ObjectDept:
		ids, perr := parseIDs("object_ids", rc.ObjectIDs)
		if perr != nil {
			return nil, perr
		}
		if len(ids) == 0 {
			return nil, nil
		}
		rows, err = r.dir.ByDepartments(ctx, ids, pageSize, offset)
	case domain.ObjectGroup:
		ids, perr := parseIDs("object_ids", rc.ObjectIDs)
		if perr != nil {
			return nil, perr
		}
		if len(ids) == 0 {
			return nil, nil
		}
		rows, err = r.dir.ByGroups(ctx, ids, pageSize, offset)
	case domain.ObjectToPolicy:
		if len(rc.PolicyCodes) == 0 {
			return nil, nil
		}
		rows, err = r.dir.ByRoles(ctx, tenantID, rc.PolicyCodes, pageSize, offset)
	case domain.ObjectAll:
		rows, err = r.dir.All(ctx, pageSize, offset)
	case domain.ObjectPolicy:
		return nil, domain.ErrResolutionGap
	default:
		return nil, domain.Invalid("object_type", fmt.Sprintf("unknown receive object type %q", rc.ObjectType))
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s recipients: %w", rc.ObjectType, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(rows))
	for _, c := range rows {
		if a := strings.TrimSpace(address(c)); a != "" {
			out = append(out, a)
		}
	}
	return out, nil
}
