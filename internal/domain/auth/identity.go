package auth

import "context"

type Role string

const (
	RoleMember    Role = "member"
	RoleClubAdmin Role = "club_admin"
	RoleAdmin     Role = "admin"
)

// Identity is the authenticated caller as asserted by the access token.
type Identity struct {
	UserID   string
	MemberID string
	ClubID   string
	Role     Role
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.MemberID == "" {
		return Identity{}, ErrMissingIdentity
	}
	return id, nil
}
