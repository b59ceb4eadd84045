package graph

import (
	"context"
	"errors"
	"fmt"

	"referral-ledger-go/internal/models"
	"referral-ledger-go/internal/store"

	"go.uber.org/zap"
)

const (
	// DefaultTreeDepth is the depth used when a caller does not ask for one.
	DefaultTreeDepth = 2
	// MaxAncestorWalk bounds upward walks over parent codes.
	MaxAncestorWalk = 64
)

// Graph answers structural questions about the referral tree. It never
// mutates the store.
type Graph struct {
	users store.UserReader
}

func New(users store.UserReader) *Graph {
	return &Graph{users: users}
}

// ResolveParent returns the sponsor of user, or nil if the user has no parent
// code or the code matches nobody.
func (g *Graph) ResolveParent(ctx context.Context, user *models.User) (*models.User, error) {
	if user == nil || !user.HasParent() {
		return nil, nil
	}
	return g.byCode(ctx, user.ParentReferralCode)
}

// DirectChildren returns the users listed in userId's direct referrals, in
// that order. An unknown id has no children.
func (g *Graph) DirectChildren(ctx context.Context, userId string) ([]models.User, error) {
	user, err := g.byId(ctx, userId)
	if err != nil || user == nil {
		return []models.User{}, err
	}
	return g.children(ctx, user)
}

// BuildSubtree returns rootUserId decorated with its referrals down to
// maxDepth levels. Nodes at maxDepth have no children. A negative maxDepth
// means DefaultTreeDepth; an unknown root yields nil.
func (g *Graph) BuildSubtree(ctx context.Context, rootUserId string, maxDepth int) (*models.ReferralNode, error) {
	if maxDepth < 0 {
		maxDepth = DefaultTreeDepth
	}

	root, err := g.byId(ctx, rootUserId)
	if err != nil || root == nil {
		return nil, err
	}
	return g.buildNode(ctx, root, 0, maxDepth)
}

func (g *Graph) buildNode(ctx context.Context, user *models.User, depth, maxDepth int) (*models.ReferralNode, error) {
	node := &models.ReferralNode{User: *user, Children: []*models.ReferralNode{}}
	if depth >= maxDepth {
		return node, nil
	}

	children, err := g.children(ctx, user)
	if err != nil {
		return nil, err
	}
	for i := range children {
		child, err := g.buildNode(ctx, &children[i], depth+1, maxDepth)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// Ancestors walks parent codes upward starting from the user holding code.
// The first element is that user itself. The walk stops at a root, at an
// unresolvable code, after limit users, or when a code repeats.
func (g *Graph) Ancestors(ctx context.Context, code string, limit int) ([]models.User, error) {
	if limit <= 0 || limit > MaxAncestorWalk {
		limit = MaxAncestorWalk
	}

	var chain []models.User
	seen := make(map[string]bool)
	for code != "" && len(chain) < limit && !seen[code] {
		seen[code] = true

		user, err := g.byCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if user == nil {
			break
		}
		chain = append(chain, *user)
		code = user.ParentReferralCode
	}

	if len(chain) == limit {
		zap.L().Warn("Ancestor walk hit its limit", zap.Int("limit", limit))
	}
	return chain, nil
}

func (g *Graph) children(ctx context.Context, user *models.User) ([]models.User, error) {
	if len(user.DirectReferrals) == 0 {
		return []models.User{}, nil
	}

	children, err := g.users.GetUsersByIds(ctx, user.DirectReferrals)
	if err != nil {
		return nil, fmt.Errorf("unable to load referrals of %s: %w", user.Id, err)
	}
	return children, nil
}

func (g *Graph) byId(ctx context.Context, userId string) (*models.User, error) {
	user, err := g.users.GetUserById(ctx, userId)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, nil
	}
	return user, err
}

func (g *Graph) byCode(ctx context.Context, code string) (*models.User, error) {
	user, err := g.users.GetUserByReferralCode(ctx, code)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, nil
	}
	return user, err
}
