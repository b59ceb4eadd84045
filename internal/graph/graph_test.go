package graph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"referral-ledger-go/internal/models"
	"referral-ledger-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	byId map[string]models.User
	err  error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byId: make(map[string]models.User)}
}

func (f *fakeUsers) add(id, code, parentCode string) {
	user := models.User{Id: id, Name: id, ReferralCode: code, ParentReferralCode: parentCode, DirectReferrals: []string{}}
	for pid, parent := range f.byId {
		if parentCode != "" && parent.ReferralCode == parentCode {
			parent.DirectReferrals = append(parent.DirectReferrals, id)
			f.byId[pid] = parent
			user.Level = parent.Level + 1
		}
	}
	f.byId[id] = user
}

func (f *fakeUsers) GetUserById(_ context.Context, userId string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	user, ok := f.byId[userId]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, userId)
	}
	return &user, nil
}

func (f *fakeUsers) GetUserByReferralCode(_ context.Context, code string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, user := range f.byId {
		if user.ReferralCode == code {
			return &user, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, code)
}

func (f *fakeUsers) GetUsersByIds(_ context.Context, userIds []string) ([]models.User, error) {
	var users []models.User
	for _, id := range userIds {
		if user, ok := f.byId[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

// john -> alice, bob; alice -> carol; carol -> dave
func demoGraph() (*Graph, *fakeUsers) {
	users := newFakeUsers()
	users.add("john", "JOHN", "")
	users.add("alice", "ALICE", "JOHN")
	users.add("bob", "BOB", "JOHN")
	users.add("carol", "CAROL", "ALICE")
	users.add("dave", "DAVE", "CAROL")
	return New(users), users
}

func TestResolveParent(t *testing.T) {
	g, users := demoGraph()
	ctx := context.Background()

	carol := users.byId["carol"]
	parent, err := g.ResolveParent(ctx, &carol)
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, "alice", parent.Id)

	john := users.byId["john"]
	parent, err = g.ResolveParent(ctx, &john)
	require.NoError(t, err)
	assert.Nil(t, parent)

	orphan := models.User{Id: "orphan", ParentReferralCode: "GHOST"}
	parent, err = g.ResolveParent(ctx, &orphan)
	require.NoError(t, err)
	assert.Nil(t, parent)
}

func TestDirectChildren(t *testing.T) {
	g, _ := demoGraph()
	ctx := context.Background()

	children, err := g.DirectChildren(ctx, "john")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "alice", children[0].Id)
	assert.Equal(t, "bob", children[1].Id)

	children, err = g.DirectChildren(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, children)

	children, err = g.DirectChildren(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestBuildSubtree_DepthTruncation(t *testing.T) {
	g, _ := demoGraph()
	ctx := context.Background()

	tree, err := g.BuildSubtree(ctx, "john", 2)
	require.NoError(t, err)
	require.NotNil(t, tree)
	require.Len(t, tree.Children, 2)

	alice := tree.Children[0]
	assert.Equal(t, "alice", alice.Id)
	require.Len(t, alice.Children, 1)
	carol := alice.Children[0]
	assert.Equal(t, "carol", carol.Id)
	// carol has a referral, but sits at the depth limit
	assert.Empty(t, carol.Children)

	tree, err = g.BuildSubtree(ctx, "john", 0)
	require.NoError(t, err)
	assert.Empty(t, tree.Children)

	tree, err = g.BuildSubtree(ctx, "john", -1)
	require.NoError(t, err)
	require.Len(t, tree.Children, 2)
	assert.Empty(t, tree.Children[0].Children[0].Children)

	tree, err = g.BuildSubtree(ctx, "john", 10)
	require.NoError(t, err)
	assert.Equal(t, "dave", tree.Children[0].Children[0].Children[0].Id)
}

func TestBuildSubtree_UnknownRoot(t *testing.T) {
	g, _ := demoGraph()

	tree, err := g.BuildSubtree(context.Background(), "nobody", 2)
	require.NoError(t, err)
	assert.Nil(t, tree)
}

func TestAncestors(t *testing.T) {
	g, _ := demoGraph()
	ctx := context.Background()

	chain, err := g.Ancestors(ctx, "DAVE", 0)
	require.NoError(t, err)
	ids := make([]string, len(chain))
	for i, u := range chain {
		ids[i] = u.Id
	}
	assert.Equal(t, []string{"dave", "carol", "alice", "john"}, ids)

	chain, err = g.Ancestors(ctx, "DAVE", 2)
	require.NoError(t, err)
	assert.Len(t, chain, 2)

	chain, err = g.Ancestors(ctx, "GHOST", 0)
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestStoreFailuresPropagate(t *testing.T) {
	g, users := demoGraph()
	users.err = errors.New("disk on fire")

	_, err := g.BuildSubtree(context.Background(), "john", 2)
	assert.Error(t, err)

	john := models.User{Id: "john", ParentReferralCode: "X"}
	_, err = g.ResolveParent(context.Background(), &john)
	assert.Error(t, err)
}
