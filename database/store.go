package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/arangodb/shared"
	"github.com/paycheck/paycheck-backend/model"
	"github.com/paycheck/paycheck-backend/util"
)

var (
	// ErrNotFound is returned when a looked up document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned when a save was made against a stale revision
	// or would violate a unique index.
	ErrConflict = errors.New("document revision conflict")
)

// ArangoStore reads and writes organizations and users in ArangoDB.
type ArangoStore struct {
	db    arangodb.Database
	orgs  arangodb.Collection
	users arangodb.Collection
	now   func() time.Time
}

// NewArangoStore wraps an initialized connection.
func NewArangoStore(conn DBConnection) *ArangoStore {
	return &ArangoStore{
		db:    conn.Database,
		orgs:  conn.Collections[OrgsCollection],
		users: conn.Collections[UsersCollection],
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// FindOrganizationByID fetches an organization by document key.
func (s *ArangoStore) FindOrganizationByID(ctx context.Context, id string) (*model.Organization, error) {
	var org model.Organization
	if _, err := s.orgs.ReadDocument(ctx, id, &org); err != nil {
		return nil, translate(err, "read organization "+id)
	}
	return &org, nil
}

// FindOrganizationByName fetches an organization by its unique name,
// ignoring case and surrounding whitespace.
func (s *ArangoStore) FindOrganizationByName(ctx context.Context, name string) (*model.Organization, error) {
	query := `
		FOR o IN orgs
			FILTER o.name_key == @name
			LIMIT 1
			RETURN o
	`
	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"name": util.NormalizeOrgName(name)},
	})
	if err != nil {
		return nil, fmt.Errorf("query organization %q: %w", name, err)
	}
	defer cursor.Close()

	if !cursor.HasMore() {
		return nil, ErrNotFound
	}

	var org model.Organization
	if _, err := cursor.ReadDocument(ctx, &org); err != nil {
		return nil, fmt.Errorf("read organization %q: %w", name, err)
	}
	return &org, nil
}

// FindUserByID fetches a user by document key.
func (s *ArangoStore) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if _, err := s.users.ReadDocument(ctx, id, &user); err != nil {
		return nil, translate(err, "read user "+id)
	}
	return &user, nil
}

// SaveOrganization inserts the organization when it has no revision yet,
// otherwise replaces it only if the stored revision still matches.
func (s *ArangoStore) SaveOrganization(ctx context.Context, org *model.Organization) (*model.Organization, error) {
	saved := org.Clone()
	saved.NameKey = util.NormalizeOrgName(saved.Name)
	saved.UpdatedAt = s.now()
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = saved.UpdatedAt
	}

	rev, key, err := s.save(ctx, s.orgs, saved.Key, saved.Rev, saved)
	if err != nil {
		return nil, translate(err, "save organization "+saved.Name)
	}
	saved.Key, saved.Rev = key, rev
	return saved, nil
}

// SaveUser inserts or conditionally replaces a user.
func (s *ArangoStore) SaveUser(ctx context.Context, user *model.User) (*model.User, error) {
	saved := user.Clone()
	rev, key, err := s.save(ctx, s.users, saved.Key, saved.Rev, saved)
	if err != nil {
		return nil, translate(err, "save user "+saved.Username)
	}
	saved.Key, saved.Rev = key, rev
	return saved, nil
}

func (s *ArangoStore) save(ctx context.Context, col arangodb.Collection, key, rev string, doc interface{}) (string, string, error) {
	if rev == "" {
		resp, err := col.CreateDocument(ctx, doc)
		if err != nil {
			return "", "", err
		}
		return resp.Rev, resp.Key, nil
	}

	ignoreRevs := false
	resp, err := col.ReplaceDocumentWithOptions(ctx, key, doc, &arangodb.CollectionDocumentReplaceOptions{
		IgnoreRevs: &ignoreRevs,
	})
	if err != nil {
		return "", "", err
	}
	return resp.Rev, key, nil
}

func translate(err error, op string) error {
	switch {
	case shared.IsNotFound(err):
		return ErrNotFound
	case shared.IsPreconditionFailed(err), shared.IsConflict(err):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
