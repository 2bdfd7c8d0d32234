package database

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"
	"github.com/paycheck/paycheck-backend/model"
)

func TestMemoryStoreInsertAndFind(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := NewMemoryStore()

	saved, err := store.SaveOrganization(ctx, model.NewOrganization("Acme", "", model.Owner{Username: "olive", OwnerID: "u-olive"}))
	is.NoErr(err)
	is.True(saved.Key != "")
	is.True(saved.Rev != "")

	byID, err := store.FindOrganizationByID(ctx, saved.Key)
	is.NoErr(err)
	is.Equal(byID.Name, "Acme")

	byName, err := store.FindOrganizationByName(ctx, "  ACME ")
	is.NoErr(err)
	is.Equal(byName.Key, saved.Key)

	_, err = store.FindOrganizationByID(ctx, "missing")
	is.True(errors.Is(err, ErrNotFound))
	_, err = store.FindUserByID(ctx, "missing")
	is.True(errors.Is(err, ErrNotFound))
}

func TestMemoryStoreRejectsStaleRevision(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := NewMemoryStore()

	user, err := store.SaveUser(ctx, &model.User{Key: "u-1", Username: "alice"})
	is.NoErr(err)

	first := user.Clone()
	second := user.Clone()

	first.Organization = &model.OrganizationRef{Name: "Acme", OrganizationID: "acme"}
	updated, err := store.SaveUser(ctx, first)
	is.NoErr(err)
	is.True(updated.Rev != user.Rev)

	second.Organization = &model.OrganizationRef{Name: "Globex", OrganizationID: "globex"}
	_, err = store.SaveUser(ctx, second)
	is.True(errors.Is(err, ErrConflict))

	current, err := store.FindUserByID(ctx, "u-1")
	is.NoErr(err)
	is.Equal(current.Organization.OrganizationID, "acme")
}

func TestMemoryStoreUniqueNames(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := NewMemoryStore()

	acme, err := store.SaveOrganization(ctx, &model.Organization{Name: " Acme "})
	is.NoErr(err)
	is.Equal(acme.NameKey, "acme")
	_, err = store.SaveOrganization(ctx, &model.Organization{Name: "acme"})
	is.True(errors.Is(err, ErrConflict))

	acme.Name = "Acme Corp"
	renamed, err := store.SaveOrganization(ctx, acme)
	is.NoErr(err)
	is.Equal(renamed.NameKey, "acme corp")
	_, err = store.FindOrganizationByName(ctx, "Acme")
	is.True(errors.Is(err, ErrNotFound))
	_, err = store.SaveOrganization(ctx, &model.Organization{Name: "ACME"})
	is.NoErr(err)

	_, err = store.SaveUser(ctx, &model.User{Username: "alice"})
	is.NoErr(err)
	_, err = store.SaveUser(ctx, &model.User{Username: "alice"})
	is.True(errors.Is(err, ErrConflict))
}

func TestMemoryStoreCopiesDocuments(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := NewMemoryStore()

	org := &model.Organization{Key: "acme", Name: "Acme"}
	saved, err := store.SaveOrganization(ctx, org)
	is.NoErr(err)

	saved.Applications = append(saved.Applications, model.Application{Username: "bob", UserID: "u-bob"})

	fresh, err := store.FindOrganizationByID(ctx, "acme")
	is.NoErr(err)
	is.Equal(len(fresh.Applications), 0)
}

func TestOrganizationNameIndexIsNormalized(t *testing.T) {
	is := is.New(t)

	var found bool
	for _, idx := range idxList {
		if idx.Collection != OrgsCollection || !idx.Unique {
			continue
		}
		is.Equal(idx.IdxFields, []string{"name_key"})
		found = true
	}
	is.True(found)
}
