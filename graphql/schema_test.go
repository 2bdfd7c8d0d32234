package graphql

import (
	"context"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/matryer/is"
	"github.com/paycheck/paycheck-backend/database"
	"github.com/paycheck/paycheck-backend/internal/workflow"
	"github.com/paycheck/paycheck-backend/model"
)

func newSchema(t *testing.T) graphql.Schema {
	t.Helper()
	ctx := context.Background()
	store := database.NewMemoryStore()

	if _, err := store.SaveOrganization(ctx, &model.Organization{
		Key:    "acme",
		Name:   "Acme",
		Owners: []model.Owner{{Username: "olive", OwnerID: "u-olive"}},
	}); err != nil {
		t.Fatal(err)
	}
	for _, u := range []*model.User{{Key: "u-olive", Username: "olive"}, {Key: "u-alice", Username: "alice"}} {
		if _, err := store.SaveUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}

	schema, err := CreateSchema(workflow.New(store))
	if err != nil {
		t.Fatal(err)
	}
	return schema
}

func run(ctx context.Context, schema graphql.Schema, query string) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:        schema,
		RequestString: query,
		Context:       ctx,
	})
}

func field(res *graphql.Result, name string) map[string]interface{} {
	data, _ := res.Data.(map[string]interface{})
	out, _ := data[name].(map[string]interface{})
	return out
}

func TestMembershipMutations(t *testing.T) {
	is := is.New(t)
	schema := newSchema(t)
	alice := workflow.WithActor(context.Background(), workflow.Actor{UserID: "u-alice", Username: "alice"})
	olive := workflow.WithActor(context.Background(), workflow.Actor{UserID: "u-olive", Username: "olive"})

	res := run(alice, schema, `mutation { apply(organizationId: "acme", comment: "hi") { status redirect_url } }`)
	is.Equal(len(res.Errors), 0)
	is.Equal(field(res, "apply")["status"], "APPLIED")
	is.Equal(field(res, "apply")["redirect_url"], "/organizations/acme")

	res = run(alice, schema, `{ membershipState(organizationId: "acme", userId: "u-alice") { status state } }`)
	is.Equal(len(res.Errors), 0)
	is.Equal(field(res, "membershipState")["state"], "PENDING")

	res = run(alice, schema, `mutation { approve(organizationId: "acme", userId: "u-alice") { status } }`)
	is.Equal(field(res, "approve")["status"], "FORBIDDEN")

	res = run(olive, schema, `mutation { approve(organizationId: "acme", userId: "u-alice") { status redirect_url } }`)
	is.Equal(len(res.Errors), 0)
	is.Equal(field(res, "approve")["status"], "APPROVED")
	is.Equal(field(res, "approve")["redirect_url"], "/organizations/acme/employees")

	res = run(olive, schema, `mutation { decline(organizationId: "acme", userId: "u-alice") { status } }`)
	is.Equal(field(res, "decline")["status"], "DECLINED")

	res = run(olive, schema, `{ membershipState(organizationId: "acme", userId: "u-alice") { state } }`)
	is.Equal(field(res, "membershipState")["state"], "MEMBER")
}

func TestApplicationsQuery(t *testing.T) {
	is := is.New(t)
	schema := newSchema(t)
	alice := workflow.WithActor(context.Background(), workflow.Actor{UserID: "u-alice", Username: "alice"})
	olive := workflow.WithActor(context.Background(), workflow.Actor{UserID: "u-olive", Username: "olive"})

	run(alice, schema, `mutation { apply(organizationId: "acme", comment: "hi") { status } }`)

	res := run(olive, schema, `{ applications(organizationId: "acme") { status applications { username user_id comment } } }`)
	is.Equal(len(res.Errors), 0)
	is.Equal(field(res, "applications")["status"], "OK")
	apps, _ := field(res, "applications")["applications"].([]interface{})
	is.Equal(len(apps), 1)
	is.Equal(apps[0], map[string]interface{}{"username": "alice", "user_id": "u-alice", "comment": "hi"})

	res = run(alice, schema, `{ applications(organizationId: "acme") { status applications { username } } }`)
	is.Equal(field(res, "applications")["status"], "FORBIDDEN")

	res = run(context.Background(), schema, `{ applications(organizationId: "acme") { status } }`)
	is.Equal(len(res.Errors), 1)
}

func TestCreateOrganizationMutation(t *testing.T) {
	is := is.New(t)
	schema := newSchema(t)
	alice := workflow.WithActor(context.Background(), workflow.Actor{UserID: "u-alice", Username: "alice"})

	res := run(alice, schema, `mutation { createOrganization(name: "Initech") { status organization_id } }`)
	is.Equal(len(res.Errors), 0)
	is.Equal(field(res, "createOrganization")["status"], "CREATED")
	is.True(field(res, "createOrganization")["organization_id"] != "")
}

func TestMutationsRequireActor(t *testing.T) {
	is := is.New(t)
	schema := newSchema(t)

	res := run(context.Background(), schema, `mutation { apply(organizationId: "acme") { status } }`)
	is.Equal(len(res.Errors), 1)
	is.Equal(res.Errors[0].Message, "authentication required")

	res = run(context.Background(), schema, `{ membershipState(organizationId: "initech", userId: "u-alice") { status } }`)
	is.Equal(len(res.Errors), 0)
	is.Equal(field(res, "membershipState")["status"], "NOT_FOUND")
}
