package membership

import (
	"errors"

	"github.com/graphql-go/graphql"
	"github.com/paycheck/paycheck-backend/internal/workflow"
)

var errUnauthenticated = errors.New("authentication required")

func actorOf(p graphql.ResolveParams) (workflow.Actor, error) {
	actor, ok := workflow.ActorFromContext(p.Context)
	if !ok {
		return workflow.Actor{}, errUnauthenticated
	}
	return actor, nil
}

func stringArg(p graphql.ResolveParams, name string) string {
	s, _ := p.Args[name].(string)
	return s
}

// GetMutationFields returns the workflow mutations. All of them act on behalf
// of the authenticated caller.
func GetMutationFields(svc MembershipService) graphql.Fields {
	applicationArgs := graphql.FieldConfigArgument{
		"organizationId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
		"userId":         &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
	}

	return graphql.Fields{
		"apply": &graphql.Field{
			Type: PayloadType,
			Args: graphql.FieldConfigArgument{
				"organizationId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"comment":        &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				actor, err := actorOf(p)
				if err != nil {
					return nil, err
				}
				return payloadOf(svc.Apply(p.Context, stringArg(p, "organizationId"), actor, stringArg(p, "comment"))), nil
			},
		},
		"approve": &graphql.Field{
			Type: PayloadType,
			Args: applicationArgs,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				actor, err := actorOf(p)
				if err != nil {
					return nil, err
				}
				return payloadOf(svc.Approve(p.Context, actor, stringArg(p, "organizationId"), stringArg(p, "userId"))), nil
			},
		},
		"decline": &graphql.Field{
			Type: PayloadType,
			Args: applicationArgs,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				actor, err := actorOf(p)
				if err != nil {
					return nil, err
				}
				return payloadOf(svc.Decline(p.Context, actor, stringArg(p, "organizationId"), stringArg(p, "userId"))), nil
			},
		},
		"createOrganization": &graphql.Field{
			Type: PayloadType,
			Args: graphql.FieldConfigArgument{
				"name":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"description": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				actor, err := actorOf(p)
				if err != nil {
					return nil, err
				}
				input := workflow.NewOrganizationInput{
					Name:        stringArg(p, "name"),
					Description: stringArg(p, "description"),
				}
				return payloadOf(svc.CreateOrganization(p.Context, actor, input)), nil
			},
		},
	}
}
