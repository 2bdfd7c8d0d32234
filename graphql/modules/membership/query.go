package membership

import (
	"github.com/graphql-go/graphql"
)

// GetQueryFields returns the membership queries to be mounted in the root schema.
func GetQueryFields(svc MembershipService) graphql.Fields {
	return graphql.Fields{
		"membershipState": &graphql.Field{
			Type: PayloadType,
			Args: graphql.FieldConfigArgument{
				"organizationId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"userId":         &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				orgID := p.Args["organizationId"].(string)
				userID := p.Args["userId"].(string)
				return payloadOf(svc.State(p.Context, orgID, userID)), nil
			},
		},
		"applications": &graphql.Field{
			Type: PayloadType,
			Args: graphql.FieldConfigArgument{
				"organizationId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				actor, err := actorOf(p)
				if err != nil {
					return nil, err
				}
				return payloadOf(svc.Applications(p.Context, actor, stringArg(p, "organizationId"))), nil
			},
		},
	}
}
