// Package graphql assembles the GraphQL schema from the feature modules.
package graphql

import (
	"github.com/graphql-go/graphql"
	"github.com/paycheck/paycheck-backend/graphql/modules/membership"
)

// CreateSchema builds the root query and mutation types.
func CreateSchema(svc membership.MembershipService) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name:   "Query",
		Fields: membership.GetQueryFields(svc),
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name:   "Mutation",
		Fields: membership.GetMutationFields(svc),
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    query,
		Mutation: mutation,
	})
}
