package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"catalog-query-api/pkg/client"
	"catalog-query-api/pkg/metadata"
	"catalog-query-api/pkg/query"
)

// schemaCmd inspects entity metadata: the embedded schema by default, the
// server's reflection with --remote.
func schemaCmd() *cobra.Command {
	var remote bool

	c := &cobra.Command{
		Use:   "schema [entity type]",
		Short: "List entity types or show one type's attributes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var provider metadata.Provider = metadata.DefaultSchema()
			names := metadata.DefaultSchema().EntityNames()

			if remote {
				cl, _, err := connect(cmd.Context())
				if err != nil {
					return err
				}
				defer cl.Logout(cmd.Context())
				names, err = cl.EntityNames(cmd.Context())
				if err != nil {
					return err
				}
				provider = client.NewSchemaProvider(cmd.Context(), cl)
			}

			if len(args) == 0 {
				for _, n := range names {
					fmt.Println(n)
				}
				return nil
			}
			return printEntityType(provider, args[0])
		},
	}
	c.Flags().BoolVar(&remote, "remote", false, "reflect the schema from the server")
	return c
}

func printEntityType(provider metadata.Provider, name string) error {
	et, err := provider.EntityType(name)
	if err != nil {
		return err
	}

	fmt.Println(et.Name)
	fmt.Printf("  constraint: %s\n", strings.Join(et.Constraint, ", "))
	order, err := query.NewResolver(provider).NaturalOrder(et)
	if err == nil && len(order) > 0 {
		fmt.Printf("  natural order: %s\n", strings.Join(order, ", "))
	}
	for _, attrName := range et.AttrNames() {
		attr, _ := et.Attr(attrName)
		line := "  " + attr.Name
		switch attr.Kind {
		case metadata.KindOne:
			line += " -> " + attr.Type
		case metadata.KindMany:
			line += " ->> " + attr.Type
		}
		if attr.NotNullable {
			line += " (not null)"
		}
		fmt.Println(line)
	}
	return nil
}
