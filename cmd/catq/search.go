package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"catalog-query-api/internal/export"
	"catalog-query-api/pkg/client"
	"catalog-query-api/pkg/metadata"
	"catalog-query-api/pkg/query"
)

// searchCmd builds a query from flags and runs it. With --dry-run the query
// is only rendered, against the embedded schema, and printed.
func searchCmd() *cobra.Command {
	var (
		conditions   []string
		order        []string
		naturalOrder bool
		includes     []string
		limit        string
		dryRun       bool
		format       string
		output       string
	)

	c := &cobra.Command{
		Use:   "search <entity type>",
		Short: "Search the catalog",
		Long: `Build a search query from the given conditions, ordering and includes,
and run it against the server. Conditions take the form "path operator",
for example:

  catq search Datafile \
      --condition "dataset.name = 'ds-2026-01'" \
      --condition "name like 'img-%'" \
      --order dataset --include datafileFormat`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var provider metadata.Provider = metadata.DefaultSchema()
			var cl *client.Client
			if !dryRun {
				var err error
				cl, _, err = connect(cmd.Context())
				if err != nil {
					return err
				}
				defer cl.Logout(cmd.Context())
				provider = client.NewSchemaProvider(cmd.Context(), cl)
			}

			q, err := buildQuery(provider, args[0], conditions, order, naturalOrder, includes, limit)
			if err != nil {
				return err
			}
			for _, w := range q.Warnings() {
				log.Printf("[SEARCH] warning: %s", w)
			}

			if dryRun {
				fmt.Println(q.Render())
				return nil
			}

			rows, err := cl.SearchQuery(cmd.Context(), q)
			if err != nil {
				return err
			}
			return writeResults(q.EntityType(), rows, format, output)
		},
	}

	c.Flags().StringArrayVarP(&conditions, "condition", "c", nil,
		`condition on an attribute path, "path operator" form`)
	c.Flags().StringSliceVarP(&order, "order", "o", nil, "order by these attribute paths")
	c.Flags().BoolVar(&naturalOrder, "natural-order", false, "order by the entity type's natural order")
	c.Flags().StringSliceVarP(&includes, "include", "i", nil, "eagerly load these related objects")
	c.Flags().StringVar(&limit, "limit", "", `result window as "skip,count"`)
	c.Flags().BoolVar(&dryRun, "dry-run", false, "print the rendered query instead of running it")
	c.Flags().StringVarP(&format, "format", "f", "json", "output format: json, csv or xlsx")
	c.Flags().StringVar(&output, "output", "", "write results to this file instead of stdout")
	return c
}

func buildQuery(provider metadata.Provider, entity string, conditions, order []string,
	naturalOrder bool, includes []string, limit string) (*query.Query, error) {

	var opts []query.Option
	for _, cond := range conditions {
		path, expr, ok := strings.Cut(strings.TrimSpace(cond), " ")
		if !ok {
			return nil, fmt.Errorf("condition %q needs the form \"path operator\"", cond)
		}
		p, e := path, strings.TrimSpace(expr)
		opts = append(opts, func(q *query.Query) error { return q.AddCondition(p, e) })
	}
	if naturalOrder && len(order) > 0 {
		return nil, fmt.Errorf("--order and --natural-order are mutually exclusive")
	}
	if naturalOrder {
		opts = append(opts, query.WithNaturalOrder())
	}
	if len(order) > 0 {
		opts = append(opts, query.WithOrder(order...))
	}
	if len(includes) > 0 {
		opts = append(opts, query.WithIncludes(includes...))
	}
	if limit != "" {
		skip, count, ok := strings.Cut(limit, ",")
		if !ok {
			return nil, fmt.Errorf("limit %q needs the form \"skip,count\"", limit)
		}
		s, err := strconv.Atoi(strings.TrimSpace(skip))
		if err != nil {
			return nil, fmt.Errorf("limit skip %q: %w", skip, err)
		}
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil {
			return nil, fmt.Errorf("limit count %q: %w", count, err)
		}
		opts = append(opts, query.WithLimit(s, n))
	}
	return query.New(provider, entity, opts...)
}

func writeResults(et *metadata.EntityType, rows []any, format, output string) error {
	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	fm, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	table, err := export.BuildTable(et, rows)
	if err != nil {
		return err
	}
	return table.Write(w, fm, et.Name)
}
