package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"catalog-query-api/pkg/client"
	"catalog-query-api/pkg/dumpfile"
	"catalog-query-api/pkg/metadata"
	"catalog-query-api/pkg/query"
)

// dumpCmd writes the server's content to a dump file, one chunk per entity
// type in restore order.
func dumpCmd() *cobra.Command {
	var (
		output   string
		types    []string
		pageSize int
	)

	c := &cobra.Command{
		Use:   "dump",
		Short: "Write catalog content to a YAML dump file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, cfg, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer cl.Logout(cmd.Context())

			var w io.Writer = os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			apiVersion, err := cl.Version(cmd.Context())
			if err != nil {
				return err
			}
			writer, err := dumpfile.NewWriter(w, dumpfile.Head{
				Date:       time.Now().UTC().Format(time.RFC1123Z),
				Service:    cfg.URL,
				APIVersion: apiVersion,
				Generator:  "catq " + version,
			})
			if err != nil {
				return err
			}

			provider := client.NewSchemaProvider(cmd.Context(), cl)
			for _, name := range dumpTypes(types) {
				if err := dumpEntityType(cmd.Context(), cl, provider, writer, name, pageSize); err != nil {
					return err
				}
			}
			return writer.Close()
		},
	}

	c.Flags().StringVarP(&output, "output", "o", "", "write the dump to this file instead of stdout")
	c.Flags().StringSliceVarP(&types, "types", "t", nil,
		"dump only these entity types (lowercase dump names)")
	c.Flags().IntVar(&pageSize, "page-size", 1000, "rows fetched per request")
	return c
}

// dumpTypes filters the restore order down to the requested types, keeping
// the restore order itself.
func dumpTypes(requested []string) []string {
	if len(requested) == 0 {
		return dumpfile.RestoreOrder
	}
	want := make(map[string]struct{}, len(requested))
	for _, t := range requested {
		want[t] = struct{}{}
	}
	var out []string
	for _, t := range dumpfile.RestoreOrder {
		if _, ok := want[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

func dumpEntityType(ctx context.Context, cl *client.Client, provider metadata.Provider,
	writer *dumpfile.Writer, name string, pageSize int) error {

	// Dump names are lowercase versions of the entity type names.
	entityType := strings.ToUpper(name[:1]) + name[1:]
	et, err := provider.EntityType(entityType)
	if err != nil {
		if metadata.IsNotFound(err) {
			log.Printf("[DUMP] server has no %s, skipping", entityType)
			return nil
		}
		return err
	}

	q, err := query.New(provider, entityType, query.WithNaturalOrder())
	if err != nil {
		return err
	}

	total := 0
	for skip := 0; ; skip += pageSize {
		l := query.LimitRange(skip, pageSize)
		if err := q.SetLimit(&l); err != nil {
			return err
		}
		rows, err := cl.SearchQuery(ctx, q)
		if err != nil {
			return fmt.Errorf("dump %s: %w", entityType, err)
		}
		if len(rows) == 0 {
			break
		}

		chunk := dumpfile.Chunk{name: make(map[string]dumpfile.Object, len(rows))}
		for _, row := range rows {
			obj, key := dumpObject(et, row)
			if obj == nil {
				return fmt.Errorf("dump %s: unexpected row shape %T", entityType, row)
			}
			chunk[name][key] = obj
		}
		if err := writer.WriteChunk(chunk); err != nil {
			return err
		}
		total += len(rows)
		if len(rows) < pageSize {
			break
		}
	}
	if total > 0 {
		log.Printf("[DUMP] %s: %d objects", entityType, total)
	}
	return nil
}

// dumpObject unwraps a result row and keys it. The id makes a stable unique
// key within a dump; the id attribute itself is dropped from the object
// since it is not portable across servers.
func dumpObject(et *metadata.EntityType, row any) (dumpfile.Object, string) {
	m, ok := row.(map[string]any)
	if !ok {
		return nil, ""
	}
	if inner, ok := m[et.Name].(map[string]any); ok && len(m) == 1 {
		m = inner
	}
	key := fmt.Sprintf("%s_%v", et.Name, m["id"])
	obj := make(dumpfile.Object, len(m))
	for k, v := range m {
		if k == "id" {
			continue
		}
		obj[k] = v
	}
	return obj, key
}
