package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"wildlifecore/internal/blob"
	"wildlifecore/internal/catalog"
	"wildlifecore/pkg/domain"
)

func taxonomyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "taxonomy",
		Short: "Print every category with its subcategories and resolved fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tax, err := a.svc.Taxonomy(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, tax)
		},
	}
}

func categoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "category", Short: "Manage categories"}

	create := &cobra.Command{
		Use:  "create NAME",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent, err := optionalID(cmd, "parent")
			if err != nil {
				return err
			}
			c, err := a.svc.CreateCategory(cmd.Context(), args[0], parent)
			if err != nil {
				return err
			}
			return printJSON(cmd, c)
		},
	}
	create.Flags().Int64("parent", 0, "parent category id")

	list := &cobra.Command{
		Use:  "list",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cats, err := a.svc.ListCategories(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, cats)
		},
	}

	move := &cobra.Command{
		Use:   "move ID",
		Short: "Reparent a category; omit --parent to make it a root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			parent, err := optionalID(cmd, "parent")
			if err != nil {
				return err
			}
			c, err := a.svc.MoveCategory(cmd.Context(), id, parent)
			if err != nil {
				return err
			}
			return printJSON(cmd, c)
		},
	}
	move.Flags().Int64("parent", 0, "new parent category id")

	var mode string
	remove := &cobra.Command{
		Use:  "delete ID",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.svc.DeleteCategory(cmd.Context(), id, catalog.DeleteMode(mode))
		},
	}
	remove.Flags().StringVar(&mode, "mode", string(catalog.DeleteReassign), "reassign or cascade")

	get := &cobra.Command{
		Use:  "get ID",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := a.svc.GetCategory(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, c)
		},
	}

	ancestors := &cobra.Command{
		Use:   "ancestors ID",
		Short: "Print the category id followed by its ancestors up to the root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			chain, err := a.svc.AncestorChain(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, chain)
		},
	}

	descendants := &cobra.Command{
		Use:   "descendants ID...",
		Short: "Print the given categories and all of their subcategories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			closure, err := a.svc.DescendantClosure(cmd.Context(), ids)
			if err != nil {
				return err
			}
			return printJSON(cmd, closure)
		},
	}

	var idsOnly bool
	fields := &cobra.Command{
		Use:   "fields ID",
		Short: "Print the fields a category defines or inherits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if idsOnly {
				ids, err := a.svc.ResolveFieldIDs(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printJSON(cmd, ids)
			}
			resolved, err := a.svc.ResolveFields(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, resolved)
		},
	}
	fields.Flags().BoolVar(&idsOnly, "ids", false, "print field ids only")

	cmd.AddCommand(create, get, list, move, remove, ancestors, descendants, fields)
	return cmd
}

func fieldCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "field", Short: "Manage field definitions"}

	var (
		fieldType  string
		options    []string
		categories []int64
	)
	create := &cobra.Command{
		Use:  "create NAME",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.svc.CreateField(cmd.Context(), catalog.FieldSpec{
				Name:        args[0],
				Type:        domain.FieldType(fieldType),
				Options:     options,
				CategoryIDs: categories,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, f)
		},
	}
	create.Flags().StringVar(&fieldType, "type", "", "TEXT, NUMBER, ENUM, IMAGE or MONTH_RANGE")
	create.Flags().StringSliceVar(&options, "option", nil, "ENUM option (repeatable)")
	create.Flags().Int64SliceVar(&categories, "category", nil, "category to attach to (repeatable)")

	var attach []int64
	edit := &cobra.Command{
		Use:  "edit ID",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			edit := catalog.FieldEdit{AddCategoryIDs: attach}
			if cmd.Flags().Changed("name") {
				name, _ := cmd.Flags().GetString("name")
				edit.NewName = &name
			}
			f, err := a.svc.EditField(cmd.Context(), id, edit)
			if err != nil {
				return err
			}
			return printJSON(cmd, f)
		},
	}
	edit.Flags().String("name", "", "new field name")
	edit.Flags().Int64SliceVar(&attach, "attach", nil, "category to attach to (repeatable)")

	list := &cobra.Command{
		Use:  "list",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fields, err := a.svc.ListFields(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, fields)
		},
	}

	remove := &cobra.Command{
		Use:  "delete ID",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.svc.DeleteField(cmd.Context(), id)
		},
	}

	detach := &cobra.Command{
		Use:  "detach ID CATEGORY",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			categoryID, err := parseID(args[1])
			if err != nil {
				return err
			}
			return a.svc.DetachField(cmd.Context(), id, categoryID)
		},
	}

	get := &cobra.Command{
		Use:  "get ID",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			f, err := a.svc.GetField(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, f)
		},
	}

	cmd.AddCommand(create, edit, get, list, remove, detach)
	return cmd
}

func recordCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "record", Short: "Manage catalog records"}

	var (
		name, scientific string
		categoryID       int64
		values, files    map[string]string
	)
	create := &cobra.Command{
		Use:  "create",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uploads, err := readUploads(files)
			if err != nil {
				return err
			}
			rec, err := a.svc.CreateRecord(cmd.Context(), catalog.RecordInput{
				Name:           name,
				ScientificName: scientific,
				CategoryID:     categoryID,
				Values:         values,
				Files:          uploads,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, rec)
		},
	}
	create.Flags().StringVar(&name, "name", "", "common name")
	create.Flags().StringVar(&scientific, "scientific-name", "", "scientific name")
	create.Flags().Int64Var(&categoryID, "category", 0, "category id")
	create.Flags().StringToStringVar(&values, "set", nil, "field=value (repeatable)")
	create.Flags().StringToStringVar(&files, "file", nil, "image field=path (repeatable)")

	var editValues, editFiles map[string]string
	edit := &cobra.Command{
		Use:  "edit ID",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			uploads, err := readUploads(editFiles)
			if err != nil {
				return err
			}
			edit := catalog.RecordEdit{Values: editValues, Files: uploads}
			if cmd.Flags().Changed("name") {
				v, _ := cmd.Flags().GetString("name")
				edit.Name = &v
			}
			if cmd.Flags().Changed("scientific-name") {
				v, _ := cmd.Flags().GetString("scientific-name")
				edit.ScientificName = &v
			}
			if edit.CategoryID, err = optionalID(cmd, "category"); err != nil {
				return err
			}
			rec, err := a.svc.EditRecord(cmd.Context(), id, edit)
			if err != nil {
				return err
			}
			return printJSON(cmd, rec)
		},
	}
	edit.Flags().String("name", "", "new common name")
	edit.Flags().String("scientific-name", "", "new scientific name")
	edit.Flags().Int64("category", 0, "new category id")
	edit.Flags().StringToStringVar(&editValues, "set", nil, "field=value (repeatable)")
	edit.Flags().StringToStringVar(&editFiles, "file", nil, "image field=path (repeatable)")

	get := &cobra.Command{
		Use:  "get ID",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			rec, err := a.svc.GetRecord(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, rec)
		},
	}

	var scope []int64
	list := &cobra.Command{
		Use:  "list",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			recs, err := a.svc.ListRecords(cmd.Context(), scope...)
			if err != nil {
				return err
			}
			return printJSON(cmd, recs)
		},
	}
	list.Flags().Int64SliceVar(&scope, "category", nil, "limit to categories and their subcategories")

	remove := &cobra.Command{
		Use:  "delete ID",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.svc.DeleteRecord(cmd.Context(), id)
		},
	}

	cmd.AddCommand(create, edit, get, list, remove)
	return cmd
}

func imageCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "image", Short: "Manage record gallery images"}

	add := &cobra.Command{
		Use:  "add RECORD PATH",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := parseID(args[0])
			if err != nil {
				return err
			}
			up, err := readUpload(args[1])
			if err != nil {
				return err
			}
			img, err := a.svc.AddImage(cmd.Context(), recordID, up)
			if err != nil {
				return err
			}
			return printJSON(cmd, img)
		},
	}

	thumbnail := &cobra.Command{
		Use:   "thumbnail RECORD",
		Short: "Set the record thumbnail; omit --image to clear it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := parseID(args[0])
			if err != nil {
				return err
			}
			imageID, err := optionalID(cmd, "image")
			if err != nil {
				return err
			}
			rec, err := a.svc.SetThumbnail(cmd.Context(), recordID, imageID)
			if err != nil {
				return err
			}
			return printJSON(cmd, rec)
		},
	}
	thumbnail.Flags().Int64("image", 0, "gallery image id")

	remove := &cobra.Command{
		Use:  "delete ID",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.svc.DeleteImage(cmd.Context(), id)
		},
	}

	list := &cobra.Command{
		Use:  "list RECORD",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := parseID(args[0])
			if err != nil {
				return err
			}
			imgs, err := a.svc.ListImages(cmd.Context(), recordID)
			if err != nil {
				return err
			}
			return printJSON(cmd, imgs)
		},
	}

	var (
		out    string
		signed bool
		expiry time.Duration
	)
	get := &cobra.Command{
		Use:   "get REF",
		Short: "Download an image blob with --out or print a signed URL with --url",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if signed {
				url, err := a.svc.ImageURL(cmd.Context(), args[0], expiry)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), url)
				return err
			}
			if out == "" {
				return errors.New("one of --out or --url is required")
			}
			info, err := downloadBlob(cmd, a.svc, args[0], out)
			if err != nil {
				return err
			}
			return printJSON(cmd, info)
		},
	}
	get.Flags().StringVar(&out, "out", "", "file to write the image to")
	get.Flags().BoolVar(&signed, "url", false, "print a signed download URL instead")
	get.Flags().DurationVar(&expiry, "expiry", catalog.DefaultImageURLExpiry, "signed URL lifetime")
	get.MarkFlagsMutuallyExclusive("out", "url")

	var purge bool
	orphans := &cobra.Command{
		Use:   "orphans",
		Short: "List image blobs no record references; --purge removes them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if purge {
				keys, err := a.svc.PurgeOrphanedBlobs(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, keys)
			}
			infos, err := a.svc.OrphanedBlobs(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, infos)
		},
	}
	orphans.Flags().BoolVar(&purge, "purge", false, "delete the orphaned blobs")

	cmd.AddCommand(add, list, get, thumbnail, remove, orphans)
	return cmd
}

func searchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "search", Short: "Typed record searches"}

	number := &cobra.Command{
		Use:  "number FIELD",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fieldID, err := parseID(args[0])
			if err != nil {
				return err
			}
			q := catalog.NumberQuery{FieldID: fieldID}
			for flag, dst := range map[string]**string{"exact": &q.Exact, "min": &q.Min, "max": &q.Max} {
				if cmd.Flags().Changed(flag) {
					v, _ := cmd.Flags().GetString(flag)
					*dst = &v
				}
			}
			return printRecords(cmd, func() ([]domain.Record, error) { return a.svc.SearchNumber(cmd.Context(), q) })
		},
	}
	number.Flags().String("exact", "", "exact value")
	number.Flags().String("min", "", "exclusive lower bound")
	number.Flags().String("max", "", "exclusive upper bound")

	var textScope []int64
	text := &cobra.Command{
		Use:  "text FIELD QUERY",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fieldID, err := parseID(args[0])
			if err != nil {
				return err
			}
			q := catalog.TextQuery{FieldID: fieldID, Query: args[1], CategoryIDs: textScope}
			return printRecords(cmd, func() ([]domain.Record, error) { return a.svc.SearchText(cmd.Context(), q) })
		},
	}
	text.Flags().Int64SliceVar(&textScope, "category", nil, "limit to categories and their subcategories")

	var nameScope []int64
	name := &cobra.Command{
		Use:  "name QUERY",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := catalog.NameQuery{Query: args[0], CategoryIDs: nameScope}
			return printRecords(cmd, func() ([]domain.Record, error) { return a.svc.SearchNames(cmd.Context(), q) })
		},
	}
	name.Flags().Int64SliceVar(&nameScope, "category", nil, "limit to categories and their subcategories")

	month := &cobra.Command{
		Use:   "month FIELD MONTH",
		Short: "Records whose month range contains MONTH (1-12 or a month name)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fieldID, err := parseID(args[0])
			if err != nil {
				return err
			}
			m, err := catalog.ParseMonth(args[1])
			if err != nil {
				return err
			}
			q := catalog.MonthQuery{FieldID: fieldID, Month: m}
			return printRecords(cmd, func() ([]domain.Record, error) { return a.svc.SearchMonth(cmd.Context(), q) })
		},
	}

	cmd.AddCommand(number, text, name, month)
	return cmd
}

func printRecords(cmd *cobra.Command, search func() ([]domain.Record, error)) error {
	recs, err := search()
	if err != nil {
		return err
	}
	return printJSON(cmd, recs)
}

// downloadBlob streams ref into path. A partial file is removed on failure.
func downloadBlob(cmd *cobra.Command, svc *catalog.Service, ref, path string) (blob.Info, error) {
	info, rc, err := svc.OpenBlob(cmd.Context(), ref)
	if err != nil {
		return blob.Info{}, err
	}
	defer func() { _ = rc.Close() }()

	path = filepath.Clean(path)
	f, err := os.Create(path)
	if err != nil {
		return blob.Info{}, fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return blob.Info{}, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return blob.Info{}, fmt.Errorf("write %s: %w", path, err)
	}
	return info, nil
}

func readUploads(paths map[string]string) (map[string]catalog.Upload, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	out := make(map[string]catalog.Upload, len(paths))
	for key, path := range paths {
		up, err := readUpload(path)
		if err != nil {
			return nil, err
		}
		out[key] = up
	}
	return out, nil
}

func readUpload(path string) (catalog.Upload, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return catalog.Upload{}, fmt.Errorf("read %s: %w", path, err)
	}
	return catalog.Upload{Filename: strings.TrimSpace(filepath.Base(path)), Data: data}, nil
}
