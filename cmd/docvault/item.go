package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"docvault/internal/dv"

	"github.com/spf13/cobra"
)

// put command
var putCmd = &cobra.Command{
	Use:   "put CONTAINER PATH",
	Short: "Upload a file, recording the previous version as a revision",
	Long:  "Upload a file into a container. PATH - reads from stdin and requires --as.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		as, _ := cmd.Flags().GetString("as")
		creator, _ := cmd.Flags().GetString("creator")
		var tags []string
		if cmd.Flags().Changed("tag") {
			tags, _ = cmd.Flags().GetStringSlice("tag")
		}

		a, err := newApp(cmd.Context(), "put")
		if err != nil {
			return err
		}
		defer a.Close()

		var res *dv.PutResult
		if args[1] == "-" {
			if as == "" {
				return fmt.Errorf("%w: --as is required when reading stdin", dv.ErrValidation)
			}
			res, err = a.Put(cmd.Context(), dv.PutParams{
				Container: args[0],
				Filename:  as,
				Content:   os.Stdin,
				Creator:   creator,
				Tags:      tags,
			})
		} else {
			res, err = a.PutFile(cmd.Context(), args[0], args[1], as, creator, tags)
		}
		if err != nil {
			return err
		}

		switch {
		case res.Created:
			fmt.Printf("Created %s/%s (%d bytes)\n", args[0], res.Item.Filename, res.Item.Filesize)
		case res.Unchanged:
			fmt.Printf("Unchanged %s/%s\n", args[0], res.Item.Filename)
		default:
			fmt.Printf("Replaced %s/%s, previous version saved as revision %d\n",
				args[0], res.Item.Filename, res.Revision.RevisionNumber)
		}
		return nil
	},
}

// get command
var getCmd = &cobra.Command{
	Use:   "get CONTAINER FILENAME",
	Short: "Write an item, one of its revisions or its thumbnail",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		revision, _ := cmd.Flags().GetInt64("revision")
		output, _ := cmd.Flags().GetString("output")
		thumb, _ := cmd.Flags().GetBool("thumbnail")

		a, err := newApp(cmd.Context(), "get")
		if err != nil {
			return err
		}
		defer a.Close()

		var w io.Writer = os.Stdout
		if output != "-" {
			f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
			if err != nil {
				return fmt.Errorf("creating output: %w", err)
			}
			defer func() {
				if cerr := f.Close(); err == nil && cerr != nil {
					err = cerr
				}
				if err != nil {
					os.Remove(output)
				}
			}()
			w = f
		}

		if thumb {
			return a.ExportThumbnail(cmd.Context(), args[0], args[1], w)
		}
		return a.Export(cmd.Context(), args[0], args[1], revision, w)
	},
}

// ls command
var lsCmd = &cobra.Command{
	Use:   "ls CONTAINER",
	Short: "List the items of a container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ls")
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.ListItems(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No items.")
			return nil
		}
		for _, it := range items {
			fmt.Printf("%s  %10d  r%-3d  %-24s  %s\n",
				it.UpdatedAt.Format("2006-01-02 15:04:05"),
				it.Filesize,
				it.LatestRevisionNumber,
				it.Mimetype,
				it.Filename,
			)
		}
		return nil
	},
}

// rm command
var rmCmd = &cobra.Command{
	Use:   "rm CONTAINER FILENAME",
	Short: "Delete an item with its revisions and thumbnail",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "rm")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteItem(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s/%s\n", args[0], args[1])
		return nil
	},
}

// mv command
var mvCmd = &cobra.Command{
	Use:   "mv CONTAINER FILENAME",
	Short: "Rename an item or move it to another container",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, _ := cmd.Flags().GetString("to")
		name, _ := cmd.Flags().GetString("name")
		if to == "" && name == "" {
			return fmt.Errorf("%w: --to or --name is required", dv.ErrValidation)
		}

		a, err := newApp(cmd.Context(), "mv")
		if err != nil {
			return err
		}
		defer a.Close()

		it, err := a.MoveItem(cmd.Context(), dv.MoveParams{
			From:        args[0],
			Filename:    args[1],
			To:          to,
			NewFilename: name,
		})
		if err != nil {
			return err
		}
		dest := to
		if dest == "" {
			dest = args[0]
		}
		fmt.Printf("Moved %s/%s to %s/%s\n", args[0], args[1], dest, it.Filename)
		return nil
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log CONTAINER FILENAME",
	Short: "View item history",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "log")
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.Describe(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		it := d.Item
		fmt.Printf("%s/%s  %s  %d bytes  %s\n", d.Container.Name, it.Filename, it.Mimetype, it.Filesize, it.Checksum[:12])
		if it.Summary != "" {
			fmt.Printf("  %s\n", it.Summary)
		}
		if len(d.Tags) > 0 {
			fmt.Printf("  tags: %s\n", strings.Join(d.Tags, ", "))
		}
		if d.Thumbnail != nil {
			fmt.Printf("  thumbnail: %s (%d bytes)\n", d.Thumbnail.Filename(), d.Thumbnail.Filesize)
		}
		fmt.Printf("head  %s  [current]\n", it.UpdatedAt.Format("2006-01-02 15:04:05"))
		for _, r := range d.Revisions {
			fmt.Printf("r%-4d %s  %d  %s  %s\n",
				r.RevisionNumber,
				r.CreatedAt.Format("2006-01-02 15:04:05"),
				r.Filesize,
				r.Checksum[:12],
				r.Creator,
			)
		}
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore CONTAINER FILENAME REVISION",
	Short: "Make a previous revision the current version",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		creator, _ := cmd.Flags().GetString("creator")
		number, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil || number < 1 {
			return fmt.Errorf("%w: invalid revision %q", dv.ErrValidation, args[2])
		}

		a, err := newApp(cmd.Context(), "restore")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.RestoreRevision(cmd.Context(), args[0], args[1], number, creator)
		if err != nil {
			return err
		}
		if res.Unchanged {
			fmt.Printf("Revision %d already matches the current version\n", number)
			return nil
		}
		fmt.Printf("Restored revision %d of %s/%s\n", number, args[0], res.Item.Filename)
		return nil
	},
}

// tag command
var tagCmd = &cobra.Command{
	Use:   "tag CONTAINER FILENAME [TAG...]",
	Short: "Show or replace the tags of an item",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		clearTags, _ := cmd.Flags().GetBool("clear")
		summary, _ := cmd.Flags().GetString("summary")

		a, err := newApp(cmd.Context(), "tag")
		if err != nil {
			return err
		}
		defer a.Close()

		var upd dv.ItemUpdate
		if len(args) > 2 || clearTags {
			upd.Tags = append([]string{}, args[2:]...)
		}
		if cmd.Flags().Changed("summary") {
			upd.Summary = &summary
		}
		if upd.Tags != nil || upd.Summary != nil {
			if _, err := a.UpdateItem(cmd.Context(), args[0], args[1], upd); err != nil {
				return err
			}
		}

		tags, err := a.Tags(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			fmt.Println("No tags.")
			return nil
		}
		fmt.Println(strings.Join(tags, " "))
		return nil
	},
}

func init() {
	putCmd.Flags().String("as", "", "Filename in the container (default: base name of PATH)")
	putCmd.Flags().String("creator", currentUser(), "Recorded as the creator of the revision")
	putCmd.Flags().StringSlice("tag", nil, "Replace the item's tags")

	getCmd.Flags().Int64("revision", 0, "Revision number to read instead of the head")
	getCmd.Flags().StringP("output", "o", "-", "Output file, - for stdout")
	getCmd.Flags().Bool("thumbnail", false, "Read the thumbnail instead of the item")

	mvCmd.Flags().String("to", "", "Destination container")
	mvCmd.Flags().String("name", "", "New filename")

	restoreCmd.Flags().String("creator", currentUser(), "Recorded as the creator of the revision")

	tagCmd.Flags().Bool("clear", false, "Remove all tags")
	tagCmd.Flags().String("summary", "", "Set the item summary")
}
