package main

import (
	"fmt"

	"docvault/internal/dv"

	"github.com/spf13/cobra"
)

// container command
var containerCmd = &cobra.Command{
	Use:   "container",
	Short: "Manage containers",
}

var containerCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		summary, _ := cmd.Flags().GetString("summary")
		readonly, _ := cmd.Flags().GetBool("readonly")

		a, err := newApp(cmd.Context(), "container create")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.CreateContainer(cmd.Context(), owner, args[0], summary, readonly)
		if err != nil {
			return err
		}
		fmt.Printf("Created container %s (%s)\n", c.Name, c.ID)
		return nil
	},
}

var containerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List containers",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")

		a, err := newApp(cmd.Context(), "container list")
		if err != nil {
			return err
		}
		defer a.Close()

		cs, err := a.ListContainers(cmd.Context(), owner)
		if err != nil {
			return err
		}
		if len(cs) == 0 {
			fmt.Println("No containers.")
			return nil
		}
		for _, c := range cs {
			flag := "  "
			if c.Readonly {
				flag = "ro"
			}
			fmt.Printf("%s  %-24s  %-12s  %s\n", flag, c.Name, c.Owner, c.Summary)
		}
		return nil
	},
}

var containerUpdateCmd = &cobra.Command{
	Use:   "update NAME",
	Short: "Rename a container or change its metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var upd dv.ContainerUpdate
		flags := cmd.Flags()
		if flags.Changed("name") {
			name, _ := flags.GetString("name")
			upd.Name = &name
		}
		if flags.Changed("summary") {
			summary, _ := flags.GetString("summary")
			upd.Summary = &summary
		}
		if flags.Changed("readonly") {
			readonly, _ := flags.GetBool("readonly")
			upd.Readonly = &readonly
		}

		a, err := newApp(cmd.Context(), "container update")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.UpdateContainer(cmd.Context(), args[0], upd)
		if err != nil {
			return err
		}
		fmt.Printf("Updated container %s\n", c.Name)
		return nil
	},
}

var containerDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete an empty container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "container delete")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteContainer(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted container %s\n", args[0])
		return nil
	},
}

func init() {
	containerCmd.AddCommand(containerCreateCmd)
	containerCreateCmd.Flags().String("owner", currentUser(), "Owner of the container")
	containerCreateCmd.Flags().String("summary", "", "Short description")
	containerCreateCmd.Flags().Bool("readonly", false, "Refuse changes to items")

	containerCmd.AddCommand(containerListCmd)
	containerListCmd.Flags().String("owner", "", "Only list containers of this owner")

	containerCmd.AddCommand(containerUpdateCmd)
	containerUpdateCmd.Flags().String("name", "", "New container name")
	containerUpdateCmd.Flags().String("summary", "", "New description")
	containerUpdateCmd.Flags().Bool("readonly", false, "Set or clear the readonly flag (--readonly=false)")

	containerCmd.AddCommand(containerDeleteCmd)
}
