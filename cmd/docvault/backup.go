package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage encrypted catalog backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Back up the catalog to the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "backup create")
		if err != nil {
			return err
		}
		defer a.Close()

		obj, err := a.CreateBackup(cmd.Context())
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Printf("Created %s (%d bytes)\n", obj.Name, obj.Size)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog backups, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "backup list")
		if err != nil {
			return err
		}
		defer a.Close()

		objs, err := a.ListBackups(cmd.Context())
		if err != nil {
			return err
		}
		if len(objs) == 0 {
			fmt.Println("No backups.")
			return nil
		}
		for _, o := range objs {
			fmt.Printf("%s  %10d  %s\n", o.ModTime.Format("2006-01-02 15:04:05"), o.Size, o.Name)
		}
		return nil
	},
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		keep, _ := cmd.Flags().GetInt("keep")

		a, err := newApp(cmd.Context(), "backup prune")
		if err != nil {
			return err
		}
		defer a.Close()

		deleted, err := a.PruneBackups(cmd.Context(), keep)
		for _, name := range deleted {
			fmt.Printf("Deleted %s\n", name)
		}
		return err
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore NAME",
	Short: "Decrypt a backup into a new catalog file",
	Long: "Decrypt a backup into a new catalog file. The live catalog is not touched;\n" +
		"stop docvault and move the restored file into the data dir to use it.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		pass, err := readPassphrase("Passphrase for the private key: ")
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "backup restore")
		if err != nil {
			return err
		}
		defer a.Close()

		dest, err := a.RestoreBackup(cmd.Context(), args[0], pass, output)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Printf("Restored %s to %s\n", args[0], dest)
		return nil
	},
}

func init() {
	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupPruneCmd)
	backupPruneCmd.Flags().IntP("keep", "k", 7, "Number of backups to keep")
	backupCmd.AddCommand(backupRestoreCmd)
	backupRestoreCmd.Flags().StringP("output", "o", "catalog.restored.db", "Path of the restored catalog, must not exist")
}
