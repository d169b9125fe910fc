package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/allanpk716/docufiller/internal/store"
)

// backupsCmd 管理保存文件的备份
func backupsCmd(verbose *bool, settingsFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "管理保存文件的备份",
	}
	cmd.AddCommand(backupsListCmd(verbose, settingsFile))
	cmd.AddCommand(backupsRestoreCmd(verbose, settingsFile))
	return cmd
}

// backupsListCmd 列出文件夹内的全部备份
func backupsListCmd(verbose *bool, settingsFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list <文件夹>",
		Short: "列出保存文件的备份，从新到旧",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, settings, err := loadEnvironment(*verbose, *settingsFile)
			if err != nil {
				return err
			}
			defer logger.Sync()

			backups, err := store.NewStore(settings, logger).ListBackups(args[0])
			if err != nil {
				return err
			}

			if len(backups) == 0 {
				fmt.Println("没有备份")
				return nil
			}
			for _, backup := range backups {
				ts := time.UnixMilli(backup.Timestamp).Format("2006-01-02 15:04:05.000")
				fmt.Printf("%s  %s\n", ts, backup.Path)
			}
			return nil
		},
	}
}

// backupsRestoreCmd 从指定备份恢复保存文件
func backupsRestoreCmd(verbose *bool, settingsFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <文件夹> <备份文件>",
		Short: "校验备份后用它覆盖现行保存文件",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, settings, err := loadEnvironment(*verbose, *settingsFile)
			if err != nil {
				return err
			}
			defer logger.Sync()

			result := store.NewStore(settings, logger).RestoreFromBackup(args[0], args[1])
			if !result.OK {
				return fmt.Errorf("恢复失败: %s", result.Message)
			}
			color.Green("恢复完成")
			return nil
		},
	}
}
