package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/allanpk716/docufiller/internal/domain"
	"github.com/allanpk716/docufiller/internal/scanner"
	"github.com/allanpk716/docufiller/internal/store"
)

// scanCmd 扫描文件夹中的标记并与已保存的值对照展示
func scanCmd(verbose *bool, settingsFile *string) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "scan <文件夹>",
		Short: "扫描文件夹中所有文档的标记",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, settings, err := loadEnvironment(*verbose, *settingsFile)
			if err != nil {
				return err
			}
			defer logger.Sync()

			folder := args[0]
			valueStore := store.NewStore(settings, logger)

			// 保存文件存在时沿用其前缀，命令行 --prefix 优先
			saved := valueStore.Read(folder, store.ReadOptions{})
			savedValues := map[string]string{}
			var savedOrder []string
			switch saved.Status {
			case store.ReadOK:
				savedValues = saved.Data.Values
				savedOrder = saved.Data.SortedIdentifiers()
				if prefix == "" {
					prefix = saved.Data.Prefix
				}
			case store.ReadCorrupted:
				color.Red("警告: 保存文件已损坏，本次扫描忽略已保存的值")
				for _, fieldError := range saved.FieldErrors {
					color.Red("  %s", fieldError)
				}
			}
			if prefix == "" {
				prefix = settings.DefaultPrefix
			}

			folderScanner := scanner.NewFolderScanner(settings, logger)
			result, err := folderScanner.ScanFolder(cmd.Context(), folder, prefix)
			if err != nil {
				return err
			}

			markers := scanner.MergeWithSaved(result.Markers, prefix, savedValues, savedOrder)
			printScanResult(result, markers)
			return nil
		},
	}

	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "标记前缀（默认取保存文件或全局默认值）")
	return cmd
}

// printScanResult 打印扫描结果
func printScanResult(result *domain.ScanResult, markers []domain.Marker) {
	fmt.Printf("文件夹: %s\n", result.Folder)
	fmt.Printf("前缀: %s\n", result.Prefix)
	fmt.Printf("文档数: %d\n\n", len(result.Documents))

	if len(markers) == 0 {
		fmt.Println("未发现任何标记")
	}

	for _, marker := range markers {
		var status string
		switch marker.Status {
		case domain.StatusActive:
			status = color.CyanString("[已有值]")
		case domain.StatusNew:
			status = color.GreenString("[新发现]")
		case domain.StatusRemoved:
			status = color.YellowString("[已移除]")
		}

		documents := make([]string, 0, len(marker.Documents))
		for name := range marker.Documents {
			documents = append(documents, name)
		}
		sort.Strings(documents)

		fmt.Printf("%s %s", status, marker.FullMarker)
		if marker.Value != "" {
			fmt.Printf(" = %q", marker.Value)
		}
		if len(documents) > 0 {
			fmt.Printf("  (%s)", strings.Join(documents, ", "))
		}
		fmt.Println()
	}

	if result.Truncated {
		color.Yellow("\n警告: 标记数量超过上限，结果已截断")
	}
	for _, name := range result.Skipped {
		color.Yellow("警告: 文档被跳过: %s", name)
	}
	for _, docErr := range result.Errors {
		color.Red("文档扫描失败: %s，原因: %s", docErr.Path, docErr.Message)
	}
}
