package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/allanpk716/docufiller/internal/domain"
	"github.com/allanpk716/docufiller/internal/processor"
	"github.com/allanpk716/docufiller/internal/store"
)

// replaceCmd 用保存的替换值批量填充文件夹中的文档
func replaceCmd(verbose *bool, settingsFile *string) *cobra.Command {
	var prefix string
	var overrides []string

	cmd := &cobra.Command{
		Use:   "replace <源文件夹> <输出文件夹>",
		Short: "替换文件夹中所有文档的标记，结果写入输出文件夹",
		Long: `读取源文件夹的保存文件得到替换值映射，对每个文档执行标记替换，
结果写入输出文件夹，原始文档不变。--set 提供的键值对会覆盖保存值，
运行结束后合并后的值写回保存文件（原子写入并带时间戳备份）。`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, settings, err := loadEnvironment(*verbose, *settingsFile)
			if err != nil {
				return err
			}
			defer logger.Sync()

			sourceFolder, outputFolder := args[0], args[1]
			valueStore := store.NewStore(settings, logger)

			data, err := valueStore.ReadSync(sourceFolder, store.ReadOptions{
				CreateDefaultIfNotFound: true,
			})
			if err != nil {
				return err
			}
			if prefix != "" {
				data.Prefix = prefix
			}

			// 命令行覆盖值合并进保存数据
			for _, override := range overrides {
				key, value, found := strings.Cut(override, "=")
				if !found || key == "" {
					return fmt.Errorf("--set 参数格式应为 标识符=值: %q", override)
				}
				data.Values[key] = value
			}

			batch := processor.NewBatchProcessor(settings, logger)
			result := batch.ProcessFolder(cmd.Context(), domain.ReplacementRequest{
				SourceFolder: sourceFolder,
				OutputFolder: outputFolder,
				Values:       data.Values,
				Prefix:       data.Prefix,
			}, printProgress)

			printReplacementResult(result)

			write := valueStore.Write(sourceFolder, data, store.WriteOptions{
				Atomic:          true,
				UpdateTimestamp: true,
				Backup:          true,
			})
			if !write.OK {
				color.Red("保存替换值失败: %s", write.Message)
			}

			if !result.Success {
				return fmt.Errorf("%d 个文档处理失败", result.Errors)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "标记前缀（默认取保存文件中的前缀）")
	cmd.Flags().StringArrayVar(&overrides, "set", nil, "覆盖替换值，格式 标识符=值，可重复")
	return cmd
}

// printProgress 进度回调：单行刷新
func printProgress(event domain.ProgressEvent) {
	phase := "复制"
	if event.Phase == domain.PhaseReplace {
		phase = "替换"
	}
	fmt.Printf("\r[%3d%%] %s %d/%d: %s", event.Percent, phase,
		event.Completed, event.Total, event.CurrentItem)
	if event.Percent >= 100 {
		fmt.Println()
	}
}

// printReplacementResult 打印替换汇总
func printReplacementResult(result domain.ReplacementResult) {
	fmt.Println()
	if result.Success {
		color.Green("处理完成: %d 个文档成功", result.Processed)
	} else {
		color.Yellow("处理完成: %d 个成功, %d 个失败", result.Processed, result.Errors)
	}
	for _, failed := range result.FailedDocuments {
		color.Red("文档被跳过: %s，原因: %s", failed.Path, failed.Message)
	}
}
