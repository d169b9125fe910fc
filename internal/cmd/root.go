// Package cmd 实现 docufiller 的命令行界面。
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/allanpk716/docufiller/internal/config"
)

const (
	// AppName 应用名称
	AppName = "docufiller"
	// AppVersion 应用版本
	AppVersion = "2.0.0"
)

// RootCmd 构建命令树
func RootCmd() *cobra.Command {
	var verbose bool
	var settingsFile string

	root := &cobra.Command{
		Use:     AppName,
		Short:   "DOCX 模板填充工具：扫描标记、填入保存的替换值",
		Version: AppVersion,
		Long: `docufiller 在 DOCX 模板中定位文本标记（可配置前缀 + 标识符），
用保存的替换值生成新文档，原始文档保持不变。
每个源文件夹内维护一个隐藏的保存文件记录标识符到替换值的映射，
写入为原子操作并带时间戳备份。`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "输出调试日志")
	root.PersistentFlags().StringVar(&settingsFile, "settings", "", "设置文件路径（YAML，可选）")

	root.AddCommand(scanCmd(&verbose, &settingsFile))
	root.AddCommand(replaceCmd(&verbose, &settingsFile))
	root.AddCommand(backupsCmd(&verbose, &settingsFile))

	return root
}

// buildLogger 构建日志器，verbose 时开启调试级别
func buildLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return logger, nil
}

// loadEnvironment 加载日志器与设置
func loadEnvironment(verbose bool, settingsFile string) (*zap.Logger, *config.Settings, error) {
	logger, err := buildLogger(verbose)
	if err != nil {
		return nil, nil, err
	}

	settings, err := config.NewSettingsManager().LoadSettings(settingsFile)
	if err != nil {
		return nil, nil, err
	}
	return logger, settings, nil
}
