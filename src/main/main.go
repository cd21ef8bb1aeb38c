package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tradingcmd "multicryptobot/src/cmd"
	"multicryptobot/src/config"

	"github.com/xpwu/go-cmd/cmd"
	"github.com/xpwu/go-config/configs"
	"github.com/xpwu/go-log/log"
)

// homeEnv 指定 config.json 所在目录，优先于可执行文件目录
const homeEnv = "MULTICRYPTOBOT_HOME"

const configFile = "config.json"

func main() {
	configs.SetConfigurator(&configs.JsonConfig{})

	if dir := findConfigDir(os.Getenv(homeEnv), executableDir()); dir != "" {
		if err := os.Chdir(dir); err != nil {
			panic("切换到配置目录失败: " + err.Error())
		}
	}

	// config.json 只保存连接和引擎参数，交易对/策略/风控在配置库里
	if err := configs.ReadWithErr(); err != nil {
		if printErr := configs.Print(); printErr != nil {
			panic("生成默认配置文件失败: " + printErr.Error())
		}
		panic(fmt.Sprintf("已生成默认 %s，修改数据库连接后执行 seed 写入初始配置，再执行 run", configFile))
	}

	if err := config.AppConfig.Validate(); err != nil {
		panic("配置验证失败: " + err.Error())
	}

	_, logger := log.WithCtx(context.Background())
	logger.PushPrefix("MultiCryptoBot")
	logger.Info("多币种交易机器人",
		"exchange", config.AppConfig.Exchange,
		"timeframe", config.AppConfig.Engine.Timeframe,
		"enable_trading", config.AppConfig.EnableTrading)

	tradingcmd.RegisterAllTradingCommands()
	cmd.Run()
}

// findConfigDir 返回含 config.json 的目录，都没有时返回空串（留在当前目录，由 configs.Print 生成默认配置）
//
// 顺序: 环境变量目录, 可执行文件目录, 当前目录
func findConfigDir(envDir, execDir string) string {
	for _, dir := range []string{envDir, execDir} {
		if dir == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, configFile)); err == nil {
			return dir
		}
	}
	return ""
}

func executableDir() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(execPath)
}
