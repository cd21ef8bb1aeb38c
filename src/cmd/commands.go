package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "multicryptobot/src/cex/binance"
	"multicryptobot/src/config"
	"multicryptobot/src/configcache"
	"multicryptobot/src/configsvc"
	"multicryptobot/src/database"
	"multicryptobot/src/mirror"

	"github.com/xpwu/go-log/log"
)

// RegisterAllTradingCommands 注册所有命令
func RegisterAllTradingCommands() {
	RegisterRunCmd()
	RegisterOnceCmd()

	RegisterConfigCmds()
	RegisterPairCmds()
	RegisterCacheCmd()
	RegisterValidateCmd()
	RegisterSeedCmd()

	RegisterPingCmd()
	RegisterKlineTestCmd()

	RegisterHistoryCmds()
}

// signalContext 收到 SIGINT/SIGTERM 时取消的上下文
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-signalChan:
			fmt.Println("\n🔄 Shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signalChan)
	}()

	return ctx, cancel
}

// configSession 只需要配置库的命令共用的连接
type configSession struct {
	db      *database.PostgresDB
	svc     *configsvc.Service
	closers []func() error
}

// openConfig 连接数据库并创建配置服务；Redis镜像启用时一并连接
func openConfig(ctx context.Context) (*configSession, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Cmd")

	db, err := database.NewPostgresDB(database.GlobalDatabaseConfig)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &configSession{
		db:      db,
		svc:     configsvc.New(db, configcache.New(config.AppConfig.CacheTTL())),
		closers: []func() error{db.Close},
	}

	if mirror.ConfigValue.Enabled {
		m, err := mirror.New(ctx, mirror.ConfigValue)
		if err != nil {
			logger.Info("警告: Redis镜像不可用", "error", err)
		} else {
			s.svc.SetMirror(m)
			s.closers = append(s.closers, m.Close)
		}
	}

	return s, nil
}

// Close 按打开的逆序关闭
func (s *configSession) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// withConfig 打开配置会话执行 fn，失败时打印错误并以非零状态退出
func withConfig(fn func(ctx context.Context, s *configSession) error) {
	ctx := context.Background()

	s, err := openConfig(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to open config store: %v\n", err)
		os.Exit(1)
	}

	err = fn(ctx, s)
	s.Close()
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
}
