package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GIGOpenSource/Collide-sub009/internal/chain"
	"github.com/GIGOpenSource/Collide-sub009/internal/repository"
	"github.com/GIGOpenSource/Collide-sub009/internal/service"
	"github.com/GIGOpenSource/Collide-sub009/pkg/config"
	"github.com/GIGOpenSource/Collide-sub009/pkg/database"
	"github.com/GIGOpenSource/Collide-sub009/pkg/logger"
)

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "blindbox-cli",
	Short: "盲盒开盒与上链对账运维工具",
	Long: `直接连接数据库的运维命令行。
可以手动触发一次对账、查看藏品的上链流水。`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Init()
		logger.InitWithConfig(config.Global.App.Env, config.Global.Log)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// cliDeps 命令共享的依赖
type cliDeps struct {
	store   *repository.GormStore
	minter  *service.MintService
	cleanup func()
}

func newRuntime(ctx context.Context) (*cliDeps, error) {
	cfg := config.Global
	db, err := database.ConnectPostgres(cfg.DB.DSN(), database.PoolConfig{MaxOpenConns: 8})
	if err != nil {
		return nil, err
	}
	gateways, closeGateways, err := chain.NewRegistryFromConfig(ctx, cfg.Chain)
	if err != nil {
		return nil, err
	}

	store := repository.NewStore(db)
	ledger := service.NewOperationLedger(store.Operations(), cfg.Reconcile.StaleAfter)
	return &cliDeps{
		store:  store,
		minter: service.NewMintService(store, ledger, gateways, cfg.Chain.Type, cfg.Chain.Timeout),
		cleanup: func() {
			closeGateways()
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		},
	}, nil
}
