package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GIGOpenSource/Collide-sub009/internal/service"
	"github.com/GIGOpenSource/Collide-sub009/pkg/config"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "执行一次上链对账",
	Long: `扫描所有未确认铸造的藏品并重新发起铸造。
与服务端的定时任务共享账本，同一藏品不会被重复铸造。`,
	Run: func(cmd *cobra.Command, args []string) {
		pageSize, _ := cmd.Flags().GetInt("page-size")
		maxPages, _ := cmd.Flags().GetInt("max-pages")

		rt, err := newRuntime(cmd.Context())
		if err != nil {
			fmt.Printf("初始化失败: %v\n", err)
			os.Exit(1)
		}
		defer rt.cleanup()

		job := service.NewReconcileJob(rt.store, rt.minter, service.ReconcileConfig{
			PageSize:    pageSize,
			MaxPages:    maxPages,
			Concurrency: config.Global.Reconcile.Concurrency,
			MintQPS:     config.Global.Reconcile.MintQPS,
			RunTimeout:  config.Global.Reconcile.LockTTL,
		})
		processed, err := job.RunOnce(cmd.Context())
		if err != nil {
			fmt.Printf("对账失败 (已处理 %d): %v\n", processed, err)
			os.Exit(1)
		}

		out, _ := json.MarshalIndent(job.LastStats(), "", "  ")
		fmt.Println(string(out))
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().Int("page-size", 100, "每页藏品数")
	reconcileCmd.Flags().Int("max-pages", 0, "最多处理的页数 (0 = 直到扫完)")
}
