package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/GIGOpenSource/Collide-sub009/internal/service"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger [collectible-id]",
	Short: "查看藏品的上链流水",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var id uint64
		if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil || id == 0 {
			fmt.Printf("无效的藏品 ID: %s\n", args[0])
			os.Exit(1)
		}

		rt, err := newRuntime(cmd.Context())
		if err != nil {
			fmt.Printf("初始化失败: %v\n", err)
			os.Exit(1)
		}
		defer rt.cleanup()

		boxes := service.NewBoxService(rt.store, nil, "")
		c, err := boxes.GetCollectible(cmd.Context(), id)
		if err != nil {
			fmt.Printf("查询藏品失败: %v\n", err)
			os.Exit(1)
		}
		records, err := boxes.ListOperations(cmd.Context(), id)
		if err != nil {
			fmt.Printf("查询流水失败: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("藏品 #%d  serial=%s  box_item=%d  confirmed=%v  tx=%s\n",
			c.ID, c.SerialNo, c.SourceBoxItemID, c.MintConfirmed, c.MintTxHash)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATE\tCHAIN\tKEY\tCREATED\tFINISHED\tERROR")
		for _, r := range records {
			finished := "-"
			if r.FinishedAt != nil {
				finished = r.FinishedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.State, r.ChainType, r.IdempotencyKey, r.CreatedAt.Format(time.RFC3339), finished, r.ErrorMessage)
		}
		_ = w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
}
