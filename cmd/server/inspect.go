package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"batchauction/config"
	"batchauction/infra/ledger"
	"batchauction/infra/log"
	"batchauction/service"
)

// InspectCommand rebuilds the house from disk without opening the
// journal for writing and prints every auction.
func InspectCommand(conf *config.Config, logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print the recovered state of every auction",
		RunE: func(cmd *cobra.Command, args []string) error {
			house, err := service.New(
				service.Config{
					Owner:        conf.Engine.Owner,
					Fees:         conf.Engine.FeeSchedule(),
					MaxScanSteps: conf.Engine.MaxScanSteps,
				},
				ledger.Discard{},
				nil,
				nil,
				service.WithLogger(*logger),
			)
			if err != nil {
				return err
			}

			seq, err := house.Recover(cmd.Context(), conf.Path(conf.Snapshot.Dir), conf.Path(conf.WAL.Dir))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "seq=%d users=%d\n", seq, house.Registry().Len())
			for _, id := range house.AuctionIDs() {
				v, err := house.GetAuction(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "auction=%d phase=%s orders=%d auctioneer=%s sell=%s min_buy=%s",
					id, v.Phase, len(v.Orders), v.Auctioneer, v.InitialOrder.SellAmount, v.InitialOrder.BuyAmount)
				if v.Result != nil {
					fmt.Fprintf(out, " price=%s raised=%s", v.Result.Price.String(), v.Result.Raised)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}
