package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"batchauction/config"
	"batchauction/domain/auction"
	"batchauction/infra/ledger"
	"batchauction/infra/log"
	entrywal "batchauction/infra/wal/entry"
	"batchauction/service"
)

func runCommand(t *testing.T, args ...string) string {
	t.Helper()

	conf := config.DefaultConfig()
	logger := log.NewNopLogger()
	cmd := RootCommand(viper.New(), conf, &logger)
	cmd.AddCommand(InspectCommand(conf, &logger))

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestInspectEmptyHome(t *testing.T) {
	out := runCommand(t, "--home", t.TempDir(), "--log-level", "error", "inspect")
	require.Equal(t, "seq=0 users=0\n", out)
}

func TestInspectReplaysJournal(t *testing.T) {
	home := t.TempDir()

	journal, err := entrywal.Open(entrywal.Config{
		Dir:         filepath.Join(home, config.DefaultWALConfig().Dir),
		SegmentSize: 1 << 20,
	})
	require.NoError(t, err)

	house, err := service.New(service.Config{}, ledger.NewMemory(), journal, nil)
	require.NoError(t, err)

	now := time.Now()
	_, err = house.InitiateAuction(context.Background(), auction.Params{
		Auctioneer:                   "auctioneer",
		TokenIn:                      "usdc",
		TokenOut:                     "gno",
		OrderCancellationEndDate:     now.Add(time.Hour),
		EndDate:                      now.Add(2 * time.Hour),
		TotalOutSupply:               sdkmath.NewUint(1000),
		MinBuyAmount:                 sdkmath.NewUint(100),
		MinimumBiddingAmountPerOrder: sdkmath.NewUint(1),
	})
	require.NoError(t, err)
	require.NoError(t, journal.Close())

	out := runCommand(t, "--home", home, "inspect")
	require.Contains(t, out, "seq=1 users=0\n")
	require.Contains(t, out, "auction=1 phase=")
	require.Contains(t, out, "sell=1000 min_buy=100")
}
