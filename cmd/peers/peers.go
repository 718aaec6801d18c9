package peers

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gnunet-go/gnunet/config"
	"github.com/gnunet-go/gnunet/peerinfo"
	"github.com/gnunet-go/gnunet/tools"
	"github.com/gnunet-go/gnunet/transport"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	configPath string
	self       bool
	timeout    time.Duration
	jsonOutput bool

	Cmd = &cobra.Command{
		Use:   "peers",
		Short: "List peers known to the local node",
		Args:  cobra.NoArgs,
		RunE:  run,
	}
)

func init() {
	Cmd.Flags().StringVarP(&configPath, "config", "c", tools.GetenvDefault("GNUNET_CONFIG", ""), "Service configuration file")
	Cmd.Flags().BoolVar(&self, "self", false, "Print our own peer identity instead of the peer list")
	Cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Abort after this long (0 waits forever)")
	Cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if self {
		id, err := transport.SelfID(ctx, cfg, log.Logger)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	}

	peers, err := peerinfo.ListPeers(ctx, cfg, log.Logger)
	if err != nil {
		return err
	}

	if jsonOutput {
		ids := make([]string, len(peers))
		for i, p := range peers {
			ids[i] = p.Peer.String()
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ids)
	}

	for _, p := range peers {
		fmt.Println(p)
	}
	return nil
}
