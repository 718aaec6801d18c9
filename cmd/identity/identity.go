package identity

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gnunet-go/gnunet/config"
	"github.com/gnunet-go/gnunet/identity"
	"github.com/gnunet-go/gnunet/tools"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	configPath  string
	serviceName string
	timeout     time.Duration
	jsonOutput  bool

	Cmd = &cobra.Command{
		Use:   "identity",
		Short: "List local egos or show a service's default ego",
		Args:  cobra.NoArgs,
		RunE:  run,
	}
)

func init() {
	Cmd.Flags().StringVarP(&configPath, "config", "c", tools.GetenvDefault("GNUNET_CONFIG", ""), "Service configuration file")
	Cmd.Flags().StringVarP(&serviceName, "service", "s", "", "Show the default ego for this service instead of listing all egos")
	Cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Abort after this long (0 waits forever)")
	Cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
}

type egoInfo struct {
	Name      string `json:"name"`
	ID        string `json:"id"`
	PublicKey string `json:"public_key"`
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

	svc, err := identity.Connect(ctx, cfg, log.Logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	var egos []identity.Ego
	if serviceName != "" {
		ego, err := svc.GetDefaultEgo(ctx, serviceName)
		if err != nil {
			return err
		}
		egos = []identity.Ego{ego}
	} else {
		egos = svc.Egos()
	}

	if jsonOutput {
		out := make([]egoInfo, len(egos))
		for i, e := range egos {
			out[i] = egoInfo{
				Name:      e.Name(),
				ID:        e.ID().String(),
				PublicKey: e.PublicKey().String(),
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, e := range egos {
		fmt.Println(e)
	}
	return nil
}
