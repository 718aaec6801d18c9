package lookup

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gnunet-go/gnunet/config"
	"github.com/gnunet-go/gnunet/crypto"
	"github.com/gnunet-go/gnunet/gns"
	"github.com/gnunet-go/gnunet/identity"
	"github.com/gnunet-go/gnunet/tools"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	configPath string
	zoneKey    string
	typeName   string
	noDHT      bool
	timeout    time.Duration
	jsonOutput bool

	Cmd = &cobra.Command{
		Use:   "lookup <name>...",
		Short: "Resolve names through the GNS service",
		Args:  cobra.MinimumNArgs(1),
		RunE:  run,
	}
)

func init() {
	Cmd.Flags().StringVarP(&configPath, "config", "c", tools.GetenvDefault("GNUNET_CONFIG", ""), "Service configuration file")
	Cmd.Flags().StringVarP(&zoneKey, "zone", "z", "", "Zone public key (defaults to the gns-master ego's zone)")
	Cmd.Flags().StringVarP(&typeName, "type", "t", "A", "Record type to query")
	Cmd.Flags().BoolVar(&noDHT, "no-dht", false, "Keep the lookup to the local cache")
	Cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Abort the lookup after this long (0 waits forever)")
	Cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
}

// result is the JSON shape of one resolved name.
type result struct {
	Name    string   `json:"name"`
	Records []record `json:"records"`
}

type record struct {
	Type       string    `json:"type"`
	Value      string    `json:"value"`
	Expiration time.Time `json:"expiration"`
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rtype, err := gns.ParseRecordType(typeName)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	zone, opts, err := resolveZone(ctx, cfg)
	if err != nil {
		return err
	}
	if noDHT {
		opts = gns.OptionsNoDHT
	}

	queries := make([]gns.LookupQuery, len(args))
	for i, name := range args {
		queries[i] = gns.LookupQuery{
			Name:    name,
			Zone:    zone,
			Type:    rtype,
			Options: opts,
		}
	}

	client, err := gns.Connect(ctx, cfg, log.Logger)
	if err != nil {
		return err
	}
	defer client.Close()

	results, err := client.Lookup(ctx, queries)
	if err != nil {
		return err
	}

	return printResults(args, results)
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

// resolveZone parses --zone, or falls back to the default gns-master ego.
func resolveZone(ctx context.Context, cfg *config.Config) (crypto.EcdsaPublicKey, gns.LocalOptions, error) {
	if zoneKey != "" {
		pk, err := crypto.PublicKeyFromString(zoneKey)
		if err != nil {
			return crypto.EcdsaPublicKey{}, 0, err
		}
		return pk, gns.OptionsDefault, nil
	}

	ego, err := identity.GetDefaultEgo(ctx, cfg, "gns-master", log.Logger)
	if err != nil {
		return crypto.EcdsaPublicKey{}, 0, fmt.Errorf("resolve gns-master zone: %w", err)
	}
	return ego.PublicKey(), gns.OptionsLocalMaster, nil
}

func printResults(names []string, results [][]gns.Record) error {
	if jsonOutput {
		out := make([]result, len(names))
		for i, name := range names {
			out[i] = result{Name: name, Records: make([]record, 0, len(results[i]))}
			for _, r := range results[i] {
				out[i].Records = append(out[i].Records, record{
					Type:       r.Type.String(),
					Value:      r.Value(),
					Expiration: r.ExpirationTime(),
				})
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for i, name := range names {
		if len(results[i]) == 0 {
			fmt.Printf("%s: no records\n", name)
			continue
		}
		for _, r := range results[i] {
			fmt.Printf("%s: %s\n", name, r)
		}
	}
	return nil
}
