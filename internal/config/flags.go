package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/auctionledger/onboard/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-u string   users batch file path
//	-o string   token output file path
//	-s string   JWT HMAC secret key
//	-t int      token time-to-live, seconds
//	-g string   ledger gateway endpoint
//	-e string   identity service (CA) endpoint
//	-p string   comma-separated peer addresses
//	-w int      worker count (1 = sequential)
//	-d string   outcomes database DSN
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. The TTL flag
// is accepted as an integer in seconds and converted to a time.Duration.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-u", "-o", "-s", "-t", "-g", "-e", "-p", "-w", "-d"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.UsersFile, "u", config.UsersFile, "users batch file")
	fs.StringVar(&config.TokenFile, "o", config.TokenFile, "token output file")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenTTL := fs.Int("t", int(config.TokenTTL.Seconds()), "token time-to-live (in seconds)")

	fs.StringVar(&config.GatewayEndpoint, "g", config.GatewayEndpoint, "ledger gateway endpoint")
	fs.StringVar(&config.CAEndpoint, "e", config.CAEndpoint, "identity service endpoint")

	peers := fs.String("p", strings.Join(config.Peers, ","), "comma-separated peer addresses")

	fs.IntVar(&config.Workers, "w", config.Workers, "worker count (1 = sequential)")
	fs.StringVar(&config.OutcomesDSN, "d", config.OutcomesDSN, "outcomes database DSN")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// The TTL and peer conversions must not round-trip values that came
	// from the JSON or env layers (whole-second truncation, "" -> [""]),
	// so they only apply when the flag was set on the command line.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.TokenTTL = time.Duration(*tokenTTL) * time.Second
		case "p":
			config.Peers = splitPeers(*peers)
		}
	})
}

func splitPeers(s string) []string {
	peers := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			peers = append(peers, p)
		}
	}
	return peers
}
