package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-p int        HTTP listen port
//	-g string     gRPC health bind address (e.g. ":50051")
//	-s string     JWT HMAC secret key
//	-t duration   identity token lifetime (e.g. "24h")
//	-l string     log level (debug, info, warn, error)
//	-n int        node id for the id generator (0..1023)
//
// os.Args is filtered first so flags owned by other packages (-c) do not
// cause parse errors here.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-p", "-g", "-s", "-t", "-l", "-n"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.IntVar(&config.Port, "p", config.Port, "HTTP listen port")
	fs.StringVar(&config.GRPCHealthAddr, "g", config.GRPCHealthAddr, "gRPC health address")
	fs.StringVar(&config.JWTSecret, "s", config.JWTSecret, "JWT secret key")
	fs.DurationVar(&config.TokenTTL, "t", config.TokenTTL, "token lifetime")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.Int64Var(&config.NodeID, "n", config.NodeID, "id generator node")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
