package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8000")
//	-h string   gRPC health bind address
//	-d string   PostgreSQL DSN
//	-s string   identity token HMAC secret
//	-t int      identity token validity, minutes (0 = no expiry)
//	-k int      bcrypt cost
//	-l string   client domain used in emailed links
//	-P          production mode
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:],
		[]string{"-a", "-h", "-d", "-s", "-t", "-k", "-l", "-u", "-p", "-b", "-g", "-e"}, "-P")

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run the HTTP server")
	fs.StringVar(&config.GRPCHealthAddr, "h", config.GRPCHealthAddr, "address and port to run the gRPC health server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	tokenValidity := fs.Int("t", int(config.IdentityTokenValidityDuration.Minutes()), "identity token validity (in minutes, 0 = no expiry)")
	fs.IntVar(&config.BcryptCost, "k", config.BcryptCost, "bcrypt cost")
	fs.StringVar(&config.ClientDomain, "l", config.ClientDomain, "client domain for emailed links")
	fs.BoolVar(&config.Production, "P", config.Production, "production mode")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.IdentityTokenValidityDuration = time.Duration(*tokenValidity) * time.Minute
}
