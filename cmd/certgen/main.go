// Package main generates a Certificate Authority (CA) and a server
// certificate for running GophBank over HTTPS, writing them under a
// certificates directory.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atinyakov/GophBank/internal/certgen"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "certgen:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("certgen", flag.ContinueOnError)
	dir := fs.String("dir", "certs", "output directory")
	hosts := fs.String("hosts", "localhost,127.0.0.1", "comma separated DNS names and IPs of the server")
	caCert := fs.String("ca-cert", "", "existing CA certificate; a new CA is created when empty")
	caKey := fs.String("ca-key", "", "existing CA private key")
	validFor := fs.Duration("valid-for", 365*24*time.Hour, "server certificate lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		ca  *certgen.Authority
		err error
	)
	if *caCert != "" || *caKey != "" {
		ca, err = certgen.LoadCA(*caCert, *caKey)
		if err != nil {
			return err
		}
	} else {
		ca, err = certgen.NewCA("GophBank CA", 10*365*24*time.Hour)
		if err != nil {
			return err
		}
		certPEM, keyPEM, err := ca.PEM()
		if err != nil {
			return err
		}
		if err := certgen.WriteFiles(*dir, "ca", certPEM, keyPEM); err != nil {
			return err
		}
	}

	certPEM, keyPEM, err := ca.IssueServer(strings.Split(*hosts, ","), *validFor)
	if err != nil {
		return err
	}
	if err := certgen.WriteFiles(*dir, "server", certPEM, keyPEM); err != nil {
		return err
	}

	fmt.Fprintf(out, "Certificates generated into %s\n", *dir)
	fmt.Fprintf(out, "Run the server with -tls-cert %s -tls-key %s\n",
		filepath.Join(*dir, "server.crt"), filepath.Join(*dir, "server.key"))
	return nil
}
