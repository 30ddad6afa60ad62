package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"evhttpd"
	"evhttpd/internal/auth"
	"evhttpd/internal/logging"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] <ip> <port>\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	var (
		root      = flag.String("root", "/var/www/html", "document root to serve files from")
		users     = flag.String("users", "users.db", "credential file for login/register")
		workers   = flag.Int("workers", 8, "worker pool size")
		maxconns  = flag.Int("maxconns", 65536, "maximum live connections")
		nodelay   = flag.Bool("nodelay", false, "set TCP_NODELAY on accepted sockets")
		reuseport = flag.Bool("reuseport", false, "set SO_REUSEPORT on the listener")
	)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 2 {
		usage()
		os.Exit(1)
	}
	defer logging.Cleanup()

	store, err := auth.Open(*users)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot open credential file: %v\n", err)
		os.Exit(1)
	}

	opts := &evhttpd.Options{
		DocRoot:    *root,
		Workers:    *workers,
		MaxConns:   *maxconns,
		TCPNoDelay: *nodelay,
		ReusePort:  *reuseport,
	}
	addr := net.JoinHostPort(flag.Arg(0), flag.Arg(1))
	if err := evhttpd.Serve(addr, store, opts); err != nil {
		logging.DefaultLogger.Errorf("server exited with error: %v", err)
		logging.Cleanup()
		os.Exit(1)
	}
}
