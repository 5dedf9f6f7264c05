package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/lessucettes/geochat/internal/client"
	"github.com/lessucettes/geochat/internal/tui"
)

var version = "dev"

func main() {
	versionFlag := flag.Bool("version", false, "Print the version and exit")
	vFlag := flag.Bool("v", false, "Print the version and exit (shorthand)")
	nsecFlag := flag.String("nsec", "", "Use this private key (nsec or hex) instead of the stored identity")
	flag.Parse()

	if *versionFlag || *vFlag {
		fmt.Println(version)
		os.Exit(0)
	}
	client.Version = version

	// An optional positional argument is a geohash channel to join on startup.
	autoChannel := flag.Arg(0)

	actionsChan := make(chan client.UserAction, 10)
	eventsChan := make(chan client.DisplayEvent, 10)

	geoClient, err := client.New(actionsChan, eventsChan, *nsecFlag, autoChannel)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	appUI := tui.New(actionsChan, eventsChan)

	go geoClient.Run()

	if err := appUI.Run(); err != nil {
		log.Fatalf("Failed to run TUI: %v", err)
	}
}
