package client_test

import (
	"context"
	"fmt"
	"log"

	"github.com/frobware/go-flowreprog"
	"github.com/frobware/go-flowreprog/client"
)

func ExampleDial() {
	c, err := client.Dial(client.DefaultSocketPath())
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	flows, err := c.ListFlows(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	for _, f := range flows {
		fmt.Printf("%s: %s\n", f.Entry, f.Status)
	}
}

func ExampleClient_UpdateFlow() {
	c, err := client.Open(context.Background(), client.WithRuntimeDir("/tmp/flowreprog"))
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	res, err := c.UpdateFlow(context.Background(), flowreprog.Entry{
		Name:     "uplink",
		Priority: 100,
		Match:    flowreprog.Match{InputIntfs: []string{"Ethernet1"}},
		Action:   flowreprog.Action{OutputIntfs: []string{"Ethernet2"}},
	})
	if err != nil {
		log.Fatal(err)
	}
	if res.Pending != nil {
		fmt.Println("reprogrammed via", res.Pending.Desired.Name+flowreprog.TempSuffix)
	}
}
